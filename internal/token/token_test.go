package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := BuildJWTString("operator-7", "secret", time.Hour)
	require.NoError(t, err)

	code, err := GetUserCode(tok, "secret")
	require.NoError(t, err)
	require.Equal(t, "operator-7", code)

	_, err = GetUserCode(tok, "other")
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	tok, err := BuildJWTString("operator-7", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = GetUserCode(tok, "secret")
	require.Error(t, err)
}

func TestTokenWithoutSubject(t *testing.T) {
	tok, err := BuildJWTString("", "secret", time.Hour)
	require.NoError(t, err)
	_, err = GetUserCode(tok, "secret")
	require.ErrorIs(t, err, ErrNoUserCode)
}
