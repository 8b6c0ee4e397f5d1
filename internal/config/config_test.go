package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv(envCfgFile, "")
	t.Setenv("SELLERDESK_BACKEND_BASE_URL", "http://dashboard.local")
	t.Setenv("SELLERDESK_SERVICE_ARTIFACT_TTL", "5m")
	t.Setenv("SELLERDESK_BACKEND_BREAKER_FAILURES", "3")

	cfg, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, "http://dashboard.local", cfg.Backend.BaseURL)
	require.Equal(t, 5*time.Minute, cfg.Service.ArtifactTTL)
	require.EqualValues(t, 3, cfg.Backend.BreakerFailures)
	require.Equal(t, ":8080", cfg.Handler.ServerAddr)
	require.Equal(t, 20, cfg.Service.DefaultPageSize)
	require.True(t, cfg.Service.ReportsOnAdvance)
	require.Equal(t, "info", cfg.Logger.LogLevel)
	require.Equal(t, 4, cfg.Merger.Concurrency)
	require.Equal(t, "RUB", cfg.Report.Currency)
	require.Empty(t, cfg.Store.DBDsn)
}

func TestGetConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sellerdesk.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
handler:
  server_addr: ":9090"
backend:
  base_url: "http://from-file"
  token: "t0ken"
report:
  rows_per_page: 40
`), 0o600))
	t.Setenv(envCfgFile, file)
	// окружение важнее файла
	t.Setenv("SELLERDESK_BACKEND_TOKEN", "from-env")

	cfg, err := GetConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Handler.ServerAddr)
	require.Equal(t, "http://from-file", cfg.Backend.BaseURL)
	require.Equal(t, "from-env", cfg.Backend.Token)
	require.Equal(t, 40, cfg.Report.RowsPerPage)
}

func TestGetConfigRequiresBackend(t *testing.T) {
	t.Setenv(envCfgFile, "")
	t.Setenv("SELLERDESK_BACKEND_BASE_URL", "")

	_, err := GetConfig()
	require.ErrorIs(t, err, ErrBackendURLRequired)
}
