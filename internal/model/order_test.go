package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestNormalizeOrderOzonNestedFallbacks(t *testing.T) {
	raw := decodeRaw(t, `{
		"posting_number": "0123-4567-1",
		"order_id": 987654,
		"status": "awaiting_packaging",
		"in_process_at": "2024-05-01T10:00:00Z",
		"products": [{"offer_id": "", "sku": 1234, "name": "Кружка", "price": "499.00"}],
		"labelUrl": "/labels/0123-4567-1.pdf"
	}`)

	order := NormalizeOrder(MarketplaceOzon, raw)
	require.Equal(t, "0123-4567-1", order.OrderID)
	require.Equal(t, "1234", order.Article)
	require.Equal(t, "Кружка", order.ProductName)
	require.True(t, decimal.RequireFromString("499").Equal(order.Price))
	require.Equal(t, "/labels/0123-4567-1.pdf", order.StickerURL)
	require.Equal(t, "0123-4567-1", order.DedupKey())
}

func TestNormalizeOrderWildberriesInternalStatus(t *testing.T) {
	raw := decodeRaw(t, `{
		"id": 5001,
		"rid": "f1a2",
		"article": "SKU1",
		"status": "new",
		"internalStatus": "ASSEMBLY",
		"supplyId": "WB-GI-1",
		"marketplaceTokenId": 7
	}`)

	order := NormalizeOrder(MarketplaceWildberries, raw)
	require.Equal(t, "5001", order.OrderID)
	require.Equal(t, "5001", order.Identity())
	require.Equal(t, "f1a2", order.DedupKey())
	require.Equal(t, "ASSEMBLY", order.InternalStatus)
	require.Equal(t, int64(7), order.TokenID)
}

func TestOrderIdentityFallsBackToInternalID(t *testing.T) {
	order := Order{Marketplace: MarketplaceYandex, ID: "int-1"}
	require.Equal(t, "int-1", order.Identity())

	order = Order{Marketplace: MarketplaceYandex}
	require.Empty(t, order.Identity())
	require.Empty(t, order.DedupKey())
}

func TestLookup(t *testing.T) {
	raw := decodeRaw(t, `{"a": {"b": [{"c": 1.5}]}, "x.y": "dotted"}`)

	v, ok := Lookup(raw, "a.b.0.c")
	require.True(t, ok)
	require.Equal(t, "1.5", Stringify(v))

	v, ok = Lookup(raw, "x.y")
	require.True(t, ok)
	require.Equal(t, "dotted", v)

	_, ok = Lookup(raw, "a.b.3.c")
	require.False(t, ok)
	_, ok = Lookup(raw, "a.missing")
	require.False(t, ok)
}

func TestParseMarketplace(t *testing.T) {
	mp, err := ParseMarketplace(" Ozon ")
	require.NoError(t, err)
	require.Equal(t, MarketplaceOzon, mp)

	_, err = ParseMarketplace("amazon")
	require.ErrorIs(t, err, ErrUnknownMarketplace)
}
