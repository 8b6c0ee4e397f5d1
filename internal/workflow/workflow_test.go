package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/sellerdesk/internal/model"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		mp      model.Marketplace
		current string
		want    string
	}{
		{"wb new", model.MarketplaceWildberries, "new", "assembly"},
		{"wb assembly", model.MarketplaceWildberries, "assembly", "ready_to_shipment"},
		{"wb ready", model.MarketplaceWildberries, "ready_to_shipment", "shipped"},
		{"wb shipped is terminal", model.MarketplaceWildberries, "shipped", "shipped"},
		{"wb mixed", model.MarketplaceWildberries, "mixed", "assembly"},
		{"wb unknown never regresses", model.MarketplaceWildberries, "confirm", "assembly"},
		{"wb case insensitive", model.MarketplaceWildberries, " NEW ", "assembly"},
		{"ozon new", model.MarketplaceOzon, "new", "processing"},
		{"ozon processing", model.MarketplaceOzon, "processing", "ready_to_ship"},
		{"ozon ready", model.MarketplaceOzon, "ready_to_ship", "shipped"},
		{"ozon shipped", model.MarketplaceOzon, "shipped", "shipped"},
		{"ozon mixed", model.MarketplaceOzon, "mixed", "new"},
		{"ozon unknown", model.MarketplaceOzon, "delivering", "new"},
		{"yandex new", model.MarketplaceYandex, "new", "processing"},
		{"yandex processing", model.MarketplaceYandex, "processing", "ready_to_ship"},
		{"yandex ready", model.MarketplaceYandex, "ready_to_ship", "shipped"},
		{"yandex mixed", model.MarketplaceYandex, "mixed", "new"},
		{"unknown marketplace", model.Marketplace("amazon"), "new", "new"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NextStatus(tt.current, tt.mp))
		})
	}
}

func TestYandexSubStatusCoupling(t *testing.T) {
	wf, err := For(model.MarketplaceYandex)
	require.NoError(t, err)

	started := model.Order{Status: "PROCESSING", SubStatus: "STARTED"}
	require.Equal(t, StatusProcessing, wf.StatusOf(started))
	require.Equal(t, Target{Status: StatusProcessing, SubStatus: StatusReadyToShip}, wf.Next(wf.StatusOf(started)))

	ready := model.Order{Status: "PROCESSING", SubStatus: "READY_TO_SHIP"}
	require.Equal(t, StatusReadyToShip, wf.StatusOf(ready))
	require.Equal(t, Target{Status: StatusShipped}, wf.Next(wf.StatusOf(ready)))

	require.True(t, wf.ReportsOn(wf.Next(StatusProcessing)))
	require.False(t, wf.ReportsOn(wf.Next(StatusReadyToShip)))
}

func TestWildberriesStatusOfPrefersInternal(t *testing.T) {
	wf, err := For(model.MarketplaceWildberries)
	require.NoError(t, err)

	require.Equal(t, "assembly", wf.StatusOf(model.Order{InternalStatus: "Assembly", Status: "new"}))
	require.Equal(t, "confirm", wf.StatusOf(model.Order{Status: "CONFIRM"}))
	require.Equal(t, "new", wf.StatusOf(model.Order{}))
}

func TestGuardMixedInternalStatus(t *testing.T) {
	wf, err := For(model.MarketplaceWildberries)
	require.NoError(t, err)

	err = Guard(wf, []model.Order{
		{OrderID: "1", InternalStatus: "assembly"},
		{OrderID: "2", InternalStatus: "ready_to_shipment"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, err, ErrMixedInternalStatus)
	require.Equal(t, []string{"assembly", "ready_to_shipment"}, verr.Statuses)

	require.NoError(t, Guard(wf, []model.Order{
		{OrderID: "1", InternalStatus: "ASSEMBLY"},
		{OrderID: "2", InternalStatus: "assembly"},
	}))
}

func TestGuardSkipsMarketplacesWithoutInternalStatus(t *testing.T) {
	wf, err := For(model.MarketplaceOzon)
	require.NoError(t, err)

	require.NoError(t, Guard(wf, []model.Order{
		{OrderID: "1", Status: "new"},
		{OrderID: "2", Status: "processing"},
	}))
	require.ErrorIs(t, Guard(wf, nil), ErrEmptySelection)
}

func TestIsTerminal(t *testing.T) {
	for _, mp := range model.Marketplaces() {
		wf, err := For(mp)
		require.NoError(t, err)
		require.True(t, IsTerminal(wf, StatusShipped), mp)
		require.False(t, IsTerminal(wf, StatusNew), mp)
		require.False(t, IsTerminal(wf, StatusMixed), mp)
	}
}
