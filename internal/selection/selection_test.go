package selection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/workflow"
)

func newTracker(t *testing.T, mp model.Marketplace) *Tracker {
	t.Helper()
	wf, err := workflow.For(mp)
	require.NoError(t, err)
	return NewTracker(wf)
}

func TestEffectiveStatusSingleOrder(t *testing.T) {
	tests := []struct {
		name  string
		order model.Order
		want  string
	}{
		{"internal wins", model.Order{OrderID: "1", InternalStatus: "ASSEMBLY", Status: "new"}, "assembly"},
		{"falls back to marketplace", model.Order{OrderID: "1", Status: "Ready_To_Shipment"}, "ready_to_shipment"},
		{"falls back to new", model.Order{OrderID: "1"}, "new"},
		{"placeholder recovered", model.Order{OrderID: "1", InternalStatus: "null"}, "assembly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker(t, model.MarketplaceWildberries)
			pool := []model.Order{tt.order}
			tr.Toggle("1")
			require.Equal(t, tt.want, tr.EffectiveStatus(pool))
		})
	}
}

func TestEffectiveStatusEmptyAndMixed(t *testing.T) {
	tr := newTracker(t, model.MarketplaceOzon)
	pool := []model.Order{
		{OrderID: "a", Status: "new"},
		{OrderID: "b", Status: "NEW"},
		{OrderID: "c", Status: "processing"},
	}
	require.Equal(t, "new", tr.EffectiveStatus(pool))

	tr.Toggle("a")
	tr.Toggle("b")
	require.Equal(t, "new", tr.EffectiveStatus(pool))
	require.Equal(t, workflow.Target{Status: "processing"}, tr.NextAction(pool))

	tr.Toggle("c")
	require.Equal(t, "mixed", tr.EffectiveStatus(pool))
	require.Equal(t, workflow.Target{Status: "new"}, tr.NextAction(pool))
}

func TestToggleAndClear(t *testing.T) {
	tr := newTracker(t, model.MarketplaceYandex)

	require.True(t, tr.Toggle("1"))
	require.True(t, tr.Toggle("2"))
	require.False(t, tr.Toggle(""))
	require.Equal(t, []string{"1", "2"}, tr.IDs())

	require.False(t, tr.Toggle("1"))
	require.Equal(t, []string{"2"}, tr.IDs())
	require.False(t, tr.IsSelected("1"))

	tr.Clear()
	require.Zero(t, tr.Len())
}

func TestSelectAllUsesGivenPool(t *testing.T) {
	tr := newTracker(t, model.MarketplaceOzon)
	filtered := []model.Order{
		{OrderID: "1"}, {OrderID: "2"}, {ID: "internal-3"}, {},
	}

	tr.SelectAll(filtered)
	require.Equal(t, []string{"1", "2", "internal-3"}, tr.IDs())

	full := append(filtered, model.Order{OrderID: "4"})
	require.Len(t, tr.SelectedData(full), 3)
}
