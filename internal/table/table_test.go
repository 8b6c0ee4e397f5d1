package table

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/sellerdesk/internal/model"
)

func ozonOrder(posting, article string) model.Order {
	return model.Order{
		Marketplace: model.MarketplaceOzon,
		OrderID:     posting,
		Article:     article,
		Raw:         map[string]any{"posting_number": posting},
	}
}

func identities(orders []model.Order) []string {
	res := make([]string, 0, len(orders))
	for _, o := range orders {
		res = append(res, o.Identity())
	}
	return res
}

func TestDedupeLastWriteWins(t *testing.T) {
	orders := []model.Order{
		ozonOrder("p-1", "old"),
		ozonOrder("p-2", "x"),
		ozonOrder("p-1", "new"),
		{Marketplace: model.MarketplaceOzon},
		{Marketplace: model.MarketplaceOzon},
	}

	res := Dedupe(orders)
	require.Len(t, res, 4)
	require.Equal(t, "p-1", res[0].OrderID)
	require.Equal(t, "new", res[0].Article)
	require.Equal(t, "p-2", res[1].OrderID)
}

func TestDedupeIdempotent(t *testing.T) {
	orders := []model.Order{
		ozonOrder("a", "1"), ozonOrder("b", "2"), ozonOrder("a", "3"),
		ozonOrder("c", "4"), ozonOrder("b", "5"), {Marketplace: model.MarketplaceOzon},
	}
	once := Dedupe(orders)
	require.Equal(t, once, Dedupe(once))
	require.LessOrEqual(t, len(once), len(orders))
}

func TestSortDates(t *testing.T) {
	orders := []model.Order{
		{OrderID: "1", CreatedAt: "02-01-2024 10:00:00"},
		{OrderID: "2", CreatedAt: "2023-12-31T23:00:00Z"},
		{OrderID: "3"},
		{OrderID: "4", CreatedAt: "2024-01-01"},
	}

	asc := Sort(orders, "createdAt", SortDirectionAsc)
	require.Equal(t, []string{"3", "2", "4", "1"}, identities(asc))

	desc := Sort(orders, "createdAt", SortDirectionDesc)
	require.Equal(t, []string{"1", "4", "2", "3"}, identities(desc))

	require.Equal(t, []string{"1", "2", "3", "4"}, identities(orders), "input must not be reordered")
}

func TestSortNumericTreatsGarbageAsZero(t *testing.T) {
	orders := []model.Order{
		{OrderID: "1", Raw: map[string]any{"total": "150.5"}},
		{OrderID: "2", Raw: map[string]any{"total": "n/a"}},
		{OrderID: "3", Raw: map[string]any{"total": 20.0}},
		{OrderID: "4", Price: decimal.NewFromInt(3)},
	}
	require.Equal(t, []string{"2", "4", "3", "1"}, identities(Sort(orders, "total", SortDirectionAsc)))
	require.Equal(t, "4", Sort(orders, "price", SortDirectionDesc)[0].OrderID)
}

func TestSortStringsCaseInsensitive(t *testing.T) {
	orders := []model.Order{
		{OrderID: "1", Article: "banana"},
		{OrderID: "2", Article: "Apple"},
		{OrderID: "3", Article: ""},
		{OrderID: "4", Article: "apple"},
	}
	require.Equal(t, []string{"3", "2", "4", "1"}, identities(Sort(orders, "article", SortDirectionAsc)))
	require.Equal(t, []string{"1", "2", "4", "3"}, identities(Sort(orders, "article", SortDirectionDesc)))
}

func TestSortNestedRawField(t *testing.T) {
	orders := []model.Order{
		{OrderID: "1", Raw: map[string]any{"delivery": map[string]any{"region": "Омск"}}},
		{OrderID: "2", Raw: map[string]any{"delivery": map[string]any{"region": "Архангельск"}}},
	}
	require.Equal(t, []string{"2", "1"}, identities(Sort(orders, "delivery.region", SortDirectionAsc)))
}

func TestPaginateRoundTrip(t *testing.T) {
	var orders []model.Order
	for i := 0; i < 23; i++ {
		orders = append(orders, ozonOrder(fmt.Sprintf("p-%02d", i%19), fmt.Sprintf("sku-%d", 23-i)))
	}
	want := Sort(Dedupe(orders), "article", SortDirectionAsc)

	first := Paginate(want, 1, 5)
	require.Equal(t, 4, first.TotalPages)

	var got []model.Order
	for p := 1; p <= first.TotalPages; p++ {
		page := Paginate(want, p, 5)
		require.False(t, page.Clamped)
		got = append(got, page.Items...)
	}
	require.Equal(t, want, got)
}

func TestPaginateClampsToFirstPage(t *testing.T) {
	orders := []model.Order{ozonOrder("a", ""), ozonOrder("b", ""), ozonOrder("c", "")}

	page := Paginate(orders, 5, 2)
	require.True(t, page.Clamped)
	require.Equal(t, 1, page.Page)
	require.Equal(t, []string{"a", "b"}, identities(page.Items))

	empty := Paginate(nil, 3, 10)
	require.Equal(t, 1, empty.Page)
	require.Zero(t, empty.TotalPages)
	require.Empty(t, empty.Items)
}

func TestFilter(t *testing.T) {
	orders := []model.Order{
		{OrderID: "1", Status: "new", Article: "MUG-1"},
		{OrderID: "2", Status: "processing", Article: "mug-2"},
		{OrderID: "3", Status: "new", ProductName: "Тарелка"},
	}
	statusOf := func(o model.Order) string { return o.Status }

	require.Len(t, Filter{}.Apply(orders, statusOf), 3)
	require.Equal(t, []string{"1", "3"}, identities(Filter{Status: "NEW"}.Apply(orders, statusOf)))
	require.Equal(t, []string{"1", "2"}, identities(Filter{Query: "mug"}.Apply(orders, statusOf)))
	require.Equal(t, []string{"3"}, identities(Filter{Status: "new", Query: "тарел"}.Apply(orders, statusOf)))
}

func TestParseTime(t *testing.T) {
	ts, ok := ParseTime("05-03-2024 07:08:09")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC), ts)

	_, ok = ParseTime("32-13-2024")
	require.False(t, ok)
	require.Zero(t, ParseDate("soon"))

	require.Equal(t, "05.03.2024 07:08", FormatDate("05-03-2024 07:08:09"))
	require.Equal(t, "soon", FormatDate("soon"))
}
