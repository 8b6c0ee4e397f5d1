package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iurnickita/sellerdesk/internal/merger"
	mergerConfig "github.com/iurnickita/sellerdesk/internal/merger/config"
	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/report/config"
)

type mapFetcher map[string][]byte

func (f mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f[url]
	if !ok {
		return nil, errors.New("status 404")
	}
	return data, nil
}

var fixedNow = time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC)

func newTestGenerator(t *testing.T, docs mapFetcher, cfg config.Config) *Generator {
	t.Helper()
	m := merger.NewMerger(mergerConfig.Default(), docs, nil, nil)
	g := NewGenerator(cfg, m, nil, nil)
	g.now = func() time.Time { return fixedNow }
	return g
}

func labelPDF(t *testing.T, text string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "mm", "A6", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Cell(40, 10, text)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func barcodePNG(t *testing.T, shade uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 30, 10))
	for x := 0; x < 30; x++ {
		img.SetGray(x, x%10, color.Gray{Y: shade})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func order(id, article, name string) model.Order {
	return model.Order{
		Marketplace: model.MarketplaceOzon,
		OrderID:     id,
		Article:     article,
		ProductName: name,
		Price:       decimal.NewFromInt(100),
		CreatedAt:   "2024-03-01T10:00:00Z",
		Status:      "awaiting_packaging",
	}
}

func TestSummaryRowsGroupByFirstAppearance(t *testing.T) {
	rows := SummaryRows([]model.Order{
		order("1", "B-2", "Чашка"),
		order("2", "A-1", "Ложка"),
		order("3", "B-2", "Чашка синяя"),
		order("4", "B-2", ""),
	})
	require.Equal(t, []SummaryRow{
		{Article: "B-2", ProductName: "Чашка", Count: 3},
		{Article: "A-1", ProductName: "Ложка", Count: 1},
	}, rows)
}

func TestSummarySpreadsheet(t *testing.T) {
	g := newTestGenerator(t, mapFetcher{}, config.Default())

	a, err := g.Summary(model.MarketplaceOzon, []model.Order{
		order("1", "A-1", "Ложка"),
		order("2", "A-1", "Ложка"),
		order("3", "C-3", "Нож"),
	})
	require.NoError(t, err)
	require.Equal(t, "Ozon_summary_2024-03-05T14-07-09.123Z.xlsx", a.Filename)
	require.Equal(t, ContentTypeXLSX, a.ContentType)
	require.Equal(t, 2, a.Items)

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Equal(t, []string{"№", "Артикул", "Наименование", "Количество"}, rows[0])
	require.Equal(t, []string{"1", "A-1", "Ложка", "2"}, rows[1])
	require.Equal(t, []string{"2", "C-3", "Нож", "1"}, rows[2])
	require.Equal(t, "3", rows[3][3])
}

func TestListingPaginates(t *testing.T) {
	cfg := config.Default()
	cfg.RowsPerPage = 10
	g := newTestGenerator(t, mapFetcher{}, cfg)

	orders := make([]model.Order, 0, 23)
	for i := 0; i < 23; i++ {
		orders = append(orders, order(fmt.Sprint(i), fmt.Sprintf("ART-%02d", i), "Товар с очень длинным наименованием для проверки обрезки"))
	}
	a, err := g.Listing(model.MarketplaceYandex, orders)
	require.NoError(t, err)
	require.Equal(t, 23, a.Items)
	require.True(t, strings.HasPrefix(a.Filename, "YandexMarket_listing_"))

	pages, err := merger.PageCount(a.Data)
	require.NoError(t, err)
	require.Equal(t, 3, pages)
}

func TestListingRow(t *testing.T) {
	g := newTestGenerator(t, mapFetcher{}, config.Default())
	o := order("77", "A-1", "Ложка")
	o.InternalStatus = "assembly"
	o.SupplyID = "WB-GI-1"

	row := g.ListingRow(5, o)
	require.Equal(t, "5", row[0])
	require.Equal(t, "77", row[1])
	require.Equal(t, "01.03.2024 10:00", row[5])
	require.Equal(t, "assembly", row[6])
	require.Equal(t, "WB-GI-1", row[7])
}

func TestMoneyHasNoFraction(t *testing.T) {
	g := newTestGenerator(t, mapFetcher{}, config.Default())
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}
	require.Equal(t, "1234568₽", strip(g.Money(decimal.RequireFromString("1234567.5"))))
	require.Equal(t, "0₽", strip(g.Money(decimal.Zero)))

	cfg := config.Default()
	cfg.Currency = "USD"
	g = newTestGenerator(t, mapFetcher{}, cfg)
	require.Equal(t, "42$", strip(g.Money(decimal.RequireFromString("41.7"))))

	// неизвестный код: рубли
	cfg.Currency = "XYZW"
	g = newTestGenerator(t, mapFetcher{}, cfg)
	require.Equal(t, "10₽", strip(g.Money(decimal.NewFromInt(10))))
}

func TestGenerateEmptySelection(t *testing.T) {
	g := newTestGenerator(t, mapFetcher{}, config.Default())
	_, err := g.Generate(context.Background(), model.MarketplaceOzon, nil)
	require.ErrorIs(t, err, ErrEmptySelection)

	_, _, err = g.Labels(context.Background(), model.MarketplaceOzon, []model.Order{})
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestGenerateWithoutLabelsWarns(t *testing.T) {
	g := newTestGenerator(t, mapFetcher{}, config.Default())
	set, err := g.Generate(context.Background(), model.MarketplaceOzon, []model.Order{order("1", "A", "x")})
	require.NoError(t, err)
	require.Len(t, set.Artifacts, 2)
	require.Equal(t, KindSummary, set.Artifacts[0].Kind)
	require.Equal(t, KindListing, set.Artifacts[1].Kind)
	require.Len(t, set.Warnings, 1)
}

func TestGenerateLabelsSkipsFailures(t *testing.T) {
	docs := mapFetcher{
		"https://labels/1.pdf": labelPDF(t, "1"),
		"https://labels/2.pdf": labelPDF(t, "2"),
	}
	g := newTestGenerator(t, docs, config.Default())

	o1 := order("1", "b", "x")
	o1.StickerURL = "https://labels/1.pdf"
	o2 := order("2", "A", "y")
	o2.StickerURL = "https://labels/2.pdf"
	o3 := order("3", "c", "z")
	o3.StickerURL = "https://labels/missing.pdf"
	o4 := order("4", "a", "y")
	o4.StickerURL = "https://labels/2.pdf"

	set, err := g.Generate(context.Background(), model.MarketplaceOzon, []model.Order{o1, o2, o3, o4})
	require.NoError(t, err)
	require.Len(t, set.Artifacts, 3)
	labels := set.Artifacts[2]
	require.Equal(t, KindLabels, labels.Kind)
	require.Equal(t, 2, labels.Items)
	require.Equal(t, 1, labels.Skipped)
	require.Len(t, set.Skipped, 1)
	require.Equal(t, "https://labels/missing.pdf", set.Skipped[0].Source)
}

func TestBarcodesDeduplicated(t *testing.T) {
	g := newTestGenerator(t, mapFetcher{}, config.Default())
	supply := barcodePNG(t, 20)

	var orders []model.Order
	for i, code := range []string{supply, "data:image/png;base64," + supply, barcodePNG(t, 200), "%%%"} {
		o := order(fmt.Sprint(i), "A", "x")
		o.Marketplace = model.MarketplaceWildberries
		o.SupplyBarcode = code
		orders = append(orders, o)
	}

	a, doc, err := g.Barcodes(context.Background(), model.MarketplaceWildberries, orders)
	require.NoError(t, err)
	require.Equal(t, KindBarcodes, a.Kind)
	require.Equal(t, 2, a.Items)
	require.Equal(t, 1, doc.Duplicates)
	require.Len(t, doc.Skipped, 1)
	require.Equal(t, "3", doc.Skipped[0].Source)
}

func TestSortByArticleStable(t *testing.T) {
	in := []model.Order{order("1", "b", ""), order("2", "A", ""), order("3", "a", ""), order("4", "B", "")}
	out := SortByArticle(in)
	var ids []string
	for _, o := range out {
		ids = append(ids, o.OrderID)
	}
	require.Equal(t, []string{"2", "3", "1", "4"}, ids)
	require.Equal(t, "1", in[0].OrderID)
}
