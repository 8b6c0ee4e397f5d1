// Package report builds the shipment paperwork for a set of selected orders:
// a per-article summary spreadsheet, a paginated order listing and the merged
// label documents.
package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/iurnickita/sellerdesk/internal/merger"
	"github.com/iurnickita/sellerdesk/internal/metrics"
	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/report/config"
)

type Kind string

const (
	KindSummary  Kind = "summary"
	KindListing  Kind = "listing"
	KindLabels   Kind = "labels"
	KindBarcodes Kind = "barcodes"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

var ErrEmptySelection = errors.New("no orders to report on")

// Artifact is one generated downloadable file.
type Artifact struct {
	Kind        Kind   `json:"kind"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Items       int    `json:"items"`
	Skipped     int    `json:"skipped"`
	Data        []byte `json:"-"`
}

// Set is the result of Generate. Warnings describe documents that could not
// be produced without failing the whole set.
type Set struct {
	Artifacts []Artifact       `json:"artifacts"`
	Skipped   []merger.Skipped `json:"skipped,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

type Generator struct {
	cfg     config.Config
	merger  *merger.Merger
	printer *message.Printer
	unit    currency.Unit
	zaplog  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewGenerator(cfg config.Config, m *merger.Merger, zaplog *zap.Logger, mtr *metrics.Metrics) *Generator {
	def := config.Default()
	if cfg.RowsPerPage <= 0 {
		cfg.RowsPerPage = def.RowsPerPage
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		unit = currency.RUB
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.Russian
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &Generator{
		cfg:     cfg,
		merger:  m,
		printer: message.NewPrinter(tag),
		unit:    unit,
		zaplog:  zaplog,
		metrics: mtr,
		now:     time.Now,
	}
}

// Generate produces the full report triplet for the selected orders. Orders
// are sorted by article first so all documents list them in the same order.
func (g *Generator) Generate(ctx context.Context, mp model.Marketplace, orders []model.Order) (Set, error) {
	if len(orders) == 0 {
		return Set{}, ErrEmptySelection
	}
	orders = SortByArticle(orders)
	var set Set

	summary, err := g.Summary(mp, orders)
	if err != nil {
		return Set{}, fmt.Errorf("summary: %w", err)
	}
	set.Artifacts = append(set.Artifacts, summary)

	listing, err := g.Listing(mp, orders)
	if err != nil {
		return Set{}, fmt.Errorf("listing: %w", err)
	}
	set.Artifacts = append(set.Artifacts, listing)

	labels, doc, err := g.Labels(ctx, mp, orders)
	switch {
	case errors.Is(err, merger.ErrNothingToMerge):
		set.Warnings = append(set.Warnings, "no label documents could be merged")
	case err != nil:
		return Set{}, fmt.Errorf("labels: %w", err)
	default:
		set.Artifacts = append(set.Artifacts, labels)
	}
	set.Skipped = append(set.Skipped, doc.Skipped...)

	if mp == model.MarketplaceWildberries {
		barcodes, doc, err := g.Barcodes(ctx, mp, orders)
		switch {
		case errors.Is(err, merger.ErrNothingToMerge):
			// у поставки может не быть штрихкода
		case err != nil:
			return Set{}, fmt.Errorf("barcodes: %w", err)
		default:
			set.Artifacts = append(set.Artifacts, barcodes)
		}
		set.Skipped = append(set.Skipped, doc.Skipped...)
	}

	for _, a := range set.Artifacts {
		g.metrics.ReportGenerated(string(mp), string(a.Kind))
	}
	if len(set.Skipped) > 0 {
		g.zaplog.Warn("report set generated with skipped fragments",
			zap.String("marketplace", string(mp)),
			zap.Int("skipped", len(set.Skipped)),
		)
	}
	return set, nil
}

// Labels merges the per-order sticker documents, dropping repeats.
func (g *Generator) Labels(ctx context.Context, mp model.Marketplace, orders []model.Order) (Artifact, merger.Document, error) {
	if len(orders) == 0 {
		return Artifact{}, merger.Document{}, ErrEmptySelection
	}
	urls := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.StickerURL != "" {
			urls = append(urls, o.StickerURL)
		}
	}
	doc, err := g.merger.MergeDeduplicated(ctx, urls)
	if err != nil {
		return Artifact{}, doc, err
	}
	return g.pdfArtifact(mp, KindLabels, doc), doc, nil
}

// Barcodes merges the supply barcode images embedded in the orders.
func (g *Generator) Barcodes(ctx context.Context, mp model.Marketplace, orders []model.Order) (Artifact, merger.Document, error) {
	if len(orders) == 0 {
		return Artifact{}, merger.Document{}, ErrEmptySelection
	}
	var blobs [][]byte
	var undecodable []merger.Skipped
	for _, o := range orders {
		if o.SupplyBarcode == "" {
			continue
		}
		data, err := decodeInline(o.SupplyBarcode)
		if err != nil {
			undecodable = append(undecodable, merger.Skipped{Source: o.Identity(), Reason: err.Error()})
			continue
		}
		blobs = append(blobs, data)
	}
	doc, err := g.merger.MergeInline(ctx, blobs, true)
	doc.Skipped = append(undecodable, doc.Skipped...)
	if err != nil {
		return Artifact{}, doc, err
	}
	return g.pdfArtifact(mp, KindBarcodes, doc), doc, nil
}

func (g *Generator) pdfArtifact(mp model.Marketplace, kind Kind, doc merger.Document) Artifact {
	return Artifact{
		Kind:        kind,
		Filename:    g.Filename(mp, kind, "pdf"),
		ContentType: ContentTypePDF,
		Items:       doc.Pages,
		Skipped:     len(doc.Skipped),
		Data:        doc.Data,
	}
}

// decodeInline accepts plain base64 or a data URL.
func decodeInline(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, err
}

// Filename follows {Source}_{Kind}_{timestamp}.{ext}; the timestamp is
// ISO 8601 in UTC with colons replaced by dashes.
func (g *Generator) Filename(mp model.Marketplace, kind Kind, ext string) string {
	stamp := g.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.ReplaceAll(stamp, ":", "-")
	return fmt.Sprintf("%s_%s_%s.%s", mp.Title(), kind, stamp, ext)
}

// Money formats a price without fractional digits in the configured locale,
// followed by the narrow symbol of the configured currency.
func (g *Generator) Money(price decimal.Decimal) string {
	rounded := price.Round(0).IntPart()
	return g.printer.Sprint(number.Decimal(rounded, number.MaxFractionDigits(0))) + " " +
		g.printer.Sprint(currency.NarrowSymbol(g.unit))
}

// SortByArticle returns a copy ordered by article, case-insensitively.
// Equal articles keep their relative order.
func SortByArticle(orders []model.Order) []model.Order {
	res := make([]model.Order, len(orders))
	copy(res, orders)
	sort.SliceStable(res, func(i, j int) bool {
		return strings.ToLower(res[i].Article) < strings.ToLower(res[j].Article)
	})
	return res
}
