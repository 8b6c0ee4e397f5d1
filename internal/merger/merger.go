// Package merger combines remote document fragments (PDFs and label images)
// into one PDF. A fragment that cannot be fetched or decoded is logged and
// skipped; the rest of the batch still merges.
package merger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/sellerdesk/internal/merger/config"
	"github.com/iurnickita/sellerdesk/internal/metrics"
)

var (
	ErrNothingToMerge      = errors.New("no document fragments to merge")
	ErrUnsupportedFragment = errors.New("unsupported fragment type")
)

// Fetcher downloads one fragment. Relative URLs are the fetcher's concern.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Document struct {
	Data  []byte
	Pages int
	// Merged fragments, duplicates dropped and fragments skipped on error.
	Merged     int
	Duplicates int
	Skipped    []Skipped
}

type Skipped struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

type Merger struct {
	cfg     config.Config
	fetcher Fetcher
	zaplog  *zap.Logger
	metrics *metrics.Metrics
}

func NewMerger(cfg config.Config, fetcher Fetcher, zaplog *zap.Logger, m *metrics.Metrics) *Merger {
	def := config.Default()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.LabelWidth <= 0 || cfg.LabelHeight <= 0 {
		cfg.LabelWidth, cfg.LabelHeight = def.LabelWidth, def.LabelHeight
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	// pdfcpu не должен писать свой конфиг в домашний каталог
	api.DisableConfigDir()
	return &Merger{cfg: cfg, fetcher: fetcher, zaplog: zaplog, metrics: m}
}

// MergeInOrder concatenates the pages of every fetched fragment in input order.
func (m *Merger) MergeInOrder(ctx context.Context, urls []string) (Document, error) {
	return m.mergeURLs(ctx, urls, false)
}

// MergeDeduplicated is MergeInOrder that drops repeated URLs and repeated
// content.
func (m *Merger) MergeDeduplicated(ctx context.Context, urls []string) (Document, error) {
	return m.mergeURLs(ctx, urls, true)
}

// MergeInline merges fragments already held in memory, e.g. embedded
// barcode images.
func (m *Merger) MergeInline(_ context.Context, blobs [][]byte, dedupe bool) (Document, error) {
	frags := make([]fragment, len(blobs))
	for i, data := range blobs {
		frags[i] = fragment{source: "inline#" + strconv.Itoa(i+1), data: data}
	}
	return m.assemble(Document{}, frags, dedupe)
}

type fragment struct {
	source string
	data   []byte
	err    error
}

func (m *Merger) mergeURLs(ctx context.Context, urls []string, dedupe bool) (Document, error) {
	var doc Document
	seen := make(map[string]struct{}, len(urls))
	frags := make([]fragment, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if dedupe {
			if _, ok := seen[u]; ok {
				doc.Duplicates++
				m.metrics.Fragment(metrics.FragmentDuplicate)
				continue
			}
			seen[u] = struct{}{}
		}
		frags = append(frags, fragment{source: u})
	}

	m.fetchAll(ctx, frags)
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	return m.assemble(doc, frags, dedupe)
}

// fetchAll downloads fragments concurrently into their own slots so the
// append order stays the input order.
func (m *Merger) fetchAll(ctx context.Context, frags []fragment) {
	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)
	for i := range frags {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
			defer cancel()
			frags[i].data, frags[i].err = m.fetcher.Fetch(fctx, frags[i].source)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Merger) assemble(doc Document, frags []fragment, dedupe bool) (Document, error) {
	prints := make(map[string]struct{}, len(frags))
	parts := make([][]byte, 0, len(frags))

	for _, frag := range frags {
		if frag.err != nil {
			m.skip(&doc, frag.source, frag.err)
			continue
		}
		var fp string
		if dedupe {
			fp = m.fingerprint(frag.data)
			if _, ok := prints[fp]; ok {
				doc.Duplicates++
				m.metrics.Fragment(metrics.FragmentDuplicate)
				continue
			}
		}
		pdf, pages, err := m.decode(frag.data)
		if err != nil {
			m.skip(&doc, frag.source, err)
			continue
		}
		if dedupe {
			prints[fp] = struct{}{}
		}
		parts = append(parts, pdf)
		doc.Pages += pages
		doc.Merged++
		m.metrics.Fragment(metrics.FragmentMerged)
	}

	if len(parts) == 0 {
		return doc, ErrNothingToMerge
	}
	data, err := combine(parts)
	if err != nil {
		return doc, fmt.Errorf("merge fragments: %w", err)
	}
	doc.Data = data
	return doc, nil
}

func (m *Merger) skip(doc *Document, source string, err error) {
	m.zaplog.Warn("document fragment skipped",
		zap.String("source", source),
		zap.Error(err),
	)
	m.metrics.Fragment(metrics.FragmentSkipped)
	doc.Skipped = append(doc.Skipped, Skipped{Source: source, Reason: err.Error()})
}

// fingerprint hashes the configured prefix of the payload (or all of it).
func (m *Merger) fingerprint(data []byte) string {
	if n := m.cfg.FingerprintPrefix; n > 0 && n < len(data) {
		data = data[:n]
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// decode turns a fragment into a standalone PDF and counts its pages.
func (m *Merger) decode(data []byte) ([]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty payload", ErrUnsupportedFragment)
	}
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		pages, err := api.PageCount(bytes.NewReader(data), newPDFConfig())
		if err != nil {
			return nil, 0, fmt.Errorf("read pdf: %w", err)
		}
		if pages == 0 {
			return nil, 0, fmt.Errorf("read pdf: no pages")
		}
		return data, pages, nil
	case mtype.Is("image/png"):
		return m.imagePage(data, "PNG")
	case mtype.Is("image/jpeg"):
		return m.imagePage(data, "JPG")
	case mtype.Is("image/gif"):
		return m.imagePage(data, "GIF")
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFragment, mtype.String())
	}
}

// imagePage places a label image on one fixed-size page.
func (m *Merger) imagePage(data []byte, imageType string) ([]byte, int, error) {
	w, h := m.cfg.LabelWidth, m.cfg.LabelHeight
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opt := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("label", opt, bytes.NewReader(data))
	pdf.ImageOptions("label", 0, 0, w, h, false, opt, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("render label image: %w", err)
	}
	return buf.Bytes(), 1, nil
}

func combine(parts [][]byte) ([]byte, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	rsc := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		rsc[i] = bytes.NewReader(p)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(rsc, &buf, false, newPDFConfig()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newPDFConfig() *pdfmodel.Configuration {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return conf
}

// PageCount reports the number of pages of a PDF.
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), newPDFConfig())
}
