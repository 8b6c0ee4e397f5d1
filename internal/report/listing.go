package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/table"
)

type column struct {
	title string
	width float64
	align string
}

// A4 альбомная: 297 - 2*10 мм полей
var listingColumns = []column{
	{"№", 10, "C"},
	{"Заказ", 40, "L"},
	{"Артикул", 40, "L"},
	{"Наименование", 90, "L"},
	{"Цена", 25, "R"},
	{"Создан", 30, "C"},
	{"Статус", 25, "L"},
	{"Поставка", 17, "L"},
}

const (
	listingRowHeight = 6.5
	pagesAlias       = "{nb}"
)

// ListingRow returns the printed cells of one order.
func (g *Generator) ListingRow(n int, o model.Order) []string {
	status := o.Status
	if o.InternalStatus != "" {
		status = o.InternalStatus
	}
	return []string{
		strconv.Itoa(n),
		o.Identity(),
		o.Article,
		o.ProductName,
		g.Money(o.Price),
		table.FormatDate(o.CreatedAt),
		status,
		o.SupplyID,
	}
}

// Listing renders every order as a table row, RowsPerPage rows per page,
// with the header repeated on each page and a page X / Y footer.
func (g *Generator) Listing(mp model.Marketplace, orders []model.Order) (Artifact, error) {
	if len(orders) == 0 {
		return Artifact{}, ErrEmptySelection
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetCreationDate(g.now())
	pdf.AliasNbPages(pagesAlias)

	family, tr := g.fonts(pdf)
	title := fmt.Sprintf("%s: заказы (%d)", mp.Title(), len(orders))
	pdf.SetTitle(title, true)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont(family, "B", 12)
		pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont(family, "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range listingColumns {
			pdf.CellFormat(c.width, listingRowHeight, tr(c.title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(family, "", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d / %s", pdf.PageNo(), pagesAlias), "", 0, "R", false, 0, "")
	})

	n := 0
	for page := 1; ; page++ {
		p := table.Paginate(orders, page, g.cfg.RowsPerPage)
		if p.Clamped {
			break
		}
		pdf.AddPage()
		pdf.SetFont(family, "", 8)
		for _, o := range p.Items {
			n++
			for i, cell := range g.ListingRow(n, o) {
				c := listingColumns[i]
				pdf.CellFormat(c.width, listingRowHeight, fit(pdf, tr, cell, c.width), "1", 0, c.align, false, 0, "")
			}
			pdf.Ln(-1)
		}
		if page >= p.TotalPages {
			break
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Kind:        KindListing,
		Filename:    g.Filename(mp, KindListing, "pdf"),
		ContentType: ContentTypePDF,
		Items:       n,
		Data:        buf.Bytes(),
	}, nil
}

// fonts registers the configured TTF and returns its family with an identity
// translator; without one it falls back to core Helvetica and cp1252.
func (g *Generator) fonts(pdf *fpdf.Fpdf) (string, func(string) string) {
	if g.cfg.FontPath != "" {
		pdf.AddUTF8Font("body", "", g.cfg.FontPath)
		pdf.AddUTF8Font("body", "B", g.cfg.FontPath)
		return "body", func(s string) string { return s }
	}
	return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
}

// fit translates text and shortens it to the cell width, marking the cut
// with "..".
func fit(pdf *fpdf.Fpdf, tr func(string) string, s string, width float64) string {
	limit := width - 2
	if out := tr(s); pdf.GetStringWidth(out) <= limit {
		return out
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(tr(string(r)+"..")) > limit {
		r = r[:len(r)-1]
	}
	return tr(string(r) + "..")
}
