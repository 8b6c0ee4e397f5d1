package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/iurnickita/sellerdesk/internal/model"
)

const summarySheet = "Сводка"

// SummaryRow is one article of the summary with the number of orders.
type SummaryRow struct {
	Article     string `json:"article"`
	ProductName string `json:"productName"`
	Count       int    `json:"count"`
}

// SummaryRows groups orders by article in order of first appearance. The
// product name is taken from the first order of the group.
func SummaryRows(orders []model.Order) []SummaryRow {
	index := make(map[string]int)
	var rows []SummaryRow
	for _, o := range orders {
		if i, ok := index[o.Article]; ok {
			rows[i].Count++
			continue
		}
		index[o.Article] = len(rows)
		rows = append(rows, SummaryRow{Article: o.Article, ProductName: o.ProductName, Count: 1})
	}
	return rows
}

// Summary renders the per-article summary as a spreadsheet.
func (g *Generator) Summary(mp model.Marketplace, orders []model.Order) (Artifact, error) {
	if len(orders) == 0 {
		return Artifact{}, ErrEmptySelection
	}
	rows := SummaryRows(orders)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return Artifact{}, err
	}

	header := []any{"№", "Артикул", "Наименование", "Количество"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return Artifact{}, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Artifact{}, err
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, bold); err != nil {
		return Artifact{}, err
	}

	total := 0
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return Artifact{}, err
		}
		values := []any{i + 1, row.Article, row.ProductName, row.Count}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return Artifact{}, err
		}
		total += row.Count
	}
	footer := []any{"", "", "Итого", total}
	if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", len(rows)+2), &footer); err != nil {
		return Artifact{}, err
	}

	_ = f.SetColWidth(summarySheet, "B", "B", 24)
	_ = f.SetColWidth(summarySheet, "C", "C", 48)
	_ = f.SetPanes(summarySheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Kind:        KindSummary,
		Filename:    g.Filename(mp, KindSummary, "xlsx"),
		ContentType: ContentTypeXLSX,
		Items:       len(rows),
		Data:        buf.Bytes(),
	}, nil
}
