// Package table derives what the orders table shows: deduplicated,
// filtered, sorted and paginated views over an in-memory order collection.
package table

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/iurnickita/sellerdesk/internal/model"
)

type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

var (
	dateFields = map[string]bool{
		"createdAt":     true,
		"created_at":    true,
		"creationDate":  true,
		"in_process_at": true,
		"shipmentDate":  true,
	}
	numericFields = map[string]bool{
		"price":          true,
		"convertedPrice": true,
		"total":          true,
		"itemsTotal":     true,
		"nmId":           true,
		"quantity":       true,
	}
)

// Dedupe drops orders sharing a dedup key. The later record wins but keeps
// the position of the first one. Orders without a key are kept as is.
func Dedupe(orders []model.Order) []model.Order {
	res := make([]model.Order, 0, len(orders))
	index := make(map[string]int, len(orders))
	for _, order := range orders {
		key := order.DedupKey()
		if key == "" {
			res = append(res, order)
			continue
		}
		if i, ok := index[key]; ok {
			res[i] = order
			continue
		}
		index[key] = len(res)
		res = append(res, order)
	}
	return res
}

type Filter struct {
	Status string
	Query  string
}

// StatusFunc reports the status an order is filtered by.
type StatusFunc func(model.Order) string

// Apply keeps orders matching the status (exact, case-insensitive) and the
// free-text query against id, article and product name.
func (f Filter) Apply(orders []model.Order, statusOf StatusFunc) []model.Order {
	status := strings.ToLower(strings.TrimSpace(f.Status))
	query := strings.ToLower(strings.TrimSpace(f.Query))
	if status == "" && query == "" {
		return orders
	}
	res := make([]model.Order, 0, len(orders))
	for _, order := range orders {
		if status != "" && statusOf(order) != status {
			continue
		}
		if query != "" && !matches(order, query) {
			continue
		}
		res = append(res, order)
	}
	return res
}

func matches(order model.Order, query string) bool {
	for _, v := range []string{order.OrderID, order.ID, order.Article, order.ProductName, order.SupplyID} {
		if strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

// Sort returns a stably sorted copy. Missing values compare as "" and so
// come first ascending and last descending.
func Sort(orders []model.Order, field string, dir SortDirection) []model.Order {
	res := append([]model.Order(nil), orders...)
	if field == "" {
		return res
	}
	desc := strings.EqualFold(string(dir), string(SortDirectionDesc))

	switch {
	case dateFields[field]:
		keys := make([]int64, len(res))
		for i := range res {
			keys[i] = ParseDate(res[i].Field(field))
		}
		sortBy(res, func(i, j int) int { return cmpInt(keys[i], keys[j]) }, desc)
	case numericFields[field]:
		keys := make([]float64, len(res))
		for i := range res {
			keys[i] = parseNumber(res[i].Field(field))
		}
		sortBy(res, func(i, j int) int { return cmpFloat(keys[i], keys[j]) }, desc)
	default:
		keys := make([]string, len(res))
		for i := range res {
			keys[i] = strings.ToLower(res[i].Field(field))
		}
		col := collate.New(language.Russian, collate.IgnoreCase)
		sortBy(res, func(i, j int) int { return col.CompareString(keys[i], keys[j]) }, desc)
	}
	return res
}

// sortBy sorts orders together with the precomputed keys cmp indexes into.
func sortBy(orders []model.Order, cmp func(i, j int) int, desc bool) {
	idx := make([]int, len(orders))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := cmp(idx[a], idx[b])
		if desc {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]model.Order, len(orders))
	for i, j := range idx {
		sorted[i] = orders[j]
	}
	copy(orders, sorted)
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type Page struct {
	Items      []model.Order `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalItems int           `json:"totalItems"`
	TotalPages int           `json:"totalPages"`
	// Clamped is set when the requested page no longer existed and page 1
	// was returned instead.
	Clamped bool `json:"clamped,omitempty"`
}

// Paginate cuts one page out of orders. Pages are 1-based.
func Paginate(orders []model.Order, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	total := len(orders)
	pages := int(math.Ceil(float64(total) / float64(pageSize)))

	res := Page{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: pages}
	if page > pages && page > 1 {
		res.Page = 1
		res.Clamped = true
	}

	start := (res.Page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	res.Items = append([]model.Order(nil), orders[start:end]...)
	return res
}
