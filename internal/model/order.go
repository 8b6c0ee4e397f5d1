package model

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Заказ маркетплейса, приведённый к общему виду

type Order struct {
	Marketplace    Marketplace     `json:"marketplace"`
	OrderID        string          `json:"orderId"`
	ID             string          `json:"id,omitempty"`
	Status         string          `json:"status"`
	InternalStatus string          `json:"internalStatus,omitempty"`
	SubStatus      string          `json:"subStatus,omitempty"`
	Article        string          `json:"article"`
	ProductName    string          `json:"productName"`
	Price          decimal.Decimal `json:"price"`
	CreatedAt      string          `json:"createdAt"`
	SupplyID       string          `json:"supplyId,omitempty"`
	StickerURL     string          `json:"stickerUrl,omitempty"`
	SupplyBarcode  string          `json:"-"`
	TokenID        int64           `json:"marketplaceTokenId,omitempty"`
	Raw            map[string]any  `json:"-"`
}

// Identity returns the primary external id, falling back to the internal id.
// Orders without either cannot be selected reliably.
func (o Order) Identity() string {
	if o.OrderID != "" {
		return o.OrderID
	}
	return o.ID
}

// DedupKey returns the first non-empty identity-like field of the raw record
// in marketplace-specific precedence.
func (o Order) DedupKey() string {
	if key := FirstString(o.Raw, SchemaFor(o.Marketplace).IdentityFields...); key != "" {
		return key
	}
	return o.Identity()
}

// Field resolves a sortable/displayable field: logical names first, then a
// dotted path into the raw record.
func (o Order) Field(name string) string {
	switch name {
	case "orderId":
		return o.OrderID
	case "id":
		if o.ID != "" {
			return o.ID
		}
	case "status":
		return o.Status
	case "internalStatus":
		return o.InternalStatus
	case "subStatus":
		return o.SubStatus
	case "article":
		return o.Article
	case "productName":
		return o.ProductName
	case "price":
		return o.Price.String()
	case "createdAt":
		return o.CreatedAt
	case "supplyId":
		return o.SupplyID
	}
	v, ok := Lookup(o.Raw, name)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Schema lists candidate raw paths per logical field; first non-empty wins.
type Schema struct {
	IdentityFields []string
	OrderID        []string
	ID             []string
	Status         []string
	InternalStatus []string
	SubStatus      []string
	Article        []string
	ProductName    []string
	Price          []string
	CreatedAt      []string
	SupplyID       []string
	StickerURL     []string
	SupplyBarcode  []string
	TokenID        []string
}

var schemas = map[Marketplace]Schema{
	MarketplaceWildberries: {
		IdentityFields: []string{"rid", "id", "orderUid"},
		OrderID:        []string{"id", "orderId"},
		ID:             []string{"internalId"},
		Status:         []string{"wbStatus", "supplierStatus", "status"},
		InternalStatus: []string{"internalStatus", "internal_status"},
		Article:        []string{"article", "vendorCode", "supplierArticle", "skus.0"},
		ProductName:    []string{"productName", "name", "subject"},
		Price:          []string{"price", "convertedPrice"},
		CreatedAt:      []string{"createdAt", "created_at"},
		SupplyID:       []string{"supplyId", "supply.id"},
		StickerURL:     []string{"stickerUrl", "sticker.url", "sticker_url"},
		SupplyBarcode:  []string{"supplyBarcode", "supply.barcode"},
		TokenID:        []string{"marketplaceTokenId", "tokenId"},
	},
	MarketplaceOzon: {
		IdentityFields: []string{"posting_number", "order_id"},
		OrderID:        []string{"posting_number", "order_number", "order_id"},
		ID:             []string{"internalId", "id"},
		Status:         []string{"status"},
		Article:        []string{"offer_id", "products.0.offer_id", "products.0.sku"},
		ProductName:    []string{"products.0.name", "name"},
		Price:          []string{"products.0.price", "price"},
		CreatedAt:      []string{"in_process_at", "created_at", "createdAt"},
		SupplyID:       []string{"supplyId", "delivery_method.warehouse_id"},
		StickerURL:     []string{"labelUrl", "label_url"},
		TokenID:        []string{"marketplaceTokenId", "tokenId"},
	},
	MarketplaceYandex: {
		IdentityFields: []string{"shipmentId", "delivery.shipments.0.id", "id"},
		OrderID:        []string{"id", "orderId"},
		ID:             []string{"internalId"},
		Status:         []string{"status"},
		SubStatus:      []string{"substatus", "subStatus"},
		Article:        []string{"items.0.offerId", "offerId", "items.0.shopSku"},
		ProductName:    []string{"items.0.offerName", "offerName"},
		Price:          []string{"items.0.price", "itemsTotal", "price"},
		CreatedAt:      []string{"creationDate", "createdAt"},
		SupplyID:       []string{"supplyId", "delivery.shipments.0.id"},
		StickerURL:     []string{"labelUrl", "label_url"},
		TokenID:        []string{"marketplaceTokenId", "tokenId"},
	},
}

func SchemaFor(mp Marketplace) Schema {
	return schemas[mp]
}

// NormalizeOrder builds an Order from a raw upstream record.
func NormalizeOrder(mp Marketplace, raw map[string]any) Order {
	s := SchemaFor(mp)
	order := Order{
		Marketplace:    mp,
		OrderID:        FirstString(raw, s.OrderID...),
		ID:             FirstString(raw, s.ID...),
		Status:         FirstString(raw, s.Status...),
		InternalStatus: FirstString(raw, s.InternalStatus...),
		SubStatus:      FirstString(raw, s.SubStatus...),
		Article:        FirstString(raw, s.Article...),
		ProductName:    FirstString(raw, s.ProductName...),
		CreatedAt:      FirstString(raw, s.CreatedAt...),
		SupplyID:       FirstString(raw, s.SupplyID...),
		StickerURL:     FirstString(raw, s.StickerURL...),
		SupplyBarcode:  FirstString(raw, s.SupplyBarcode...),
		Raw:            raw,
	}
	if price, err := decimal.NewFromString(FirstString(raw, s.Price...)); err == nil {
		order.Price = price
	}
	if token, err := strconv.ParseInt(FirstString(raw, s.TokenID...), 10, 64); err == nil {
		order.TokenID = token
	}
	return order
}

// Lookup walks a dotted path through nested objects and arrays.
func Lookup(raw map[string]any, path string) (any, bool) {
	if raw == nil || path == "" {
		return nil, false
	}
	if v, ok := raw[path]; ok {
		return v, true
	}
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func FirstString(raw map[string]any, paths ...string) string {
	for _, path := range paths {
		v, ok := Lookup(raw, path)
		if !ok {
			continue
		}
		if s := strings.TrimSpace(Stringify(v)); s != "" {
			return s
		}
	}
	return ""
}

// Stringify renders scalar JSON values; objects and arrays yield "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
