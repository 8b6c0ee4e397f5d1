package model

import (
	"errors"
	"strings"
	"time"
)

// Маркетплейсы

type Marketplace string

const (
	MarketplaceWildberries Marketplace = "wildberries"
	MarketplaceOzon        Marketplace = "ozon"
	MarketplaceYandex      Marketplace = "yandex"
)

var ErrUnknownMarketplace = errors.New("unknown marketplace")

// Marketplaces lists every supported marketplace in display order.
func Marketplaces() []Marketplace {
	return []Marketplace{MarketplaceWildberries, MarketplaceOzon, MarketplaceYandex}
}

func ParseMarketplace(s string) (Marketplace, error) {
	mp := Marketplace(strings.ToLower(strings.TrimSpace(s)))
	switch mp {
	case MarketplaceWildberries, MarketplaceOzon, MarketplaceYandex:
		return mp, nil
	default:
		return "", ErrUnknownMarketplace
	}
}

// Title is used as the {Source} part of export file names.
func (mp Marketplace) Title() string {
	switch mp {
	case MarketplaceWildberries:
		return "Wildberries"
	case MarketplaceOzon:
		return "Ozon"
	case MarketplaceYandex:
		return "YandexMarket"
	default:
		return string(mp)
	}
}

// Юрлица

type LegalEntity struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	TaxID string `json:"inn"`
}

// Журнал

type StatusChange struct {
	ID          int64       `json:"id"`
	Operator    string      `json:"operator"`
	Marketplace Marketplace `json:"marketplace"`
	OrderIDs    []string    `json:"orderIds"`
	FromStatus  string      `json:"fromStatus"`
	ToStatus    string      `json:"toStatus"`
	ChangedAt   time.Time   `json:"changedAt"`
}

type ReportExport struct {
	ID          int64       `json:"id"`
	Operator    string      `json:"operator"`
	Marketplace Marketplace `json:"marketplace"`
	Kind        string      `json:"kind"`
	Filename    string      `json:"filename"`
	Items       int         `json:"items"`
	Skipped     int         `json:"skipped"`
	ExportedAt  time.Time   `json:"exportedAt"`
}
