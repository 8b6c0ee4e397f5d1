// Package workflow holds the per-marketplace order status transition rules.
// Nothing here performs I/O: callers compute the next status and decide
// whether to send it upstream.
package workflow

import (
	"errors"
	"sort"
	"strings"

	"github.com/iurnickita/sellerdesk/internal/model"
)

const (
	StatusNew             = "new"
	StatusAssembly        = "assembly"
	StatusReadyToShipment = "ready_to_shipment"
	StatusProcessing      = "processing"
	StatusReadyToShip     = "ready_to_ship"
	StatusShipped         = "shipped"

	// StatusMixed is the effective status of a selection whose orders disagree.
	StatusMixed = "mixed"
)

var (
	ErrEmptySelection      = errors.New("no orders selected")
	ErrMixedInternalStatus = errors.New("selected orders have different internal statuses")
	ErrTerminalStatus      = errors.New("orders are already in a terminal status")
)

// ValidationError is returned before any network call is made.
type ValidationError struct {
	Err      error
	Statuses []string
}

func (e *ValidationError) Error() string {
	if len(e.Statuses) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Statuses, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Target is the status (and, for marketplaces that couple them, sub-status)
// an order moves to.
type Target struct {
	Status    string `json:"status"`
	SubStatus string `json:"subStatus,omitempty"`
}

// Key encodes the target the same way StatusOf encodes an order.
func (t Target) Key() string {
	if t.SubStatus != "" {
		return t.SubStatus
	}
	return t.Status
}

// Workflow is the status ruleset of one marketplace.
type Workflow interface {
	Marketplace() model.Marketplace
	// StatusOf returns the lower-cased status that represents the order in
	// selections and guards.
	StatusOf(order model.Order) string
	Next(current string) Target
	// TracksInternal reports whether orders carry a status of our own that
	// may diverge from the marketplace one.
	TracksInternal() bool
	// ReportsOn reports whether moving to target produces shipment paperwork.
	ReportsOn(target Target) bool
}

var workflows = map[model.Marketplace]Workflow{
	model.MarketplaceWildberries: wildberries{},
	model.MarketplaceOzon:        ozon{},
	model.MarketplaceYandex:      yandex{},
}

func For(mp model.Marketplace) (Workflow, error) {
	wf, ok := workflows[mp]
	if !ok {
		return nil, model.ErrUnknownMarketplace
	}
	return wf, nil
}

// NextStatus maps a current (effective) status to the next one.
// Unknown marketplaces leave the status untouched.
func NextStatus(current string, mp model.Marketplace) string {
	wf, err := For(mp)
	if err != nil {
		return current
	}
	return wf.Next(strings.ToLower(strings.TrimSpace(current))).Key()
}

// IsTerminal reports whether current maps to itself.
func IsTerminal(wf Workflow, current string) bool {
	return current != StatusMixed && wf.Next(current).Key() == current
}

// Guard rejects a multi-order action when the marketplace tracks an internal
// status and the selected orders do not share it.
func Guard(wf Workflow, orders []model.Order) error {
	if len(orders) == 0 {
		return &ValidationError{Err: ErrEmptySelection}
	}
	if !wf.TracksInternal() {
		return nil
	}
	set := make(map[string]struct{})
	for _, order := range orders {
		set[wf.StatusOf(order)] = struct{}{}
	}
	if len(set) <= 1 {
		return nil
	}
	statuses := make([]string, 0, len(set))
	for st := range set {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	return &ValidationError{Err: ErrMixedInternalStatus, Statuses: statuses}
}

// resolve returns the first non-empty value lower-cased, or "new".
func resolve(values ...string) string {
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			return v
		}
	}
	return StatusNew
}
