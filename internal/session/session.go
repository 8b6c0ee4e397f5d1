// Package session keeps the per-operator dashboard state between requests:
// loaded orders, selections and table view per marketplace.
package session

import (
	"sync"
	"time"

	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/panel"
	"github.com/iurnickita/sellerdesk/internal/selection"
	"github.com/iurnickita/sellerdesk/internal/table"
	"github.com/iurnickita/sellerdesk/internal/workflow"
)

// View is the table state the operator last asked for.
type View struct {
	Filter    table.Filter        `json:"filter"`
	SortField string              `json:"sortField,omitempty"`
	SortDir   table.SortDirection `json:"sortDir,omitempty"`
	Page      int                 `json:"page"`
	PageSize  int                 `json:"pageSize"`
}

type board struct {
	legalEntityID int64
	loaded        bool
	loadedAt      time.Time
	orders        []model.Order
	tracker       *selection.Tracker
	view          View
}

// Session is safe for concurrent use. Network calls are made by the caller
// outside of it.
type Session struct {
	Operator string
	// Panels show the progress of the operator's long operations.
	Panels *panel.Board

	mu     sync.Mutex
	active model.Marketplace
	boards map[model.Marketplace]*board
	seen   time.Time
}

func newSession(operator string) *Session {
	s := &Session{
		Operator: operator,
		Panels:   panel.NewBoard(),
		active:   model.MarketplaceWildberries,
		boards:   make(map[model.Marketplace]*board),
	}
	for _, mp := range model.Marketplaces() {
		wf, _ := workflow.For(mp)
		s.boards[mp] = &board{tracker: selection.NewTracker(wf), view: View{Page: 1}}
	}
	return s
}

func (s *Session) board(mp model.Marketplace) (*board, error) {
	b, ok := s.boards[mp]
	if !ok {
		return nil, model.ErrUnknownMarketplace
	}
	return b, nil
}

func (s *Session) Active() model.Marketplace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetActive switches the active marketplace. Selections of every
// marketplace are dropped on a real switch.
func (s *Session) SetActive(mp model.Marketplace) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.board(mp); err != nil {
		return false, err
	}
	if s.active == mp {
		return false, nil
	}
	s.active = mp
	for _, b := range s.boards {
		b.tracker.Clear()
	}
	return true, nil
}

// SetOrders replaces the orders of a marketplace. Loading another legal
// entity drops the selection and resets the page.
func (s *Session) SetOrders(mp model.Marketplace, legalEntityID int64, orders []model.Order, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return err
	}
	if b.loaded && b.legalEntityID != legalEntityID {
		b.tracker.Clear()
		b.view.Page = 1
	}
	b.legalEntityID = legalEntityID
	b.loaded = true
	b.loadedAt = at
	b.orders = table.Dedupe(orders)
	return nil
}

// LegalEntity returns the legal entity whose orders are loaded.
func (s *Session) LegalEntity(mp model.Marketplace) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil || !b.loaded {
		return 0, false
	}
	return b.legalEntityID, true
}

// Orders returns a copy of the loaded, deduplicated orders.
func (s *Session) Orders(mp model.Marketplace) []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return nil
	}
	return append([]model.Order(nil), b.orders...)
}

// UpdateOrders applies fn to the loaded orders with the given identities and
// returns how many were touched.
func (s *Session) UpdateOrders(mp model.Marketplace, ids []string, fn func(*model.Order)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return 0
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	n := 0
	for i := range b.orders {
		if _, ok := set[b.orders[i].Identity()]; ok {
			fn(&b.orders[i])
			n++
		}
	}
	return n
}

func (s *Session) View(mp model.Marketplace) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return View{Page: 1}
	}
	return b.view
}

func (s *Session) SetView(mp model.Marketplace, v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, err := s.board(mp); err == nil {
		b.view = v
	}
}

func (s *Session) Toggle(mp model.Marketplace, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return false, err
	}
	return b.tracker.Toggle(id), nil
}

// SelectAll selects every order of pool.
func (s *Session) SelectAll(mp model.Marketplace, pool []model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return err
	}
	b.tracker.SelectAll(pool)
	return nil
}

func (s *Session) ClearSelection(mp model.Marketplace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return err
	}
	b.tracker.Clear()
	return nil
}

// Selection is a consistent snapshot of one marketplace selection.
type Selection struct {
	IDs             []string        `json:"ids"`
	Orders          []model.Order   `json:"-"`
	EffectiveStatus string          `json:"effectiveStatus"`
	Next            workflow.Target `json:"next"`
}

func (s *Session) Selection(mp model.Marketplace) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.board(mp)
	if err != nil {
		return Selection{}, err
	}
	return Selection{
		IDs:             b.tracker.IDs(),
		Orders:          b.tracker.SelectedData(b.orders),
		EffectiveStatus: b.tracker.EffectiveStatus(b.orders),
		Next:            b.tracker.NextAction(b.orders),
	}, nil
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	s.seen = at
	s.mu.Unlock()
}

func (s *Session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

// Manager owns the sessions of all operators.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session), now: time.Now}
}

// Get returns the operator session, creating it on first use.
func (m *Manager) Get(operator string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[operator]
	if !ok {
		s = newSession(operator)
		m.sessions[operator] = s
	}
	m.mu.Unlock()
	s.touch(m.now())
	return s
}

// Evict drops sessions idle for longer than idle and returns their count.
func (m *Manager) Evict(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	deadline := m.now().Add(-idle)
	n := 0
	for op, s := range m.sessions {
		if s.lastSeen().Before(deadline) {
			delete(m.sessions, op)
			n++
		}
	}
	return n
}
