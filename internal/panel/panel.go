// Package panel tracks the progress of long operations per marketplace so
// the UI can render one status line per (marketplace, operation).
package panel

import (
	"sort"
	"sync"
	"time"

	"github.com/iurnickita/sellerdesk/internal/model"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

type Operation string

const (
	OperationLoadOrders Operation = "load_orders"
	OperationAdvance    Operation = "advance"
	OperationReports    Operation = "reports"
)

type Key struct {
	Marketplace model.Marketplace `json:"marketplace"`
	Operation   Operation         `json:"operation"`
}

type Panel struct {
	Key
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	Skipped   int       `json:"skipped,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Board holds panels; the zero value is not usable, use NewBoard.
type Board struct {
	mu     sync.Mutex
	panels map[Key]Panel
	now    func() time.Time
}

func NewBoard() *Board {
	return &Board{panels: make(map[Key]Panel), now: time.Now}
}

// Start moves the panel to loading. It returns false when the same
// operation is already running, so callers can refuse a double click.
func (b *Board) Start(mp model.Marketplace, op Operation) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := Key{Marketplace: mp, Operation: op}
	if b.panels[key].State == StateLoading {
		return false
	}
	b.panels[key] = Panel{Key: key, State: StateLoading, UpdatedAt: b.now()}
	return true
}

func (b *Board) Succeed(mp model.Marketplace, op Operation, message string, skipped int) {
	b.finish(Panel{Key: Key{mp, op}, State: StateSuccess, Message: message, Skipped: skipped})
}

func (b *Board) Fail(mp model.Marketplace, op Operation, err error) {
	b.finish(Panel{Key: Key{mp, op}, State: StateError, Message: err.Error()})
}

// Finish records the outcome of err: nil is success.
func (b *Board) Finish(mp model.Marketplace, op Operation, err error, message string, skipped int) {
	if err != nil {
		b.Fail(mp, op, err)
		return
	}
	b.Succeed(mp, op, message, skipped)
}

func (b *Board) finish(p Panel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.UpdatedAt = b.now()
	b.panels[p.Key] = p
}

// Reset returns the finished panels of the marketplace to idle. Running
// operations keep their loading panel.
func (b *Board) Reset(mp model.Marketplace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, p := range b.panels {
		if key.Marketplace == mp && p.State != StateLoading {
			delete(b.panels, key)
		}
	}
}

func (b *Board) Get(mp model.Marketplace, op Operation) Panel {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := Key{Marketplace: mp, Operation: op}
	if p, ok := b.panels[key]; ok {
		return p
	}
	return Panel{Key: key, State: StateIdle}
}

// Snapshot returns all non-idle panels ordered by marketplace and operation.
func (b *Board) Snapshot() []Panel {
	b.mu.Lock()
	res := make([]Panel, 0, len(b.panels))
	for _, p := range b.panels {
		res = append(res, p)
	}
	b.mu.Unlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Marketplace != res[j].Marketplace {
			return res[i].Marketplace < res[j].Marketplace
		}
		return res[i].Operation < res[j].Operation
	})
	return res
}
