package selection

import (
	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/workflow"
)

// Tracker holds the selected order identities of one marketplace table.
// It is not safe for concurrent use; the owning session serializes access.
type Tracker struct {
	wf       workflow.Workflow
	selected map[string]struct{}
	order    []string
}

func NewTracker(wf workflow.Workflow) *Tracker {
	return &Tracker{wf: wf, selected: make(map[string]struct{})}
}

// Toggle flips the selection of id and reports whether it is now selected.
// Empty identities are ignored.
func (t *Tracker) Toggle(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := t.selected[id]; ok {
		delete(t.selected, id)
		for i, v := range t.order {
			if v == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		return false
	}
	t.selected[id] = struct{}{}
	t.order = append(t.order, id)
	return true
}

// SelectAll selects every order of pool, which is expected to be the
// filtered set across all pages rather than the visible page.
func (t *Tracker) SelectAll(pool []model.Order) {
	for _, order := range pool {
		id := order.Identity()
		if id == "" {
			continue
		}
		if _, ok := t.selected[id]; ok {
			continue
		}
		t.selected[id] = struct{}{}
		t.order = append(t.order, id)
	}
}

func (t *Tracker) Clear() {
	t.selected = make(map[string]struct{})
	t.order = nil
}

func (t *Tracker) IsSelected(id string) bool {
	_, ok := t.selected[id]
	return ok
}

func (t *Tracker) Len() int {
	return len(t.selected)
}

// IDs returns selected identities in selection order.
func (t *Tracker) IDs() []string {
	return append([]string(nil), t.order...)
}

// SelectedData returns the selected orders of pool in pool order.
func (t *Tracker) SelectedData(pool []model.Order) []model.Order {
	var res []model.Order
	seen := make(map[string]struct{}, len(t.selected))
	for _, order := range pool {
		id := order.Identity()
		if _, ok := t.selected[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, order)
	}
	return res
}

// EffectiveStatus is the single status shared by the selected orders,
// "new" for an empty selection and "mixed" when they disagree.
func (t *Tracker) EffectiveStatus(pool []model.Order) string {
	return EffectiveStatus(t.wf, t.SelectedData(pool))
}

// NextAction is the transition the selection would go through.
func (t *Tracker) NextAction(pool []model.Order) workflow.Target {
	return t.wf.Next(t.EffectiveStatus(pool))
}

func EffectiveStatus(wf workflow.Workflow, orders []model.Order) string {
	set := make(map[string]struct{})
	var last string
	for _, order := range orders {
		last = wf.StatusOf(order)
		set[last] = struct{}{}
	}
	switch len(set) {
	case 0:
		return workflow.StatusNew
	case 1:
		// пустой статус исторически означал «уже не новый»
		if last == "" || last == "null" || last == "undefined" {
			return workflow.StatusAssembly
		}
		return last
	default:
		return workflow.StatusMixed
	}
}
