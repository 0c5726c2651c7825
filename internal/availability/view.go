package availability

import (
	"sort"

	"barbuddy/internal/reservation"
)

// State is the hold state of one table for the current reservation key
type State string

const (
	Available   State = "available"
	HeldByMe    State = "held_by_me"
	HeldByOther State = "held_by_other"
	Booked      State = "booked"
)

// TableStatus is one row of a view snapshot
type TableStatus struct {
	Table    reservation.Table `json:"table"`
	State    State             `json:"state"`
	Pending  bool              `json:"pending"`
	HolderID string            `json:"holder_id,omitempty"`
}

// View is the projection of table states for one reservation key.
//
// Booked is terminal for the lifetime of a key. The selection is never
// stored on its own: Selected derives it from the tables in HeldByMe, so
// the two cannot diverge.
//
// A View is not safe for concurrent use; its owner serialises access.
type View struct {
	key     reservation.ReservationKey
	order   []string
	tables  map[string]reservation.Table
	states  map[string]State
	holders map[string]string
	pending map[string]bool
	heldSeq map[string]uint64
	seq     uint64
}

// NewView creates an empty view
func NewView() *View {
	v := &View{}
	v.Reset()
	return v
}

// Reset forgets the key and every table
func (v *View) Reset() {
	v.key = reservation.ReservationKey{}
	v.order = nil
	v.tables = make(map[string]reservation.Table)
	v.states = make(map[string]State)
	v.holders = make(map[string]string)
	v.pending = make(map[string]bool)
	v.heldSeq = make(map[string]uint64)
}

// Key returns the reservation key the view currently describes
func (v *View) Key() reservation.ReservationKey {
	return v.key
}

// Reconcile rebuilds the view from a catalogue and a held-tables snapshot.
// Booked from the catalogue wins over any hold; holds are attributed by
// holder id; everything else is available. Tables booked earlier under the
// same key stay booked.
//
// Under the same key, tables in keep and tables with a request in flight
// retain their current state: the snapshot predates what happened to them.
func (v *View) Reconcile(key reservation.ReservationKey, catalogue []reservation.Table, held []reservation.HeldTable, selfID string, keep map[string]bool) {
	sticky := make(map[string]bool)
	var kept map[string]keptState
	var pending map[string]bool
	if key == v.key {
		for id, st := range v.states {
			if st == Booked {
				sticky[id] = true
			}
		}
		kept = v.capture(keep)
		pending = v.pending
	}

	v.Reset()
	v.key = key

	for _, t := range catalogue {
		if _, dup := v.tables[t.ID]; dup {
			continue
		}
		v.order = append(v.order, t.ID)
		v.tables[t.ID] = t
		if t.Booked || sticky[t.ID] {
			v.states[t.ID] = Booked
		} else {
			v.states[t.ID] = Available
		}
	}

	v.applyHeld(held, selfID, kept)
	v.restore(kept)
	for id := range pending {
		if _, ok := v.states[id]; ok {
			v.pending[id] = true
		}
	}
}

// ApplySnapshot overlays a fresh held-tables snapshot on the current
// catalogue. Non-booked tables absent from the snapshot become available.
// Tables in keep and tables with a request in flight are left alone.
func (v *View) ApplySnapshot(held []reservation.HeldTable, selfID string, keep map[string]bool) {
	kept := v.capture(keep)
	for id, st := range v.states {
		if _, skip := kept[id]; skip {
			continue
		}
		if st == HeldByMe || st == HeldByOther {
			v.setState(id, Available, "")
		}
	}
	v.applyHeld(held, selfID, kept)
}

func (v *View) applyHeld(held []reservation.HeldTable, selfID string, skip map[string]keptState) {
	for _, h := range held {
		if _, ok := skip[h.TableID]; ok {
			continue
		}
		st, ok := v.states[h.TableID]
		if !ok || st == Booked {
			continue
		}
		if h.HolderID == selfID {
			v.setState(h.TableID, HeldByMe, selfID)
		} else {
			v.setState(h.TableID, HeldByOther, h.HolderID)
		}
	}
}

type keptState struct {
	state   State
	holder  string
	heldSeq uint64
}

// capture records the state of the tables in keep plus every pending table
func (v *View) capture(keep map[string]bool) map[string]keptState {
	kept := make(map[string]keptState)
	add := func(id string) {
		st, ok := v.states[id]
		if !ok {
			return
		}
		kept[id] = keptState{state: st, holder: v.holders[id], heldSeq: v.heldSeq[id]}
	}
	for id := range keep {
		add(id)
	}
	for id := range v.pending {
		add(id)
	}
	return kept
}

// restore puts captured states back on tables that are still in the
// catalogue and not booked
func (v *View) restore(kept map[string]keptState) {
	for id, k := range kept {
		st, ok := v.states[id]
		if !ok || st == Booked || k.state == Booked {
			continue
		}
		v.states[id] = k.state
		delete(v.holders, id)
		delete(v.heldSeq, id)
		if k.holder != "" {
			v.holders[id] = k.holder
		}
		if k.state == HeldByMe {
			v.heldSeq[id] = k.heldSeq
		}
	}
}

// ApplyHeldEvent records that another session holds tableID. Returns true
// when the table left the selection as a result.
func (v *View) ApplyHeldEvent(tableID, holderID string) (evicted bool) {
	st, ok := v.states[tableID]
	if !ok || st == Booked {
		return false
	}
	v.setState(tableID, HeldByOther, holderID)
	return st == HeldByMe
}

// ApplyReleasedEvent records that another session released tableID. Only a
// table currently attributed to that session becomes available.
func (v *View) ApplyReleasedEvent(tableID, holderID string) {
	if v.states[tableID] != HeldByOther {
		return
	}
	if known := v.holders[tableID]; known != "" && known != holderID {
		return
	}
	v.setState(tableID, Available, "")
}

// MarkHeldByMe records a successful hold by this session
func (v *View) MarkHeldByMe(tableID, selfID string) bool {
	return v.transition(tableID, HeldByMe, selfID)
}

// MarkHeldByOther records that a hold attempt lost to another session
func (v *View) MarkHeldByOther(tableID, holderID string) bool {
	return v.transition(tableID, HeldByOther, holderID)
}

// MarkAvailable records a release
func (v *View) MarkAvailable(tableID string) bool {
	return v.transition(tableID, Available, "")
}

// MarkBooked makes tableID booked for the rest of this key
func (v *View) MarkBooked(tableID string) bool {
	if _, ok := v.states[tableID]; !ok {
		return false
	}
	v.setState(tableID, Booked, "")
	return true
}

func (v *View) transition(tableID string, to State, holderID string) bool {
	st, ok := v.states[tableID]
	if !ok || st == Booked {
		return false
	}
	v.setState(tableID, to, holderID)
	return true
}

func (v *View) setState(tableID string, to State, holderID string) {
	prev := v.states[tableID]
	v.states[tableID] = to

	if to == HeldByOther && holderID != "" {
		v.holders[tableID] = holderID
	} else {
		delete(v.holders, tableID)
	}

	if to == HeldByMe {
		if prev != HeldByMe {
			v.seq++
			v.heldSeq[tableID] = v.seq
		}
	} else {
		delete(v.heldSeq, tableID)
	}
}

// State returns the state of tableID
func (v *View) State(tableID string) (State, bool) {
	st, ok := v.states[tableID]
	return st, ok
}

// Table returns the catalogue entry of tableID
func (v *View) Table(tableID string) (reservation.Table, bool) {
	t, ok := v.tables[tableID]
	return t, ok
}

// SetPending flags or clears an in-flight request for tableID
func (v *View) SetPending(tableID string, pending bool) {
	if pending {
		v.pending[tableID] = true
		return
	}
	delete(v.pending, tableID)
}

// IsPending reports whether a request for tableID is in flight
func (v *View) IsPending(tableID string) bool {
	return v.pending[tableID]
}

// PendingCount returns the number of tables with a request in flight
func (v *View) PendingCount() int {
	return len(v.pending)
}

// HeldByMe returns the ids of tables held by this session in selection order
func (v *View) HeldByMe() []string {
	ids := make([]string, 0, len(v.heldSeq))
	for id := range v.heldSeq {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return v.heldSeq[ids[i]] < v.heldSeq[ids[j]] })
	return ids
}

// Selected derives the selection from the tables held by this session
func (v *View) Selected() []reservation.SelectedTable {
	ids := v.HeldByMe()
	selected := make([]reservation.SelectedTable, 0, len(ids))
	for _, id := range ids {
		t := v.tables[id]
		selected = append(selected, reservation.SelectedTable{
			ID:            t.ID,
			Name:          t.Name,
			TableTypeID:   t.TableTypeID,
			TableTypeName: t.TableTypeName,
		})
	}
	return selected
}

// Snapshot returns every table in catalogue order
func (v *View) Snapshot() []TableStatus {
	out := make([]TableStatus, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, TableStatus{
			Table:    v.tables[id],
			State:    v.states[id],
			Pending:  v.pending[id],
			HolderID: v.holders[id],
		})
	}
	return out
}
