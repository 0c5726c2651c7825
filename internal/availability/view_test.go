package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barbuddy/internal/reservation"
)

var (
	keyA = reservation.ReservationKey{BarID: "bar-1", Date: "2026-10-23", Time: "22:00"}
	keyB = reservation.ReservationKey{BarID: "bar-1", Date: "2026-10-23", Time: "23:00"}
)

func catalogue() []reservation.Table {
	return []reservation.Table{
		{ID: "t1", Name: "T1", TableTypeID: "vip", TableTypeName: "VIP"},
		{ID: "t2", Name: "T2", TableTypeID: "vip", TableTypeName: "VIP"},
		{ID: "t3", Name: "T3", TableTypeID: "vip", TableTypeName: "VIP", Booked: true},
		{ID: "t4", Name: "T4", TableTypeID: "vip", TableTypeName: "VIP"},
	}
}

// selectionMatchesState checks that the selection is exactly the tables held by me
func selectionMatchesState(t *testing.T, v *View) {
	t.Helper()
	want := make(map[string]bool)
	for _, row := range v.Snapshot() {
		if row.State == HeldByMe {
			want[row.Table.ID] = true
		}
	}
	got := make(map[string]bool)
	for _, s := range v.Selected() {
		got[s.ID] = true
	}
	assert.Equal(t, want, got)
}

func TestView_ReconcilePrecedence(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), []reservation.HeldTable{
		{TableID: "t1", HolderID: "me"},
		{TableID: "t2", HolderID: "other"},
		{TableID: "t3", HolderID: "me"},
		{TableID: "t9", HolderID: "other"},
	}, "me", nil)

	states := map[string]State{}
	for _, row := range v.Snapshot() {
		states[row.Table.ID] = row.State
	}
	assert.Equal(t, map[string]State{
		"t1": HeldByMe,
		"t2": HeldByOther,
		"t3": Booked,
		"t4": Available,
	}, states)
	assert.Equal(t, keyA, v.Key())
	selectionMatchesState(t, v)
}

func TestView_ReconcileDropsGhostSelection(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	require.True(t, v.MarkHeldByMe("t1", "me"))
	require.Len(t, v.Selected(), 1)

	v.Reconcile(keyB, catalogue(), nil, "me", nil)

	assert.Empty(t, v.Selected())
	st, _ := v.State("t1")
	assert.Equal(t, Available, st)
}

func TestView_BookedIsSticky(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	require.True(t, v.MarkHeldByMe("t1", "me"))
	require.True(t, v.MarkBooked("t1"))

	assert.False(t, v.MarkAvailable("t1"))
	assert.False(t, v.MarkHeldByOther("t1", "other"))
	assert.False(t, v.ApplyHeldEvent("t1", "other"))
	v.ApplySnapshot(nil, "me", nil)

	st, _ := v.State("t1")
	assert.Equal(t, Booked, st)
	assert.Empty(t, v.Selected())

	// a re-search under the same key keeps it booked even if the catalogue lags
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	st, _ = v.State("t1")
	assert.Equal(t, Booked, st)

	// a new key starts from the catalogue again
	v.Reconcile(keyB, catalogue(), nil, "me", nil)
	st, _ = v.State("t1")
	assert.Equal(t, Available, st)
}

func TestView_HeldEventEvictsSelection(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	require.True(t, v.MarkHeldByMe("t1", "me"))
	require.True(t, v.MarkHeldByMe("t2", "me"))

	evicted := v.ApplyHeldEvent("t1", "other")

	assert.True(t, evicted)
	assert.Equal(t, []string{"t2"}, v.HeldByMe())
	selectionMatchesState(t, v)
}

func TestView_HeldThenReleasedConverges(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)

	v.ApplyHeldEvent("t4", "other")
	st, _ := v.State("t4")
	require.Equal(t, HeldByOther, st)

	// a release from a different session does not clear another holder
	v.ApplyReleasedEvent("t4", "third")
	st, _ = v.State("t4")
	assert.Equal(t, HeldByOther, st)

	v.ApplyReleasedEvent("t4", "other")
	st, _ = v.State("t4")
	assert.Equal(t, Available, st)
}

func TestView_ReleasedEventIgnoredForOwnHold(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	require.True(t, v.MarkHeldByMe("t1", "me"))

	v.ApplyReleasedEvent("t1", "other")

	st, _ := v.State("t1")
	assert.Equal(t, HeldByMe, st)
}

func TestView_ApplySnapshot(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), []reservation.HeldTable{{TableID: "t2", HolderID: "other"}}, "me", nil)

	v.ApplySnapshot([]reservation.HeldTable{{TableID: "t1", HolderID: "me"}, {TableID: "t4", HolderID: "other"}}, "me", nil)

	st, _ := v.State("t2")
	assert.Equal(t, Available, st)
	st, _ = v.State("t4")
	assert.Equal(t, HeldByOther, st)
	assert.Equal(t, []string{"t1"}, v.HeldByMe())
	selectionMatchesState(t, v)
}

func TestView_SnapshotLeavesNewerLocalStateAlone(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	require.True(t, v.MarkHeldByMe("t1", "me"))
	require.True(t, v.MarkHeldByMe("t2", "me"))
	v.SetPending("t4", true)

	// snapshot issued before t1 was held; t2 was not touched since, so the snapshot decides it
	v.ApplySnapshot([]reservation.HeldTable{{TableID: "t4", HolderID: "other"}}, "me", map[string]bool{"t1": true})

	st, _ := v.State("t1")
	assert.Equal(t, HeldByMe, st)
	st, _ = v.State("t2")
	assert.Equal(t, Available, st)
	st, _ = v.State("t4")
	assert.Equal(t, Available, st)
	assert.True(t, v.IsPending("t4"))
	assert.Equal(t, []string{"t1"}, v.HeldByMe())
	selectionMatchesState(t, v)
}

func TestView_ReconcileSameKeyKeepsNewerLocalState(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)
	require.True(t, v.MarkHeldByMe("t4", "me"))
	require.True(t, v.MarkHeldByMe("t1", "me"))
	v.SetPending("t2", true)

	v.Reconcile(keyA, catalogue(), []reservation.HeldTable{{TableID: "t2", HolderID: "other"}}, "me", map[string]bool{"t1": true})

	assert.Equal(t, []string{"t1"}, v.HeldByMe())
	assert.True(t, v.IsPending("t2"))
	st, _ := v.State("t2")
	assert.Equal(t, Available, st)

	// a different key starts from scratch
	v.Reconcile(keyB, catalogue(), nil, "me", map[string]bool{"t1": true})
	assert.Empty(t, v.HeldByMe())
	assert.Zero(t, v.PendingCount())
}

func TestView_SelectionOrderAndPending(t *testing.T) {
	v := NewView()
	v.Reconcile(keyA, catalogue(), nil, "me", nil)

	require.True(t, v.MarkHeldByMe("t4", "me"))
	require.True(t, v.MarkHeldByMe("t1", "me"))
	require.True(t, v.MarkHeldByMe("t4", "me"))

	selected := v.Selected()
	require.Len(t, selected, 2)
	assert.Equal(t, "t4", selected[0].ID)
	assert.Equal(t, "VIP", selected[0].TableTypeName)
	assert.Equal(t, "t1", selected[1].ID)

	v.SetPending("t2", true)
	assert.True(t, v.IsPending("t2"))
	assert.Equal(t, 1, v.PendingCount())
	v.SetPending("t2", false)
	assert.Zero(t, v.PendingCount())

	assert.False(t, v.MarkHeldByMe("unknown", "me"))
}
