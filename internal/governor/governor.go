package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"barbuddy/internal/availability"
	"barbuddy/internal/realtime"
	"barbuddy/internal/reservation"
	"barbuddy/pkg/logger"
)

// Governor owns the availability view of one session and is the only
// component that mutates it. All hold traffic goes through it so the
// selection limit, per-table pending flags and release-on-exit rules hold.
//
// Network calls are made without holding the lock. Every call records the
// generation it was issued under; a response from an older generation is
// not applied. Within one generation, every local change to a table bumps
// its mutation sequence, and a snapshot never overrides a table changed
// after the snapshot was requested.
type Governor struct {
	client HoldClient
	cfg    Config
	log    *logger.Logger

	mu           sync.Mutex
	view         *availability.View
	tableTypeID  string
	generation   uint64
	pendingHolds map[string]bool
	submitting   bool
	deferred     []Trigger
	mutations    uint64
	touched      map[string]uint64

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// New creates a governor for the session identified by cfg.SelfID
func New(client HoldClient, cfg Config, log *logger.Logger) *Governor {
	if cfg.MaxTables <= 0 || cfg.MaxTables > reservation.MaxTables {
		cfg.MaxTables = reservation.MaxTables
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaultReleaseTimeout
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Governor{
		client:       client,
		cfg:          cfg,
		log:          log.WithSession(cfg.SelfID),
		view:         availability.NewView(),
		pendingHolds: make(map[string]bool),
		touched:      make(map[string]uint64),
		listeners:    make(map[int]Listener),
	}
}

// ============================================================================
//  SEARCH
// ============================================================================

// Search establishes key and tableTypeID as the current reservation context.
// Holds of a previous, different context are released first; only then is
// the catalogue fetched. Searching the same context again refreshes it and
// keeps the holds the session already has, including holds still in flight.
func (g *Governor) Search(ctx context.Context, key reservation.ReservationKey, tableTypeID string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	if g.submitting {
		g.mu.Unlock()
		return reservation.ErrSubmissionInFlight
	}

	current := g.view.Key()
	if !current.IsZero() && (current != key || g.tableTypeID != tableTypeID) {
		trigger := changeTrigger(current, key)
		prevKey, ids := g.tearDownLocked(trigger)
		g.mu.Unlock()
		g.releaseAll(ctx, prevKey, ids, trigger)
		g.mu.Lock()
	}

	if current != key || g.tableTypeID != tableTypeID {
		g.generation++
	}
	gen, since := g.generation, g.mutations
	g.tableTypeID = tableTypeID
	g.mu.Unlock()

	return g.load(ctx, key, tableTypeID, gen, since)
}

// Refresh re-fetches the catalogue and held snapshot of the current context
func (g *Governor) Refresh(ctx context.Context) error {
	g.mu.Lock()
	key, tableTypeID := g.view.Key(), g.tableTypeID
	gen, since := g.generation, g.mutations
	g.mu.Unlock()

	if key.IsZero() {
		return reservation.ErrNoReservationKey
	}
	return g.load(ctx, key, tableTypeID, gen, since)
}

// load fetches the catalogue and held snapshot of key. Tables changed
// locally after since keep their state when the result is applied.
func (g *Governor) load(ctx context.Context, key reservation.ReservationKey, tableTypeID string, gen, since uint64) error {
	var (
		tables []reservation.Table
		held   []reservation.HeldTable
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		tables, err = g.client.FindAvailable(egCtx, key, tableTypeID)
		return err
	})
	eg.Go(func() error {
		var err error
		held, err = g.client.QueryHeld(egCtx, key)
		return err
	})
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to load tables for %s: %w", key, err)
	}

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		g.releaseStaleSnapshot(ctx, key, held)
		return ErrInvalidated
	}
	g.view.Reconcile(key, tables, held, g.cfg.SelfID, g.changedSinceLocked(since))
	update := g.updateLocked("search")
	g.mu.Unlock()

	g.publish(update)
	return nil
}

// releaseStaleSnapshot releases holds this session still owns under a key
// that was abandoned while it was being loaded
func (g *Governor) releaseStaleSnapshot(ctx context.Context, key reservation.ReservationKey, held []reservation.HeldTable) {
	var mine []string
	for _, h := range held {
		if h.HolderID == g.cfg.SelfID {
			mine = append(mine, h.TableID)
		}
	}
	if len(mine) > 0 {
		g.releaseAll(ctx, key, mine, Cancelled)
	}
}

func changeTrigger(from, to reservation.ReservationKey) Trigger {
	switch {
	case from.Date != to.Date || from.BarID != to.BarID:
		return DateChanged
	case from.Time != to.Time:
		return TimeChanged
	default:
		return TableTypeChanged
	}
}

// ============================================================================
//  SELECTION
// ============================================================================

// Toggle holds an available table or releases a table held by this session.
//
// AlreadyHeld and NotAvailable are applied to the view before being
// returned. A hold beyond the selection limit fails with ErrLimitReached
// without any network call. A transient failure leaves the table as it was.
func (g *Governor) Toggle(ctx context.Context, tableID string) error {
	g.mu.Lock()
	if err := g.checkTableLocked(tableID); err != nil {
		g.mu.Unlock()
		return err
	}

	state, _ := g.view.State(tableID)
	switch state {
	case availability.Booked:
		g.mu.Unlock()
		return reservation.ErrNotAvailable
	case availability.HeldByOther:
		g.mu.Unlock()
		return reservation.ErrAlreadyHeld
	case availability.HeldByMe:
		g.mu.Unlock()
		return g.Release(ctx, tableID)
	}

	if len(g.view.HeldByMe())+len(g.pendingHolds) >= g.cfg.MaxTables {
		g.mu.Unlock()
		return reservation.ErrLimitReached
	}

	key, gen := g.view.Key(), g.generation
	g.view.SetPending(tableID, true)
	g.pendingHolds[tableID] = true
	g.touchLocked(tableID)
	update := g.updateLocked("hold_pending")
	g.mu.Unlock()
	g.publish(update)

	err := g.client.Hold(ctx, key, tableID)

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		if err == nil {
			// the context this hold was for is gone; do not leave it behind
			g.releaseAll(ctx, key, []string{tableID}, Cancelled)
		}
		return ErrInvalidated
	}

	g.view.SetPending(tableID, false)
	delete(g.pendingHolds, tableID)
	g.touchLocked(tableID)

	switch {
	case err == nil:
		g.view.MarkHeldByMe(tableID, g.cfg.SelfID)
		g.log.LogHoldAcquired(ctx, key.String(), tableID, g.cfg.SelfID)
	case errors.Is(err, reservation.ErrAlreadyHeld):
		g.view.MarkHeldByOther(tableID, "")
		g.log.LogHoldRejected(ctx, key.String(), tableID, "already held")
	case errors.Is(err, reservation.ErrNotAvailable):
		g.view.MarkBooked(tableID)
		g.log.LogHoldRejected(ctx, key.String(), tableID, "not available")
	default:
		g.log.WithError(err).Warn("hold failed", "key", key.String(), "table_id", tableID)
	}
	update = g.updateLocked("hold_result")
	g.mu.Unlock()
	g.publish(update)

	return err
}

// Release gives up one table held by this session. Releasing a table the
// session does not hold is a no-op. On a transient failure the table stays
// selected and ErrTransient is returned.
func (g *Governor) Release(ctx context.Context, tableID string) error {
	g.mu.Lock()
	if err := g.checkTableLocked(tableID); err != nil {
		g.mu.Unlock()
		return err
	}
	if state, _ := g.view.State(tableID); state != availability.HeldByMe {
		g.mu.Unlock()
		return nil
	}

	key, gen := g.view.Key(), g.generation
	g.view.SetPending(tableID, true)
	g.touchLocked(tableID)
	update := g.updateLocked("release_pending")
	g.mu.Unlock()
	g.publish(update)

	err := g.client.Release(ctx, key, tableID)

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		return nil
	}
	g.view.SetPending(tableID, false)
	g.touchLocked(tableID)
	if err != nil {
		g.log.LogReleaseFailed(ctx, key.String(), tableID, err)
	} else {
		g.view.MarkAvailable(tableID)
		g.log.LogHoldReleased(ctx, key.String(), tableID, g.cfg.SelfID)
	}
	update = g.updateLocked("release_result")
	g.mu.Unlock()
	g.publish(update)

	return err
}

func (g *Governor) checkTableLocked(tableID string) error {
	if g.view.Key().IsZero() {
		return reservation.ErrNoReservationKey
	}
	if g.submitting {
		return reservation.ErrSubmissionInFlight
	}
	if _, ok := g.view.State(tableID); !ok {
		return reservation.ErrUnknownTable
	}
	if g.view.IsPending(tableID) {
		return reservation.ErrTablePending
	}
	return nil
}

func (g *Governor) touchLocked(tableID string) {
	g.mutations++
	g.touched[tableID] = g.mutations
}

// changedSinceLocked returns the tables changed locally after mutation since
func (g *Governor) changedSinceLocked(since uint64) map[string]bool {
	changed := make(map[string]bool)
	for id, seq := range g.touched {
		if seq > since {
			changed[id] = true
		}
	}
	return changed
}

// Selection returns the tables currently held by this session
func (g *Governor) Selection() []reservation.SelectedTable {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Selected()
}

// Snapshot returns the current view
func (g *Governor) Snapshot() Update {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updateLocked("snapshot")
}

// Key returns the current reservation key, zero when none is chosen
func (g *Governor) Key() reservation.ReservationKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Key()
}

// ============================================================================
//  REALTIME
// ============================================================================

// ApplyEvent applies a hold or release broadcast from another session.
// Events for another key or from this session are dropped.
func (g *Governor) ApplyEvent(ev realtime.Event) {
	g.mu.Lock()
	key := g.view.Key()
	if key.IsZero() || ev.Key() != key {
		g.mu.Unlock()
		g.log.LogRealtimeDropped(context.Background(), string(ev.Type), ev.TableID, "stale key")
		return
	}
	if ev.HolderID == g.cfg.SelfID {
		g.mu.Unlock()
		g.log.LogRealtimeDropped(context.Background(), string(ev.Type), ev.TableID, "self originated")
		return
	}

	switch ev.Type {
	case realtime.EventHeld:
		if g.view.ApplyHeldEvent(ev.TableID, ev.HolderID) {
			g.log.Info("selected table taken by another session", "key", key.String(), "table_id", ev.TableID)
		}
	case realtime.EventReleased:
		g.view.ApplyReleasedEvent(ev.TableID, ev.HolderID)
	default:
		g.mu.Unlock()
		return
	}
	g.touchLocked(ev.TableID)
	update := g.updateLocked("realtime")
	g.mu.Unlock()

	g.publish(update)
}

// Resync refreshes the held-tables snapshot of the current key and adopts
// holds already attributed to this session. It runs after every realtime
// (re)connect and on re-focus.
func (g *Governor) Resync(ctx context.Context) error {
	g.mu.Lock()
	key, gen, since := g.view.Key(), g.generation, g.mutations
	g.mu.Unlock()

	if key.IsZero() {
		return nil
	}

	held, err := g.client.QueryHeld(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to resync %s: %w", key, err)
	}

	g.mu.Lock()
	if gen != g.generation {
		g.mu.Unlock()
		return nil
	}
	g.view.ApplySnapshot(held, g.cfg.SelfID, g.changedSinceLocked(since))
	update := g.updateLocked("resync")
	g.mu.Unlock()

	g.publish(update)
	return nil
}

// ============================================================================
//  LIFECYCLE
// ============================================================================

// Invalidate releases every table held by this session. While a submission
// is in flight the release is deferred until its outcome is known.
// FocusLost and Backgrounded keep the key and catalogue so the screen can
// resume; every other trigger clears them.
func (g *Governor) Invalidate(ctx context.Context, trigger Trigger) {
	g.mu.Lock()
	if g.submitting {
		g.deferred = append(g.deferred, trigger)
		g.mu.Unlock()
		g.log.Info("invalidation deferred until submission completes", "trigger", string(trigger))
		return
	}
	key, ids := g.tearDownLocked(trigger)
	update := g.updateLocked(string(trigger))
	g.mu.Unlock()

	g.publish(update)
	g.releaseAll(ctx, key, ids, trigger)
}

// tearDownLocked drops local ownership of every held table and returns
// what has to be released server-side
func (g *Governor) tearDownLocked(trigger Trigger) (reservation.ReservationKey, []string) {
	key := g.view.Key()
	ids := g.view.HeldByMe()

	g.generation++
	g.pendingHolds = make(map[string]bool)
	g.touched = make(map[string]uint64)

	if trigger.keepsContext() {
		for _, id := range ids {
			g.view.MarkAvailable(id)
		}
		for _, row := range g.view.Snapshot() {
			g.view.SetPending(row.Table.ID, false)
		}
	} else {
		g.view.Reset()
		g.tableTypeID = ""
	}
	return key, ids
}

// releaseAll releases ids for key in parallel. Failures are logged and
// never retried; the whole step is bounded by the release timeout and
// survives cancellation of ctx.
func (g *Governor) releaseAll(ctx context.Context, key reservation.ReservationKey, ids []string, trigger Trigger) {
	if len(ids) == 0 {
		return
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.ReleaseTimeout)
	defer cancel()

	var failed atomic.Int32
	var eg errgroup.Group
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			if err := g.client.Release(releaseCtx, key, id); err != nil {
				failed.Add(1)
				g.log.LogReleaseFailed(releaseCtx, key.String(), id, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	n := int(failed.Load())
	g.log.LogMassRelease(ctx, key.String(), string(trigger), len(ids)-n, n)
}

// ============================================================================
//  SUBMISSION
// ============================================================================

// BeginSubmission freezes the selection for a booking submission. Until
// CompleteSubmission, toggles and searches fail with ErrSubmissionInFlight
// and invalidations are deferred.
func (g *Governor) BeginSubmission() (reservation.ReservationKey, []reservation.SelectedTable, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitting {
		return reservation.ReservationKey{}, nil, reservation.ErrSubmissionInFlight
	}
	key := g.view.Key()
	if key.IsZero() {
		return reservation.ReservationKey{}, nil, reservation.ErrNoReservationKey
	}
	if len(g.pendingHolds) > 0 {
		return reservation.ReservationKey{}, nil, reservation.ErrTablePending
	}
	selected := g.view.Selected()
	if len(selected) == 0 {
		return reservation.ReservationKey{}, nil, reservation.ErrEmptySelection
	}

	g.submitting = true
	return key, selected, nil
}

// CompleteSubmission records the outcome of the submission started by
// BeginSubmission. On success the submitted tables become booked: their
// holds are consumed by the booking and are not released. On failure the
// tables stay held so the user can retry or cancel. Deferred invalidations
// run afterwards.
func (g *Governor) CompleteSubmission(ctx context.Context, key reservation.ReservationKey, tableIDs []string, submitErr error) {
	g.mu.Lock()
	g.submitting = false

	reason := SubmissionFailed
	if submitErr == nil && key == g.view.Key() {
		reason = SubmissionSucceeded
		for _, id := range tableIDs {
			g.view.MarkBooked(id)
			g.touchLocked(id)
		}
	}

	deferred := g.deferred
	g.deferred = nil
	update := g.updateLocked(string(reason))
	g.mu.Unlock()
	g.publish(update)

	if len(deferred) > 0 {
		g.Invalidate(ctx, strongest(deferred))
	}
}

// strongest picks the deferred trigger with the widest effect
func strongest(triggers []Trigger) Trigger {
	for i := len(triggers) - 1; i >= 0; i-- {
		if !triggers[i].keepsContext() {
			return triggers[i]
		}
	}
	return triggers[len(triggers)-1]
}

// ============================================================================
//  LISTENERS
// ============================================================================

// Subscribe registers fn for view updates and returns its unsubscribe func
func (g *Governor) Subscribe(fn Listener) func() {
	g.listenerMu.Lock()
	defer g.listenerMu.Unlock()

	id := g.nextID
	g.nextID++
	g.listeners[id] = fn

	return func() {
		g.listenerMu.Lock()
		defer g.listenerMu.Unlock()
		delete(g.listeners, id)
	}
}

func (g *Governor) updateLocked(reason string) Update {
	return Update{
		Key:       g.view.Key(),
		Tables:    g.view.Snapshot(),
		Selection: g.view.Selected(),
		Reason:    reason,
	}
}

func (g *Governor) publish(update Update) {
	g.listenerMu.Lock()
	listeners := make([]Listener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(update)
	}
}
