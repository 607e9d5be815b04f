package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/drift/internal/domain"
	"github.com/phrazzld/drift/internal/store"
)

// Flavor selects how a drain pass processes due items.
type Flavor string

const (
	// FlavorOrdered processes items strictly sequentially: item N settles
	// (success or terminal removal) before item N+1 begins. Used for
	// request-style synchronization where side effects must preserve
	// program order.
	FlavorOrdered Flavor = "ordered"

	// FlavorIndependent dispatches due items concurrently. Items do not
	// block one another, but each item's own attempts stay strictly
	// sequential. Used for mutually independent background work.
	FlavorIndependent Flavor = "independent"
)

// Config holds an engine instance's settings. Two instances (say, an
// ordered "requests" queue and an independent "background" queue) can
// share one snapshot store under distinct names.
type Config struct {
	// Name identifies this queue instance; it keys the persisted snapshot.
	Name string

	// Flavor selects ordered or independent drain processing.
	Flavor Flavor

	// Profile tunes the retry backoff curve.
	Profile Profile

	// SweepInterval is how often the engine checks for items whose
	// scheduled time has elapsed. If zero, defaults to 1 second.
	SweepInterval time.Duration
}

// Engine is the sync coordinator: it owns the drain state machine,
// enforces that at most one drain pass runs at a time, and coalesces
// triggers that arrive mid-pass into exactly one follow-up pass.
//
// No internal failure ever escapes Enqueue, Cancel, or a drain pass as a
// panic; every failure is caught, classified, and surfaced through the
// status, notification, and error channels.
type Engine struct {
	cfg      Config
	queue    *TaskQueue
	schedule *retrySchedule
	snaps    store.SnapshotStore
	monitor  *NetworkMonitor
	registry *ExecutorRegistry
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
	pub      *StatusPublisher
	validate *validator.Validate

	mu          sync.Mutex
	draining    bool
	dirty       bool
	syncWaiters []chan struct{}
	lastSync    time.Time
	failedTotal int
	started     bool

	errMu      sync.Mutex
	errNextID  int
	errSubs    map[int]func(error)

	stopCh     chan struct{}
	wg         sync.WaitGroup
	persistCh  chan struct{}
	unsubMon   func()
	execCtx    context.Context
	execCancel context.CancelFunc
}

// New constructs an engine. The notifier may be nil, in which case
// notifications are discarded. Callers own the lifecycle: Start before
// use, Stop on shutdown.
func New(
	cfg Config,
	snaps store.SnapshotStore,
	monitor *NetworkMonitor,
	registry *ExecutorRegistry,
	notifier Notifier,
	clock Clock,
	logger *slog.Logger,
) (*Engine, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("engine config: name is required")
	}
	if cfg.Flavor != FlavorOrdered && cfg.Flavor != FlavorIndependent {
		return nil, fmt.Errorf("engine config: unknown flavor %q", cfg.Flavor)
	}
	if cfg.Profile.BaseDelay <= 0 || cfg.Profile.Cap <= 0 {
		return nil, fmt.Errorf("engine config: backoff profile must have positive delays")
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Second
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = SystemClock()
	}

	log := logger.With("component", "engine", "queue", cfg.Name)
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:        cfg,
		queue:      NewTaskQueue(log),
		schedule:   newRetrySchedule(),
		snaps:      snaps,
		monitor:    monitor,
		registry:   registry,
		notifier:   notifier,
		clock:      clock,
		logger:     log,
		pub:        NewStatusPublisher(log),
		validate:   validator.New(),
		errSubs:    make(map[int]func(error)),
		stopCh:     make(chan struct{}),
		persistCh:  make(chan struct{}, 1),
		execCtx:    ctx,
		execCancel: cancel,
	}, nil
}

// Start loads the persisted snapshot, subscribes to connectivity
// transitions, and launches the sweep and persistence loops. Items
// recovered from a previous process are requeued in their stored order; if
// the engine is online and work is pending, a recovery drain starts
// immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine %q already started", e.cfg.Name)
	}
	e.started = true
	e.mu.Unlock()

	items, err := e.snaps.Load(ctx, e.cfg.Name)
	if err != nil {
		// Corrupt or unreadable snapshots are non-fatal: report and run
		// memory-only for the rest of the session.
		e.logger.Warn("snapshot load failed, continuing with empty queue", "error", err)
		e.reportError(err)
		items = nil
	}
	e.queue.Replace(items)
	for _, item := range items {
		e.schedule.Set(item.ID, item.ScheduledAt)
	}
	if len(items) > 0 {
		e.logger.Info("recovered persisted items", "count", len(items))
	}

	e.unsubMon = e.monitor.OnChange(func(online bool) {
		e.publishStatus()
		if online {
			e.triggerDrain("network_online")
		}
	})

	e.wg.Add(2)
	go e.sweepLoop()
	go e.persistLoop()

	if e.monitor.IsOnline() && e.queue.Size() > 0 {
		e.triggerDrain("recovery")
	}
	return nil
}

// Stop tears the engine down: it detaches the connectivity subscription,
// stops the sweep and persistence loops, waits for any in-flight drain
// pass to finish, and writes a final snapshot.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	if e.unsubMon != nil {
		e.unsubMon()
	}
	close(e.stopCh)
	e.wg.Wait()
	e.execCancel()

	if err := e.saveSnapshot(context.Background()); err != nil {
		e.logger.Warn("final snapshot save failed", "error", err)
	}
	e.logger.Info("engine stopped")
}

// Enqueue validates the descriptor, appends a new item, kicks off
// persistence, and, when online, triggers a drain pass. It returns the
// new item's ID without waiting for persistence or processing.
func (e *Engine) Enqueue(ctx context.Context, d domain.Descriptor) (string, error) {
	if err := e.validate.Struct(d); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	item := e.queue.Enqueue(d, e.clock.Now().UTC())
	e.schedule.Set(item.ID, item.ScheduledAt)
	e.requestPersist()
	e.publishStatus()

	e.logger.Info("enqueued",
		"item_id", item.ID,
		"item_type", item.Type,
		"max_retries", item.MaxRetries)

	if e.monitor.IsOnline() {
		e.triggerDrain("enqueue")
	}
	return item.ID, nil
}

// Cancel removes a pending or retry-scheduled item and clears its
// schedule entry, so a stale reattempt cannot fire afterward. An item
// whose executor call is already in flight runs to completion; Cancel
// only prevents the outcome from being applied. It reports whether the
// item was pending.
func (e *Engine) Cancel(id string) bool {
	removed := e.queue.Remove(id)
	e.schedule.Remove(id)
	if removed {
		e.requestPersist()
		e.publishStatus()
		e.logger.Info("canceled", "item_id", id)
	}
	return removed
}

// ForceSync triggers a drain pass and returns a channel closed once the
// pass (and any coalesced follow-up) completes. While offline it is a
// no-op: the returned channel is closed immediately, no state changes,
// and no executor runs.
func (e *Engine) ForceSync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if !e.monitor.IsOnline() {
		close(done)
		return done
	}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		close(done)
		return done
	}
	e.syncWaiters = append(e.syncWaiters, done)
	if e.draining {
		e.dirty = true
		e.mu.Unlock()
		return done
	}
	e.draining = true
	e.mu.Unlock()

	e.startDrainLoop("force_sync")
	return done
}

// Clear empties the queue and the persisted snapshot unconditionally.
func (e *Engine) Clear(ctx context.Context) error {
	e.queue.Clear()
	e.schedule.Clear()
	if err := e.snaps.Clear(ctx, e.cfg.Name); err != nil {
		e.reportError(err)
		e.publishStatus()
		return err
	}
	e.publishStatus()
	e.logger.Info("queue cleared")
	return nil
}

// Status computes the current derived status. It is a pure read with no
// side effects.
func (e *Engine) Status() domain.SyncStatus {
	e.mu.Lock()
	lastSync := e.lastSync
	failed := e.failedTotal
	e.mu.Unlock()

	return domain.SyncStatus{
		IsOnline:     e.monitor.IsOnline(),
		LastSyncTime: lastSync,
		PendingItems: e.queue.Size(),
		FailedItems:  failed,
	}
}

// Items returns a snapshot of the pending items in order.
func (e *Engine) Items() []domain.QueueItem {
	return e.queue.List()
}

// OnStatusChange registers a callback invoked after every queue or
// network mutation.
func (e *Engine) OnStatusChange(cb func(domain.SyncStatus)) (unsubscribe func()) {
	return e.pub.Subscribe(cb)
}

// OnError registers a callback for non-fatal engine errors, such as
// snapshot storage failures.
func (e *Engine) OnError(cb func(error)) (unsubscribe func()) {
	e.errMu.Lock()
	id := e.errNextID
	e.errNextID++
	e.errSubs[id] = cb
	e.errMu.Unlock()

	return func() {
		e.errMu.Lock()
		delete(e.errSubs, id)
		e.errMu.Unlock()
	}
}

// triggerDrain starts a drain loop, or marks the running one dirty so
// exactly one follow-up pass runs after it. Triggers arriving mid-pass
// are coalesced, not queued per-trigger.
func (e *Engine) triggerDrain(reason string) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	if e.draining {
		e.dirty = true
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	e.startDrainLoop(reason)
}

func (e *Engine) startDrainLoop(reason string) {
	e.logger.Debug("drain starting", "reason", reason)
	e.wg.Add(1)
	go e.drainLoop()
}

// drainLoop runs drain passes until no trigger arrived mid-pass, then
// releases the in-progress guard and any force-sync waiters.
func (e *Engine) drainLoop() {
	defer e.wg.Done()
	for {
		e.drainPass()

		e.mu.Lock()
		if e.dirty {
			e.dirty = false
			e.mu.Unlock()
			continue
		}
		e.draining = false
		waiters := e.syncWaiters
		e.syncWaiters = nil
		e.mu.Unlock()

		for _, w := range waiters {
			close(w)
		}
		return
	}
}

// drainPass attempts all currently-due items once. Ordered flavor walks
// the queue front to back and stops at the first item that does not
// settle, preserving program order. Independent flavor dispatches the due
// batch concurrently, ordered by priority then creation time.
func (e *Engine) drainPass() {
	if !e.monitor.IsOnline() {
		return
	}

	now := e.clock.Now()
	items := e.queue.List()
	if len(items) == 0 {
		return
	}

	if e.cfg.Flavor == FlavorOrdered {
		for _, item := range items {
			if item.ScheduledAt.After(now) {
				// A later item must not run before an earlier one settles.
				return
			}
			if _, pending := e.queue.Get(item.ID); !pending {
				continue // canceled mid-pass
			}
			if settled := e.attempt(item); !settled {
				return
			}
		}
		return
	}

	due := make([]domain.QueueItem, 0, len(items))
	for _, item := range items {
		if !item.ScheduledAt.After(now) {
			due = append(due, item)
		}
	}
	// Priority is advisory ordering within the due batch only.
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})

	var wg sync.WaitGroup
	for _, item := range due {
		if _, pending := e.queue.Get(item.ID); !pending {
			continue
		}
		wg.Add(1)
		go func(it domain.QueueItem) {
			defer wg.Done()
			e.attempt(it)
		}(item)
	}
	wg.Wait()
}

// attempt executes one item once and applies the outcome. It reports
// whether the item settled (success or removal) as opposed to being
// rescheduled for a later retry.
func (e *Engine) attempt(item domain.QueueItem) bool {
	logger := e.logger.With("item_id", item.ID, "item_type", item.Type)

	ex, err := e.registry.Resolve(item.Type)
	if err != nil {
		logger.Error("no executor registered", "error", err)
		e.dropItem(item, err)
		return true
	}

	result, err := e.safeExecute(ex, item.Payload)
	if err == nil {
		e.completeItem(item, result)
		return true
	}

	switch Classify(err) {
	case Terminal:
		logger.Warn("terminal failure, dropping item", "error", err)
		e.dropItem(item, err)
		return true
	default:
		if item.RetryCount+1 >= item.MaxRetries {
			logger.Warn("retry budget exhausted, dropping item",
				"error", err,
				"attempts", item.RetryCount+1,
				"max_retries", item.MaxRetries)
			e.dropItem(item, err)
			return true
		}
		e.rescheduleItem(item, err)
		return false
	}
}

// safeExecute invokes the executor, converting a panic into an error so
// no executor failure can escape the drain pass.
func (e *Engine) safeExecute(ex Executor, payload json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panicked: %v", r)
		}
	}()
	return ex.Execute(e.execCtx, payload)
}

// completeItem applies a successful attempt: remove, persist, update the
// last sync time, notify, publish.
func (e *Engine) completeItem(item domain.QueueItem, result json.RawMessage) {
	if !e.queue.Remove(item.ID) {
		e.logger.Debug("completed item no longer pending, skipping", "item_id", item.ID)
		return
	}
	e.schedule.Remove(item.ID)

	e.mu.Lock()
	e.lastSync = e.clock.Now().UTC()
	e.mu.Unlock()

	e.requestPersist()
	e.safeNotify(func() { e.notifier.NotifyComplete(item, result) })
	e.publishStatus()
	e.logger.Info("item completed", "item_id", item.ID, "item_type", item.Type)
}

// dropItem applies a terminal failure or exhausted budget: remove,
// persist, count, notify, publish. Failed items are not retained for
// manual resubmission.
func (e *Engine) dropItem(item domain.QueueItem, cause error) {
	if !e.queue.Remove(item.ID) {
		e.logger.Debug("failed item no longer pending, skipping", "item_id", item.ID)
		return
	}
	e.schedule.Remove(item.ID)

	e.mu.Lock()
	e.failedTotal++
	e.mu.Unlock()

	e.requestPersist()
	e.safeNotify(func() { e.notifier.NotifyFailed(item, cause) })
	e.publishStatus()
}

// rescheduleItem applies a retryable failure with budget remaining:
// increment the count, push the scheduled time out by the backoff delay,
// persist, and keep the item.
func (e *Engine) rescheduleItem(item domain.QueueItem, cause error) {
	item.RetryCount++
	delay := e.cfg.Profile.Delay(item.RetryCount)
	item.ScheduledAt = e.clock.Now().UTC().Add(delay)

	if !e.queue.Update(item) {
		e.logger.Debug("rescheduled item no longer pending, skipping", "item_id", item.ID)
		return
	}
	e.schedule.Set(item.ID, item.ScheduledAt)

	e.requestPersist()
	e.publishStatus()
	e.logger.Info("retry scheduled",
		"item_id", item.ID,
		"item_type", item.Type,
		"retry_count", item.RetryCount,
		"max_retries", item.MaxRetries,
		"delay", delay,
		"error", cause)
}

// sweepLoop periodically wakes items whose scheduled time has elapsed.
// The schedule heap is consulted first so an idle engine does nothing but
// check one timestamp per tick.
func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if e.monitor.IsOnline() && e.schedule.AnyDue(e.clock.Now()) {
				e.triggerDrain("sweep")
			}
		}
	}
}

// persistLoop serializes snapshot writes. Mutation paths signal it
// through a buffered channel, so back-to-back mutations coalesce into one
// save of the latest queue state and saves never interleave out of order.
func (e *Engine) persistLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case <-e.persistCh:
			if err := e.saveSnapshot(e.execCtx); err != nil {
				e.logger.Warn("snapshot save failed, continuing in memory-only mode", "error", err)
				e.reportError(err)
			}
		}
	}
}

// requestPersist signals the persist loop without blocking.
func (e *Engine) requestPersist() {
	select {
	case e.persistCh <- struct{}{}:
	default:
	}
}

func (e *Engine) saveSnapshot(ctx context.Context) error {
	return e.snaps.Save(ctx, e.cfg.Name, e.queue.List())
}

func (e *Engine) publishStatus() {
	e.pub.Publish(e.Status())
}

// safeNotify runs a fire-and-forget notifier call, catching and logging
// anything it throws.
func (e *Engine) safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notifier panicked", "panic", r)
		}
	}()
	fn()
}

// reportError fans a non-fatal error out to error subscribers.
func (e *Engine) reportError(err error) {
	e.errMu.Lock()
	subs := make([]func(error), 0, len(e.errSubs))
	for _, cb := range e.errSubs {
		subs = append(subs, cb)
	}
	e.errMu.Unlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("error subscriber panicked", "panic", r)
				}
			}()
			cb(err)
		}()
	}
}
