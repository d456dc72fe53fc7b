package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/metrics"
)

const (
	DefaultReconcileInterval = 15 * time.Second
	DefaultReconcileTimeout  = 30 * time.Second

	errNotFetched = "instance directory not fetched yet"
)

type CommandTracker interface {
	CommandStatus(ctx context.Context, handle domain.CommandHandle) (domain.CommandStatus, error)
}

type LoopConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// ReconciliationLoop re-reads the instance directory, joins it with the
// watch list and publishes the result. At most one fetch runs at a time;
// triggers that arrive meanwhile are dropped.
type ReconciliationLoop struct {
	directory  *InstanceDirectory
	watchList  *WatchListStore
	tracker    CommandTracker
	publishers []domain.ViewPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	config     LoopConfig

	fetching atomic.Bool

	mu   sync.RWMutex
	view *domain.FleetView
}

func NewReconciliationLoop(
	directory *InstanceDirectory,
	watchList *WatchListStore,
	tracker CommandTracker,
	config LoopConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
	publishers ...domain.ViewPublisher,
) *ReconciliationLoop {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultReconcileTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationLoop{
		directory:  directory,
		watchList:  watchList,
		tracker:    tracker,
		publishers: publishers,
		metrics:    m,
		logger:     logger,
		config:     config,
	}
}

// View returns a copy of the last published view, or nil before the first
// tick.
func (l *ReconciliationLoop) View() *domain.FleetView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view.Clone()
}

func (l *ReconciliationLoop) Fetching() bool {
	return l.fetching.Load()
}

// Refresh runs one reconciliation pass. When a pass is already in flight it
// returns the current view and false without fetching.
func (l *ReconciliationLoop) Refresh(ctx context.Context) (*domain.FleetView, bool) {
	if !l.fetching.CompareAndSwap(false, true) {
		l.metrics.ObserveCoalesced()
		return l.View(), false
	}
	defer l.fetching.Store(false)

	start := time.Now()
	view, err := l.fetch(ctx)
	l.metrics.ObserveReconcile(time.Since(start), err)
	if err != nil {
		l.logger.Warn("reconciliation failed, keeping last view", slog.Any("error", err))
		view = l.markStale(ctx, err)
	} else {
		l.store(view)
	}

	l.publish(ctx, view)
	return view.Clone(), true
}

// RefreshAsync triggers a pass in the background.
func (l *ReconciliationLoop) RefreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.config.Timeout)
		defer cancel()
		l.Refresh(ctx)
	}()
}

// Remerge rebuilds the view from the cached directory and the current watch
// list without contacting the provider. Staleness carries over; before the
// first successful fetch every row is unknown and the view is stale.
func (l *ReconciliationLoop) Remerge(ctx context.Context) *domain.FleetView {
	entries, err := l.watchList.List(ctx)
	if err != nil {
		l.logger.Warn("failed to list watch entries", slog.Any("error", err))
		if view := l.View(); view != nil {
			return view
		}
		return &domain.FleetView{
			Rows:      []domain.FleetRow{},
			Available: []domain.Instance{},
			Stale:     true,
			Error:     err.Error(),
		}
	}

	instances, fetchedAt := l.directory.Cached()
	view := Merge(instances, entries, fetchedAt)

	l.mu.Lock()
	switch {
	case fetchedAt.IsZero():
		view.Stale = true
		view.Error = errNotFetched
		if l.view != nil && l.view.Error != "" {
			view.Error = l.view.Error
		}
	case l.view != nil:
		view.Stale = l.view.Stale
		view.Error = l.view.Error
	}
	l.view = view
	l.mu.Unlock()

	l.metrics.ObserveView(view)
	l.publish(ctx, view)
	return view.Clone()
}

// Run refreshes immediately and then on every interval until ctx is done.
func (l *ReconciliationLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *ReconciliationLoop) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()
	l.Refresh(tickCtx)
}

func (l *ReconciliationLoop) fetch(ctx context.Context) (*domain.FleetView, error) {
	instances, err := l.directory.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := l.watchList.List(ctx)
	if err != nil {
		return nil, err
	}

	entries = l.trackCommands(ctx, entries)
	return Merge(instances, entries, time.Now().UTC()), nil
}

// trackCommands settles entries whose last script command has finished.
func (l *ReconciliationLoop) trackCommands(ctx context.Context, entries []*domain.WatchEntry) []*domain.WatchEntry {
	if l.tracker == nil {
		return entries
	}

	for i, e := range entries {
		if !e.Awaiting() {
			continue
		}

		status, err := l.tracker.CommandStatus(ctx, domain.CommandHandle{
			CommandID:   e.LastCommandID,
			InstanceID:  e.InstanceID,
			SubmittedAt: e.UpdatedAt,
		})
		if err != nil {
			l.logger.Debug("command status unavailable",
				slog.String("instance_id", e.InstanceID),
				slog.String("command_id", e.LastCommandID),
				slog.Any("error", err),
			)
			continue
		}
		if !status.Done() {
			continue
		}

		next := completedState(e.ScriptState, status)
		changed, err := l.watchList.CompleteCommand(ctx, e.InstanceID, e.LastCommandID, next)
		if err != nil {
			l.logger.Warn("failed to record command completion",
				slog.String("instance_id", e.InstanceID),
				slog.Any("error", err),
			)
			continue
		}
		if changed {
			updated := *e
			updated.UpdateScriptState(next, "")
			entries[i] = &updated
			l.logger.Info("script command completed",
				slog.String("instance_id", e.InstanceID),
				slog.String("command_id", e.LastCommandID),
				slog.String("status", string(status)),
				slog.String("script_state", string(next)),
			)
		}
	}
	return entries
}

// completedState settles a finished command. An optimistic running or idle
// label is kept on success and replaced by error on failure.
func completedState(current domain.ScriptState, status domain.CommandStatus) domain.ScriptState {
	if status != domain.CommandStatusSuccess {
		return domain.ScriptStateError
	}
	switch current {
	case domain.ScriptStateStarting:
		return domain.ScriptStateRunning
	case domain.ScriptStateStopping:
		return domain.ScriptStateIdle
	default:
		return current
	}
}

func (l *ReconciliationLoop) store(view *domain.FleetView) {
	l.mu.Lock()
	l.view = view
	l.mu.Unlock()
	l.metrics.ObserveView(view)
}

// markStale flags the last view as stale. Without a previous view the rows
// come from the watch list alone, so watched instances are still listed.
func (l *ReconciliationLoop) markStale(ctx context.Context, err error) *domain.FleetView {
	var fallback *domain.FleetView
	if l.View() == nil {
		entries, lerr := l.watchList.List(ctx)
		if lerr != nil {
			l.logger.Warn("failed to list watch entries", slog.Any("error", lerr))
		}
		fallback = Merge(nil, entries, time.Time{})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	view := l.view.Clone()
	if view == nil {
		view = fallback
	}
	view.Stale = true
	view.Error = err.Error()
	l.view = view

	l.metrics.ObserveView(view)
	return view
}

func (l *ReconciliationLoop) publish(ctx context.Context, view *domain.FleetView) {
	for _, p := range l.publishers {
		if err := p.PublishView(ctx, view); err != nil {
			l.logger.Warn("failed to publish fleet view", slog.Any("error", err))
		}
	}
}

// Merge left-joins entries with instances. Every entry yields a row; an entry
// whose instance is missing gets PowerState unknown and Known false.
// Instances nobody watches are listed in Available.
func Merge(instances []domain.Instance, entries []*domain.WatchEntry, fetchedAt time.Time) *domain.FleetView {
	byID := make(map[string]domain.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}

	view := &domain.FleetView{
		Rows:      make([]domain.FleetRow, 0, len(entries)),
		Available: make([]domain.Instance, 0),
		FetchedAt: fetchedAt,
	}

	watched := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := watched[e.InstanceID]; dup {
			continue
		}
		watched[e.InstanceID] = struct{}{}

		inst, known := byID[e.InstanceID]
		if !known {
			inst = domain.Instance{
				ID:         e.InstanceID,
				PowerState: domain.PowerStateUnknown,
			}
		}
		view.Rows = append(view.Rows, domain.FleetRow{
			Instance:               inst,
			ScriptWorkingDirectory: e.ScriptWorkingDirectory,
			ScriptState:            e.ScriptState,
			LastCommandID:          e.LastCommandID,
			Known:                  known,
		})
	}

	for _, inst := range instances {
		if _, ok := watched[inst.ID]; !ok {
			view.Available = append(view.Available, inst)
		}
	}

	sort.Slice(view.Rows, func(i, j int) bool {
		return view.Rows[i].ID < view.Rows[j].ID
	})
	sort.Slice(view.Available, func(i, j int) bool {
		return view.Available[i].ID < view.Available[j].ID
	})
	return view
}
