package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/metrics"
)

// Fleet is the operator-facing entry point. Actions on one instance are
// serialized: a second action while one is in flight fails with
// ErrActionInProgress.
type Fleet struct {
	directory *InstanceDirectory
	watchList *WatchListStore
	power     *InstanceController
	scripts   *RemoteScriptController
	loop      *ReconciliationLoop

	journal            domain.CommandJournal
	metrics            *metrics.Metrics
	logger             *slog.Logger
	optimistic         bool
	refreshAfterAction bool

	actions *keyLock
}

type Option func(*Fleet)

func WithJournal(j domain.CommandJournal) Option {
	return func(f *Fleet) { f.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fleet) { f.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fleet) { f.logger = l }
}

// WithOptimisticScriptState labels a script running/idle as soon as its
// command is accepted instead of waiting for the command to complete.
func WithOptimisticScriptState(enabled bool) Option {
	return func(f *Fleet) { f.optimistic = enabled }
}

// WithRefreshAfterAction triggers a background reconciliation after every
// accepted action.
func WithRefreshAfterAction(enabled bool) Option {
	return func(f *Fleet) { f.refreshAfterAction = enabled }
}

func NewFleet(
	directory *InstanceDirectory,
	watchList *WatchListStore,
	power *InstanceController,
	scripts *RemoteScriptController,
	loop *ReconciliationLoop,
	opts ...Option,
) *Fleet {
	f := &Fleet{
		directory: directory,
		watchList: watchList,
		power:     power,
		scripts:   scripts,
		loop:      loop,
		logger:    slog.Default(),
		actions:   newKeyLock(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// List returns the merged view. Until the directory has been read once it
// tries a reconciliation; if one is already in flight the watch list is
// shown with every row unknown and the view flagged stale.
func (f *Fleet) List(ctx context.Context) *domain.FleetView {
	view := f.loop.View()
	if view == nil || view.FetchedAt.IsZero() {
		if fresh, _ := f.loop.Refresh(ctx); fresh != nil {
			view = fresh
		}
	}
	if view == nil {
		view = f.loop.Remerge(ctx)
	}
	return f.annotate(view)
}

// Refresh triggers a reconciliation. started is false when the trigger was
// coalesced into one already in flight.
func (f *Fleet) Refresh(ctx context.Context) (view *domain.FleetView, started bool) {
	view, started = f.loop.Refresh(ctx)
	if view == nil {
		view = f.loop.Remerge(ctx)
	}
	return f.annotate(view), started
}

func (f *Fleet) Instances(ctx context.Context) ([]domain.Instance, error) {
	return f.directory.ListInstances(ctx)
}

// AddWatch starts watching an instance the provider currently knows about.
// An already watched instance is returned as is without contacting the
// provider.
func (f *Fleet) AddWatch(ctx context.Context, instanceID string) (*domain.WatchEntry, error) {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return nil, fmt.Errorf("%w: empty id", domain.ErrInstanceNotFound)
	}

	entry, err := f.watchList.Get(ctx, instanceID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, domain.ErrNotWatched) {
		return nil, err
	}

	if _, err := f.directory.Lookup(ctx, instanceID); err != nil {
		return nil, err
	}
	if _, err := f.watchList.Add(ctx, instanceID); err != nil {
		return nil, err
	}

	entry, err = f.watchList.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	f.loop.Remerge(ctx)
	return entry, nil
}

// RemoveWatch forgets an instance. The instance itself is left alone.
func (f *Fleet) RemoveWatch(ctx context.Context, instanceID string) error {
	if err := f.watchList.Remove(ctx, instanceID); err != nil {
		return err
	}
	f.loop.Remerge(ctx)
	return nil
}

func (f *Fleet) SetScriptPath(ctx context.Context, instanceID, path string) (*domain.WatchEntry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, domain.ErrScriptPathRequired
	}

	entry, err := f.watchList.SetScriptPath(ctx, instanceID, path)
	if err != nil {
		return nil, err
	}
	f.loop.Remerge(ctx)
	return entry, nil
}

func (f *Fleet) SetPower(ctx context.Context, instanceID string, action domain.Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}

	unlock, ok := f.actions.TryLock(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrActionInProgress, instanceID)
	}
	defer unlock()

	err := f.power.SetPower(ctx, instanceID, action)

	f.record(ctx, &domain.JournalEntry{
		InstanceID: instanceID,
		Kind:       domain.JournalKindPower,
		Action:     action,
	}, err)
	if err != nil {
		return err
	}

	if f.refreshAfterAction {
		f.loop.RefreshAsync()
	}
	return nil
}

// SetScript starts or stops the monitoring script. An empty path falls back
// to the saved working directory. A non-empty one is used for this command
// and saved only once the command has been accepted.
func (f *Fleet) SetScript(ctx context.Context, instanceID string, action domain.Action, path string) (domain.CommandHandle, error) {
	if !action.Valid() {
		return domain.CommandHandle{}, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}

	unlock, ok := f.actions.TryLock(instanceID)
	if !ok {
		return domain.CommandHandle{}, fmt.Errorf("%w: %s", domain.ErrActionInProgress, instanceID)
	}
	defer unlock()

	entry, err := f.watchList.Get(ctx, instanceID)
	if err != nil {
		return domain.CommandHandle{}, err
	}

	dir := strings.TrimSpace(path)
	if dir == "" {
		dir = entry.ScriptWorkingDirectory
	}
	if dir == "" {
		return domain.CommandHandle{}, domain.ErrScriptPathRequired
	}

	handle, err := f.scripts.SetScript(ctx, instanceID, action, dir)

	f.record(ctx, &domain.JournalEntry{
		InstanceID:       instanceID,
		Kind:             domain.JournalKindScript,
		Action:           action,
		WorkingDirectory: dir,
		CommandID:        handle.CommandID,
	}, err)

	if err != nil {
		if errors.Is(err, domain.ErrCommandRejected) {
			f.updateScriptState(ctx, instanceID, domain.ScriptStateError, "")
			f.loop.Remerge(ctx)
		}
		return domain.CommandHandle{}, err
	}

	if dir != entry.ScriptWorkingDirectory {
		f.updateScriptPath(ctx, instanceID, dir)
	}
	f.updateScriptState(ctx, instanceID, submittedState(action, f.optimistic), handle.CommandID)
	f.loop.Remerge(ctx)
	if f.refreshAfterAction {
		f.loop.RefreshAsync()
	}
	return handle, nil
}

func submittedState(action domain.Action, optimistic bool) domain.ScriptState {
	switch {
	case action == domain.ActionStart && optimistic:
		return domain.ScriptStateRunning
	case action == domain.ActionStart:
		return domain.ScriptStateStarting
	case optimistic:
		return domain.ScriptStateIdle
	default:
		return domain.ScriptStateStopping
	}
}

// updateScriptPath and updateScriptState run after the provider already
// answered, so a storage failure here is logged rather than returned.
func (f *Fleet) updateScriptPath(ctx context.Context, instanceID, dir string) {
	if _, err := f.watchList.SetScriptPath(ctx, instanceID, dir); err != nil {
		f.logger.Error("failed to save script path",
			slog.String("instance_id", instanceID),
			slog.String("path", dir),
			slog.Any("error", err),
		)
	}
}

func (f *Fleet) updateScriptState(ctx context.Context, instanceID string, state domain.ScriptState, commandID string) {
	if _, err := f.watchList.SetScriptState(ctx, instanceID, state, commandID); err != nil {
		f.logger.Error("failed to update script state",
			slog.String("instance_id", instanceID),
			slog.String("script_state", string(state)),
			slog.Any("error", err),
		)
	}
}

func (f *Fleet) record(ctx context.Context, entry *domain.JournalEntry, err error) {
	f.metrics.ObserveAction(entry.Kind, entry.Action, err)

	if f.journal == nil {
		return
	}
	entry.At = time.Now().UTC()
	if err != nil {
		entry.ErrorCode = domain.ErrorCode(err)
		entry.ErrorMessage = err.Error()
	}
	if jerr := f.journal.Record(ctx, entry); jerr != nil {
		f.logger.Warn("failed to record journal entry",
			slog.String("instance_id", entry.InstanceID),
			slog.Any("error", jerr),
		)
	}
}

func (f *Fleet) annotate(view *domain.FleetView) *domain.FleetView {
	if view == nil {
		return nil
	}
	for i := range view.Rows {
		view.Rows[i].ActionInProgress = f.actions.Held(view.Rows[i].ID)
	}
	return view
}
