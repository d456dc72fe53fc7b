package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(s string) *string {
	return &s
}

func record(id, state string) domain.InstanceRecord {
	return domain.InstanceRecord{
		ID:           ptr(id),
		Name:         ptr("name-" + id),
		InstanceType: ptr("t3.micro"),
		State:        ptr(state),
		Address:      ptr(id + ".example.internal"),
	}
}

type MockKeyValueStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	scanErr error
	writes  int
}

func NewMockKeyValueStore() *MockKeyValueStore {
	return &MockKeyValueStore{data: make(map[string][]byte)}
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MockKeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

func (m *MockKeyValueStore) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = append([]byte(nil), value...)
	m.writes++
	return true, nil
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.writes++
	}
	return nil
}

func (m *MockKeyValueStore) Scan(ctx context.Context, prefix string) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	items := make([]domain.Item, 0)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			items = append(items, domain.Item{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

func (m *MockKeyValueStore) Close() error {
	return nil
}

func (m *MockKeyValueStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

type MockDescriber struct {
	mu      sync.Mutex
	records []domain.InstanceRecord
	err     error
	calls   int
	// when set, DescribeInstances signals entered and waits on release
	entered chan struct{}
	release chan struct{}
}

func NewMockDescriber(records ...domain.InstanceRecord) *MockDescriber {
	return &MockDescriber{records: records}
}

func (m *MockDescriber) DescribeInstances(ctx context.Context) ([]domain.InstanceRecord, error) {
	m.mu.Lock()
	m.calls++
	entered, release := m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.InstanceRecord(nil), m.records...), nil
}

func (m *MockDescriber) Set(records ...domain.InstanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	m.err = nil
}

func (m *MockDescriber) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockDescriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type powerCall struct {
	instanceID string
	action     domain.Action
}

type MockPowerSwitch struct {
	mu      sync.Mutex
	calls   []powerCall
	err     error
	entered chan struct{}
	release chan struct{}
}

func (m *MockPowerSwitch) ChangePowerState(ctx context.Context, instanceID string, action domain.Action) error {
	m.mu.Lock()
	m.calls = append(m.calls, powerCall{instanceID: instanceID, action: action})
	entered, release := m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return m.err
}

func (m *MockPowerSwitch) Calls() []powerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]powerCall(nil), m.calls...)
}

type sentCommand struct {
	instanceID string
	document   string
	commands   []string
}

type MockCommandChannel struct {
	mu        sync.Mutex
	sent      []sentCommand
	err       error
	status    map[string]domain.CommandStatus
	statusErr error
	next      int
}

func NewMockCommandChannel() *MockCommandChannel {
	return &MockCommandChannel{status: make(map[string]domain.CommandStatus)}
}

func (m *MockCommandChannel) SendCommand(ctx context.Context, instanceID, document string, commands []string) (domain.CommandHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCommand{instanceID: instanceID, document: document, commands: commands})
	if m.err != nil {
		return domain.CommandHandle{}, m.err
	}
	m.next++
	id := fmt.Sprintf("cmd-%d", m.next)
	m.status[id] = domain.CommandStatusInProgress
	return domain.CommandHandle{CommandID: id, InstanceID: instanceID}, nil
}

func (m *MockCommandChannel) CommandStatus(ctx context.Context, handle domain.CommandHandle) (domain.CommandStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return "", m.statusErr
	}
	s, ok := m.status[handle.CommandID]
	if !ok {
		return "", fmt.Errorf("unknown command %s", handle.CommandID)
	}
	return s, nil
}

func (m *MockCommandChannel) Sent() []sentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCommand(nil), m.sent...)
}

func (m *MockCommandChannel) Complete(commandID string, status domain.CommandStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[commandID] = status
}

type MockPublisher struct {
	mu    sync.Mutex
	views []*domain.FleetView
	err   error
}

func (m *MockPublisher) PublishView(ctx context.Context, view *domain.FleetView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, view.Clone())
	return m.err
}

func (m *MockPublisher) Last() *domain.FleetView {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.views) == 0 {
		return nil
	}
	return m.views[len(m.views)-1]
}

type MockJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (m *MockJournal) Record(ctx context.Context, entry *domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockJournal) Entries() []domain.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.JournalEntry(nil), m.entries...)
}

type testFleet struct {
	kv        *MockKeyValueStore
	describer *MockDescriber
	power     *MockPowerSwitch
	channel   *MockCommandChannel
	publisher *MockPublisher
	journal   *MockJournal

	directory *InstanceDirectory
	watchList *WatchListStore
	loop      *ReconciliationLoop
	fleet     *Fleet
}

func newTestFleet(opts ...Option) *testFleet {
	tf := &testFleet{
		kv:        NewMockKeyValueStore(),
		describer: NewMockDescriber(),
		power:     &MockPowerSwitch{},
		channel:   NewMockCommandChannel(),
		publisher: &MockPublisher{},
		journal:   &MockJournal{},
	}
	logger := discardLogger()

	profile, _ := NewScriptProfile("shell", "", "")
	tf.directory = NewInstanceDirectory(tf.describer, logger)
	tf.watchList = NewWatchListStore(tf.kv, logger)
	scripts := NewRemoteScriptController(tf.directory, tf.channel, profile, logger)
	tf.loop = NewReconciliationLoop(tf.directory, tf.watchList, scripts, LoopConfig{}, nil, logger, tf.publisher)

	opts = append([]Option{WithLogger(logger), WithJournal(tf.journal)}, opts...)
	tf.fleet = NewFleet(
		tf.directory,
		tf.watchList,
		NewInstanceController(tf.power, logger),
		scripts,
		tf.loop,
		opts...,
	)
	return tf
}
