package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"online_tables_lite/internal/api"
	"online_tables_lite/internal/config"
	"online_tables_lite/internal/realtime"
	"online_tables_lite/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetTable(ctx context.Context, slug, token string) (*api.Table, error) {
	args := m.Called(slug, token)
	table, _ := args.Get(0).(*api.Table)
	return table, args.Error(1)
}

func (m *mockAPI) UpdateCells(ctx context.Context, slug, token string, req api.CellBatchUpdateRequest) (*api.CellBatchUpdateResponse, error) {
	args := m.Called(slug, token, req)
	resp, _ := args.Get(0).(*api.CellBatchUpdateResponse)
	return resp, args.Error(1)
}

type fakeTransport struct {
	mu     *sync.Mutex
	ops    *[]string
	events chan realtime.Event
	once   sync.Once
	closed chan struct{}
}

func (f *fakeTransport) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.ops = append(*f.ops, op)
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.record("connect")
	f.events <- realtime.Event{Name: realtime.EventConnect}
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, id string) error {
	f.record("join:" + id)
	return nil
}

func (f *fakeTransport) Unsubscribe(ctx context.Context, id string) error {
	f.record("leave:" + id)
	return nil
}

func (f *fakeTransport) Next(ctx context.Context) (realtime.Event, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return realtime.Event{}, realtime.ErrClosed
	case <-ctx.Done():
		return realtime.Event{}, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() {
		f.record("close")
		close(f.closed)
	})
	return nil
}

type fakeRealtime struct {
	mu         sync.Mutex
	ops        []string
	transports []*fakeTransport
}

func (r *fakeRealtime) Dial(retry.Config) (realtime.Transport, error) {
	t := &fakeTransport{mu: &r.mu, ops: &r.ops, events: make(chan realtime.Event, 4), closed: make(chan struct{})}
	r.mu.Lock()
	r.transports = append(r.transports, t)
	r.mu.Unlock()
	return t, nil
}

func (r *fakeRealtime) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *fakeRealtime) Last() *fakeTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transports[len(r.transports)-1]
}

func testResilience() config.ResilienceConfig {
	fast := retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second, Retryable: api.IsRetryable}
	return config.ResilienceConfig{
		TableLoad:  fast,
		APIRequest: fast,
		CellFlush:  retry.Config{Timeout: time.Second},
		Reconnect:  retry.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, InfiniteRetry: true},
	}
}

func table(id string, cells ...api.Cell) *api.Table {
	return &api.Table{ID: id, Slug: "shifts", Cols: 3, Rows: 5, Cells: cells}
}

func TestOpenSeedsEditorAndRetriesLoad(t *testing.T) {
	m := &mockAPI{}
	m.On("GetTable", "shifts", "tok").Return(nil, &api.Error{Kind: api.KindNetwork, Op: "get table"}).Once()
	m.On("GetTable", "shifts", "tok").Return(table("t1", api.NewCell(0, 0, "a")), nil).Once()

	s, err := Open(context.Background(), m, "shifts", "tok", Options{Resilience: testResilience()})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "a", s.Editor().Value(0, 0))
	assert.Equal(t, "t1", s.Table().ID)
	assert.Nil(t, s.Channel())
	m.AssertExpectations(t)
}

func TestOpenStopsOnNotFound(t *testing.T) {
	m := &mockAPI{}
	m.On("GetTable", "gone", "tok").Return(nil, &api.Error{Kind: api.KindNotFound, StatusCode: 404}).Once()

	_, err := Open(context.Background(), m, "gone", "tok", Options{Resilience: testResilience()})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNotFound)
	m.AssertNumberOfCalls(t, "GetTable", 1)
}

func TestRemoteUpdatesReachEditor(t *testing.T) {
	m := &mockAPI{}
	m.On("GetTable", "shifts", "tok").Return(table("t1"), nil)
	rt := &fakeRealtime{}
	var remote []api.Cell
	var mu sync.Mutex

	s, err := Open(context.Background(), m, "shifts", "tok", Options{
		Resilience: testResilience(),
		Dial:       rt.Dial,
		OnRemote: func(cells []api.Cell) {
			mu.Lock()
			remote = append(remote, cells...)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, s.Editor().IsConnected, time.Second, time.Millisecond)

	data, err := json.Marshal(realtime.CellUpdate{TableID: "t1", Cells: []api.Cell{api.NewCell(1, 2, "live")}})
	require.NoError(t, err)
	rt.Last().events <- realtime.Event{Name: realtime.EventCellUpdate, Data: data}

	require.Eventually(t, func() bool { return s.Editor().Value(1, 2) == "live" }, time.Second, time.Millisecond)
	mu.Lock()
	assert.Len(t, remote, 1)
	mu.Unlock()
}

func TestEditsFlushThroughClient(t *testing.T) {
	m := &mockAPI{}
	m.On("GetTable", "shifts", "tok").Return(table("t1"), nil)
	req := api.CellBatchUpdateRequest{Cells: []api.Cell{api.NewCell(0, 1, "x")}}
	m.On("UpdateCells", "shifts", "tok", req).Return(&api.CellBatchUpdateResponse{Success: true, UpdatedCells: 1}, nil).Once()

	s, err := Open(context.Background(), m, "shifts", "tok", Options{Resilience: testResilience(), Debounce: time.Hour})
	require.NoError(t, err)
	defer s.Close()

	s.Editor().Set(0, 1, "x")
	require.NoError(t, s.Editor().FlushNow())
	assert.False(t, s.Editor().HasPendingEdits())
	m.AssertExpectations(t)
}

func TestReloadKeepsPendingAndSwitchesTable(t *testing.T) {
	m := &mockAPI{}
	m.On("GetTable", "shifts", "tok").Return(table("t1", api.NewCell(0, 0, "old")), nil).Once()
	m.On("GetTable", "shifts", "tok").Return(table("t2", api.NewCell(0, 0, "new")), nil).Once()
	rt := &fakeRealtime{}

	s, err := Open(context.Background(), m, "shifts", "tok", Options{
		Resilience: testResilience(),
		Dial:       rt.Dial,
		Debounce:   time.Hour,
	})
	require.NoError(t, err)
	defer s.Close()
	require.Eventually(t, s.Editor().IsConnected, time.Second, time.Millisecond)

	s.Editor().Set(3, 0, "draft")
	require.NoError(t, s.Reload(context.Background()))

	assert.Equal(t, "new", s.Editor().Value(0, 0))
	assert.Equal(t, "draft", s.Editor().Value(3, 0))
	require.Eventually(t, func() bool {
		ops := rt.Ops()
		return len(ops) == 6 && ops[5] == "join:t2"
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"connect", "join:t1", "leave:t1", "close", "connect", "join:t2"}, rt.Ops())
}

func TestCloseLeavesRoomAndStopsEditor(t *testing.T) {
	m := &mockAPI{}
	m.On("GetTable", "shifts", "tok").Return(table("t1"), nil)
	rt := &fakeRealtime{}

	s, err := Open(context.Background(), m, "shifts", "tok", Options{Resilience: testResilience(), Dial: rt.Dial})
	require.NoError(t, err)
	require.Eventually(t, s.Editor().IsConnected, time.Second, time.Millisecond)

	s.Editor().Set(0, 0, "unsent")
	s.Close()

	assert.Equal(t, []string{"connect", "join:t1", "leave:t1", "close"}, rt.Ops())
	m.AssertNotCalled(t, "UpdateCells", mock.Anything, mock.Anything, mock.Anything)
}
