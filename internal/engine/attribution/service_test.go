package attribution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"CuboTrack/internal/config"
	"CuboTrack/internal/engine/regen"
	"CuboTrack/internal/model"
	"CuboTrack/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegen struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRegen) Trigger(ctx context.Context) regen.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return regen.Result{Ran: true, RunID: "run", Message: "Report regenerated."}
}

type fixture struct {
	svc   *Service
	store *store.Store
	state *store.FileStateStore
	path  string
	regen *fakeRegen
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default().Store
	cfg.Dir = t.TempDir()
	st := store.New(cfg)
	path := cfg.Path(cfg.StateFile)
	state := store.NewFileStateStore(path)
	r := &fakeRegen{}
	return &fixture{
		svc:   NewService(NewEngine(), state, st, r),
		store: st,
		state: state,
		path:  path,
		regen: r,
	}
}

func TestService_ProcessBatchPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetPending(ctx, "  ALICE ")
	require.NoError(t, err)

	batch := records(t, 1,
		`{"event":"start","session":7,"src_ip":"10.0.0.2"}`,
		`{"event":"ok","session":7,"src_ip":"10.0.0.2"}`,
		`{"event":"ok","session":7,"src_ip":"10.0.0.2"}`,
		`{"event":"stop","session":7,"ok_total":2,"err_total":0,"total_ms":500,"src_ip":"10.0.0.2"}`,
	)
	out, err := f.svc.ProcessBatch(ctx, batch)
	require.NoError(t, err)
	assert.True(t, out.RegenerationDue)
	assert.Equal(t, 1, f.regen.calls)

	entries, err := f.store.Sessions.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].InstanceID, entries[1].InstanceID)
	assert.Equal(t, 1, entries[0].StartLine)
	assert.Equal(t, 4, entries[1].StopLine)

	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", st.PendingOperator)
	assert.Equal(t, "ALICE", st.LastOperator)
	assert.Equal(t, 4, st.LastSeenLine)
	assert.False(t, st.Active())

	assert.Equal(t, []string{"ALICE"}, f.store.Known.Load())
}

func TestService_OverlappingBatchesApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batch := records(t, 1, `{"event":"start","session":1,"src_ip":"ip"}`)
	_, err := f.svc.ProcessBatch(ctx, batch)
	require.NoError(t, err)

	// A second poller read the same lines before the first one persisted.
	out, err := f.svc.ProcessBatch(ctx, records(t, 1, `{"event":"start","session":1,"src_ip":"ip"}`))
	require.NoError(t, err)
	assert.Empty(t, out.Opens)

	entries, err := f.store.Sessions.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_FinalizeIdleLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessBatch(ctx, records(t, 1, `{"event":"ok","session":1,"src_ip":"ip"}`))
	require.NoError(t, err)
	before, err := os.ReadFile(f.path)
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoActiveSession))

	after, err := os.ReadFile(f.path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, f.regen.calls)
}

func TestService_Finalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetPending(ctx, "BOB")
	require.NoError(t, err)
	_, err = f.svc.ProcessBatch(ctx, records(t, 1,
		`{"event":"start","session":3,"src_ip":"10.0.0.9"}`,
		`{"event":"ok","session":3,"src_ip":"10.0.0.9"}`,
	))
	require.NoError(t, err)

	res, err := f.svc.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BOB", res.Operator)
	assert.True(t, res.Regen.Ran)
	assert.Equal(t, 1, f.regen.calls)

	folded, err := f.store.Sessions.Fold()
	require.NoError(t, err)
	entry := folded["10.0.0.9|3|1"]
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.StartLine)
	assert.Equal(t, 2, entry.StopLine)

	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.Active())

	_, err = f.svc.Finalize(ctx)
	assert.True(t, errors.Is(err, ErrNoActiveSession))
}

func TestService_SetPendingRejectsBlank(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetPending(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrEmptyOperator))

	_, statErr := os.Stat(f.path)
	assert.True(t, os.IsNotExist(statErr), "state must not be written")
}

// runConcurrentStarts feeds one START per device session to two services
// sharing a state backend, all at once, optionally racing a Finalize. It
// returns the audit entries and the final state.
func runConcurrentStarts(t *testing.T, cfg config.StoreConfig, newState func() store.StateStore, finalize bool) ([]*model.SessionMapEntry, *model.AttributionState) {
	t.Helper()
	const starts = 8
	services := []*Service{
		NewService(NewEngine(), newState(), store.New(cfg), nil),
		NewService(NewEngine(), newState(), store.New(cfg), nil),
	}
	batches := make([][]*model.Record, starts)
	for i := range batches {
		line := i + 1
		batches[i] = records(t, line, fmt.Sprintf(`{"event":"start","session":%d,"src_ip":"10.0.0.%d"}`, line, line))
	}

	ctx := context.Background()
	ready := make(chan struct{})
	errs := make(chan error, starts+1)
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(svc *Service, batch []*model.Record) {
			defer wg.Done()
			<-ready
			_, err := svc.ProcessBatch(ctx, batch)
			errs <- err
		}(services[i%len(services)], batch)
	}
	if finalize {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ready
			_, err := services[1].Finalize(ctx)
			if errors.Is(err, ErrNoActiveSession) || errors.Is(err, ErrNoObservedLine) {
				err = nil
			}
			errs <- err
		}()
	}
	close(ready)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := store.New(cfg).Sessions.Entries()
	require.NoError(t, err)
	st, err := services[0].State(ctx)
	require.NoError(t, err)
	assert.Equal(t, starts, st.LastSeenLine)
	return entries, st
}

// assertOneSessionAtATime walks the audit log and checks that no session was
// opened while another one was still open.
func assertOneSessionAtATime(t *testing.T, entries []*model.SessionMapEntry, st *model.AttributionState) {
	t.Helper()
	open := ""
	opens := 0
	for _, e := range entries {
		if e.StopLine > 0 {
			assert.Equal(t, open, e.InstanceID, "close entry must match the open session")
			open = ""
			continue
		}
		assert.Empty(t, open, "session %s opened while %s was active", e.InstanceID, open)
		open = e.InstanceID
		opens++
	}
	assert.GreaterOrEqual(t, opens, 1)
	assert.Equal(t, open, st.ActiveInstance)
	assert.Equal(t, open != "", st.Active())
}

func fileBackend(t *testing.T) (config.StoreConfig, func() store.StateStore) {
	cfg := config.Default().Store
	cfg.Dir = t.TempDir()
	shared := store.NewFileStateStore(cfg.Path(cfg.StateFile))
	return cfg, func() store.StateStore { return shared }
}

func TestService_ConcurrentStartsOpenOneSession(t *testing.T) {
	cfg, newState := fileBackend(t)
	entries, st := runConcurrentStarts(t, cfg, newState, false)

	require.Len(t, entries, 1, "exactly one START may win the slot")
	assertOneSessionAtATime(t, entries, st)
	assert.Equal(t, model.Unassigned, st.ActiveOperator)
}

func TestService_ConcurrentStartsAndFinalize(t *testing.T) {
	cfg, newState := fileBackend(t)
	entries, st := runConcurrentStarts(t, cfg, newState, true)
	assertOneSessionAtATime(t, entries, st)
}

func TestService_ConcurrentStartsRedis(t *testing.T) {
	addr := os.Getenv("CUBO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CUBO_TEST_REDIS_ADDR not set")
	}
	key := fmt.Sprintf("cubo:test:%s", uuid.NewString())
	t.Cleanup(func() {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		client.Del(context.Background(), key, key+":lock")
	})

	cfg := config.Default().Store
	cfg.Dir = t.TempDir()
	newState := func() store.StateStore {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { client.Close() })
		return store.NewRedisStateStoreWithClient(client, key)
	}

	entries, st := runConcurrentStarts(t, cfg, newState, true)
	assertOneSessionAtATime(t, entries, st)
}
