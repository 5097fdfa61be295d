package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-stp/rxavail/internal/candidates"
	"github.com/x-stp/rxavail/internal/checkpoint"
	rxio "github.com/x-stp/rxavail/internal/io"
	"github.com/x-stp/rxavail/internal/rdap"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient classifies by a fixed table; unknown domains are Taken.
type fakeClient struct {
	mu       sync.Mutex
	outcomes map[string]rdap.Outcome
	calls    []string
	onLookup func(n int)
}

func (f *fakeClient) Lookup(_ context.Context, domain, _ string) (rdap.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, domain)
	n := len(f.calls)
	f.mu.Unlock()

	if f.onLookup != nil {
		f.onLookup(n)
	}
	switch o, ok := f.outcomes[domain]; {
	case !ok:
		return rdap.Classify(http.StatusOK), nil
	case o == rdap.Available:
		return rdap.Classify(http.StatusNotFound), nil
	case o == rdap.Taken:
		return rdap.Classify(http.StatusOK), nil
	default:
		return rdap.Result{Err: rdap.ErrLookupTransport}, nil
	}
}

func (f *fakeClient) Registries() rdap.Registries {
	return rdap.Registries{"ai": "http://registry.invalid/domain/"}
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type nopPacer struct{ n int }

func (p *nopPacer) Acquire(ctx context.Context) error {
	p.n++
	return ctx.Err()
}

type memSink struct {
	available []string
	taken     []string
	failOn    string
}

func (s *memSink) AppendAvailable(d string) error {
	if d == s.failOn {
		return errors.New("disk full")
	}
	s.available = append(s.available, d)
	return nil
}

func (s *memSink) AppendTaken(d string) error {
	if d == s.failOn {
		return errors.New("disk full")
	}
	s.taken = append(s.taken, d)
	return nil
}

// recordingStore keeps every persisted state for inspection.
type recordingStore struct {
	checkpoint.Store
	mu        sync.Mutex
	persisted []checkpoint.State
}

func (s *recordingStore) Persist(ctx context.Context, scope string, st *checkpoint.State) error {
	if err := s.Store.Persist(ctx, scope, st); err != nil {
		return err
	}
	s.mu.Lock()
	s.persisted = append(s.persisted, *st)
	s.mu.Unlock()
	return nil
}

type harness struct {
	dir    string
	client *fakeClient
	pacer  *nopPacer
	sink   *memSink
	store  *recordingStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		dir:    dir,
		client: &fakeClient{outcomes: map[string]rdap.Outcome{}},
		pacer:  &nopPacer{},
		sink:   &memSink{},
		store:  &recordingStore{Store: checkpoint.NewFileStore(dir)},
	}
}

func (h *harness) checker(t *testing.T, words []string, limit, every int64) *Checker {
	t.Helper()
	c, err := NewChecker(CheckerConfig{
		Registry:        "ai",
		Limit:           limit,
		CheckpointEvery: every,
		Source:          candidates.NewSliceSource(words),
		Client:          h.client,
		Pacer:           h.pacer,
		Store:           h.store,
		Sink:            h.sink,
		Logger:          discardLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestCheckerEndToEndAgainstRDAPServer(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/domain/abcd.ai":
			w.WriteHeader(http.StatusNotFound)
		case "/domain/efgh.ai":
			w.WriteHeader(http.StatusOK)
		default:
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
	}))
	defer srv.Close()
	defer close(release)

	dir := t.TempDir()
	client := rdap.NewClient(rdap.Registries{"ai": srv.URL + "/domain/"},
		rdap.WithHTTPClient(srv.Client()), rdap.WithTimeout(100*time.Millisecond))
	pacer, err := NewRateLimiter(6000)
	require.NoError(t, err)
	sink, err := rxio.OpenResultSink(dir, "ai")
	require.NoError(t, err)
	store := checkpoint.NewFileStore(dir)

	c, err := NewChecker(CheckerConfig{
		Registry: "ai",
		Source:   candidates.NewSliceSource([]string{"abcd", "efgh", "ijkl"}),
		Client:   client,
		Pacer:    pacer,
		Store:    store,
		Sink:     sink,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)

	sum, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, StopExhausted, sum.Reason)
	assert.Equal(t, StateCompleted, c.State())

	loaded, err := store.Load(context.Background(), "ai")
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.LastIndex)
	assert.Equal(t, int64(3), loaded.Checked)
	assert.Equal(t, int64(1), loaded.Available)
	assert.Equal(t, int64(1), loaded.Taken)
	assert.Equal(t, int64(1), loaded.Errors)

	avail, err := os.ReadFile(filepath.Join(dir, "available_ai.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abcd.ai\n", string(avail))
	taken, err := os.ReadFile(filepath.Join(dir, "taken_ai.txt"))
	require.NoError(t, err)
	assert.Equal(t, "efgh.ai\n", string(taken))
}

func TestCheckerResumeMatchesUninterruptedRun(t *testing.T) {
	t.Parallel()

	words := []string{"baba", "babe", "babi", "babo", "babu", "bada", "bade", "badi", "bado", "badu"}
	outcomes := map[string]rdap.Outcome{
		"babe.ai": rdap.Available,
		"babo.ai": rdap.Unresolved,
		"bade.ai": rdap.Available,
		"badu.ai": rdap.Available,
	}

	whole := newHarness(t)
	whole.client.outcomes = outcomes
	_, err := whole.checker(t, words, 0, 3).Run(context.Background())
	require.NoError(t, err)

	split := newHarness(t)
	split.client.outcomes = outcomes
	for _, limit := range []int64{4, 7, 0} {
		_, err := split.checker(t, words, limit, 3).Run(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, whole.sink.available, split.sink.available)
	assert.Equal(t, whole.sink.taken, split.sink.taken)
	assert.Equal(t, whole.client.Calls(), split.client.Calls(), "every candidate is looked up exactly once")

	a, err := whole.store.Load(context.Background(), "ai")
	require.NoError(t, err)
	b, err := split.store.Load(context.Background(), "ai")
	require.NoError(t, err)
	assert.Equal(t, a.LastIndex, b.LastIndex)
	assert.Equal(t, a.Checked, b.Checked)
	assert.Equal(t, a.Available, b.Available)
	assert.Equal(t, a.Taken, b.Taken)
	assert.Equal(t, a.Errors, b.Errors)
	first := split.store.persisted[0]
	assert.True(t, first.StartedAt.Equal(b.StartedAt), "started_at survives resumes")
}

func TestCheckerCounterInvariantAtEveryPersist(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.client.outcomes = map[string]rdap.Outcome{
		"b.ai": rdap.Available,
		"c.ai": rdap.Unresolved,
		"f.ai": rdap.Unresolved,
	}
	words := []string{"a", "b", "c", "d", "e", "f", "g"}

	sum, err := h.checker(t, words, 0, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum.Processed)

	// Periodic persists at 2, 4, 6 and the final one.
	require.Len(t, h.store.persisted, 4)
	var prev int64
	for _, st := range h.store.persisted {
		assert.Equal(t, st.Checked, st.Available+st.Taken+st.Errors)
		assert.GreaterOrEqual(t, st.LastIndex, prev)
		assert.False(t, st.UpdatedAt.IsZero())
		prev = st.LastIndex
	}
	assert.Equal(t, int64(2), h.store.persisted[2].Errors)
	assert.Equal(t, int64(7), h.store.persisted[3].LastIndex)
}

func TestCheckerCancellationCompletesInFlightLookup(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.client.outcomes = map[string]rdap.Outcome{"c.ai": rdap.Available}
	h.client.onLookup = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	c := h.checker(t, []string{"a", "b", "c", "d", "e"}, 0, 100)
	sum, err := c.Run(ctx)
	require.NoError(t, err, "cancellation is not an error")

	assert.Equal(t, StateInterrupted, sum.State)
	assert.Equal(t, StopCancelled, sum.Reason)
	assert.Equal(t, []string{"a.ai", "b.ai", "c.ai"}, h.client.Calls())
	assert.Equal(t, []string{"c.ai"}, h.sink.available, "the in-flight lookup is recorded")

	require.Len(t, h.store.persisted, 1, "final persist happens despite cancellation")
	assert.Equal(t, int64(3), h.store.persisted[0].LastIndex)
	assert.Equal(t, int64(3), c.Progress().Checked)
}

func TestCheckerLimitAppliesToCumulativeChecked(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	words := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	sum, err := h.checker(t, words, 5, 100).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopLimit, sum.Reason)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, int64(5), sum.Checkpoint.LastIndex)

	// Same limit again: checked already reached it, so nothing is looked up.
	sum, err = h.checker(t, words, 5, 100).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopLimit, sum.Reason)
	assert.Zero(t, sum.Processed)
	assert.Equal(t, int64(5), sum.Checkpoint.LastIndex)
	assert.Equal(t, int64(5), sum.Checkpoint.Checked)
	assert.Len(t, h.client.Calls(), 5)
	assert.Equal(t, 5, h.pacer.n, "no permit is taken once the limit is reached")

	sum, err = h.checker(t, words, 7, 100).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Processed)
	assert.Equal(t, int64(7), sum.Checkpoint.LastIndex)
	assert.Equal(t, int64(7), sum.Checkpoint.Checked)
	assert.Equal(t, 7, h.pacer.n)
}

func TestCheckerResumeAtEndCompletesWithoutLookups(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	words := []string{"a", "b"}
	_, err := h.checker(t, words, 0, 100).Run(context.Background())
	require.NoError(t, err)

	sum, err := h.checker(t, words, 0, 100).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Zero(t, sum.Processed)
	assert.Len(t, h.client.Calls(), 2)
}

func TestNewCheckerRejectsUnknownRegistry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := NewChecker(CheckerConfig{
		Registry: "xyz",
		Source:   candidates.NewSliceSource([]string{"a"}),
		Client:   h.client,
		Pacer:    h.pacer,
		Store:    h.store,
		Sink:     h.sink,
	})
	require.ErrorIs(t, err, rdap.ErrUnknownRegistry)
	assert.Empty(t, h.client.Calls())

	_, err = NewChecker(CheckerConfig{Registry: "ai", Client: h.client})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCheckerCorruptCheckpointIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := checkpoint.NewFileStore(h.dir).Path("ai")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_index": 9`), 0644))

	sum, err := h.checker(t, []string{"a"}, 0, 100).Run(context.Background())
	require.ErrorIs(t, err, checkpoint.ErrCheckpointCorrupt)
	assert.Equal(t, StateInterrupted, sum.State)
	assert.Empty(t, h.client.Calls())
	assert.Empty(t, h.store.persisted, "a corrupt checkpoint is never overwritten")

	b, _ := os.ReadFile(path)
	assert.Equal(t, `{"last_index": 9`, string(b))
}

func TestCheckerCheckpointBeyondSourceIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	st := checkpoint.State{LastIndex: 5, Checked: 5, Taken: 5, StartedAt: time.Now()}
	require.NoError(t, h.store.Store.Persist(context.Background(), "ai", &st))

	_, err := h.checker(t, []string{"a", "b"}, 0, 100).Run(context.Background())
	require.ErrorIs(t, err, candidates.ErrIndexOutOfRange)
	assert.Empty(t, h.client.Calls())
}

func TestCheckerSinkFailureStopsAndKeepsCandidatePending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.sink.failOn = "c.ai"

	sum, err := h.checker(t, []string{"a", "b", "c", "d"}, 0, 100).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateInterrupted, sum.State)
	assert.Equal(t, StopFailed, sum.Reason)

	require.NotEmpty(t, h.store.persisted)
	last := h.store.persisted[len(h.store.persisted)-1]
	assert.Equal(t, int64(2), last.LastIndex, "the failed candidate is retried on resume")
	assert.Equal(t, []string{"a.ai", "b.ai"}, h.sink.taken)
}

func TestCheckerRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	started := make(chan struct{})
	unblock := make(chan struct{})
	h.client.onLookup = func(n int) {
		if n == 1 {
			close(started)
			<-unblock
		}
	}
	c := h.checker(t, []string{"a"}, 0, 100)

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()
	<-started

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, StateRunning, c.State())

	close(unblock)
	require.NoError(t, <-done)
}
