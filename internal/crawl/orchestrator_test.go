package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/dedup"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/events"
	"github.com/linkmeAman/JHuntAutomator/internal/metrics"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

type fakeAdapter struct {
	id       string
	postings []domain.RawPosting
	err      error
	hang     bool
	panics   bool
	started  chan struct{}

	mu   sync.Mutex
	reqs []types.FetchRequest
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Fetch(ctx context.Context, req types.FetchRequest) (types.FetchResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.panics {
		panic("boom")
	}
	if f.hang {
		<-ctx.Done()
		return types.FetchResult{}, ctx.Err()
	}
	res := types.FetchResult{Postings: f.postings, Cursor: req.Cursor.Clone()}
	res.Metrics.PagesFetched = 1
	return res, f.err
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeSources []types.Adapter

func (s fakeSources) Enabled(config.Settings) []types.Adapter { return s }

type recordingNotifier struct {
	mu    sync.Mutex
	runs  []domain.CrawlRun
	fresh []domain.Job
}

func (n *recordingNotifier) RunFinished(_ context.Context, _ config.Notifications, run domain.CrawlRun, fresh []domain.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, run)
	n.fresh = append(n.fresh, fresh...)
	return nil
}

type harness struct {
	db       *store.DB
	orch     *Orchestrator
	hub      *events.Hub
	notifier *recordingNotifier
	metrics  *metrics.Recorder
}

func newHarness(t *testing.T, sources fakeSources, opts Options) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := config.Default()
	s.Keywords = []string{"engineer"}
	cs := config.NewMemoryStore(s)

	h := &harness{
		db:       db,
		hub:      events.NewHub(),
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
	}
	logger := arbor.NewLogger()
	h.orch = New(Deps{
		Store:    db,
		Sources:  sources,
		Engine:   dedup.NewEngine(db, nil, logger),
		Settings: cs.Get,
		Events:   h.hub,
		Metrics:  h.metrics,
		Notifier: h.notifier,
		Logger:   logger,
	}, opts)
	return h
}

func runsTotal(t *testing.T, r *metrics.Recorder, result string) float64 {
	t.Helper()
	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "jhunt_crawl_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func posting(id, title string) domain.RawPosting {
	posted := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	return domain.RawPosting{
		Title:       title,
		Company:     "Acme",
		URL:         "https://jobs.example.com/" + id,
		Description: "Go services",
		PostedAt:    &posted,
	}
}

func TestRunFinishesWhenOneSourceTimesOut(t *testing.T) {
	ctx := context.Background()
	gh := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{
		posting("1", "Backend Engineer"),
		posting("2", "Platform Engineer"),
		posting("3", "Office Manager"),
	}}
	ro := &fakeAdapter{id: "remoteok", hang: true}
	h := newHarness(t, fakeSources{gh, ro}, Options{SourceTimeout: 50 * time.Millisecond})

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	run, err := h.orch.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.NoError(t, run.Validate())

	assert.Equal(t, domain.RunStatusFinished, run.Status)
	assert.Equal(t, []string{"greenhouse", "remoteok"}, run.SourcesAttempted)
	assert.Equal(t, []string{"greenhouse"}, run.SourcesSucceeded)
	require.Len(t, run.SourcesFailed, 1)
	assert.Equal(t, "remoteok", run.SourcesFailed[0].Source)
	assert.Equal(t, "timeout: source exceeded 50ms", run.SourcesFailed[0].Error)
	assert.Equal(t, "remoteok: timeout: source exceeded 50ms", run.ErrorsSummary)
	assert.Equal(t, 3, run.FetchedCount)
	assert.Equal(t, 2, run.InsertedNewCount)
	assert.GreaterOrEqual(t, run.FetchedCount, run.InsertedNewCount)

	ghState, err := h.db.GetSourceState(ctx, "greenhouse")
	require.NoError(t, err)
	assert.NotNil(t, ghState.LastSuccessAt)
	assert.Equal(t, 0, ghState.ConsecutiveFailures)
	require.NotNil(t, ghState.Cursor.LastMaxPostDateSeen)
	assert.Equal(t, 2.0, ghState.LastMetrics["jobs_inserted_count"].Num())
	assert.Equal(t, 1.0, ghState.LastMetrics["jobs_filtered_count"].Num())

	roState, err := h.db.GetSourceState(ctx, "remoteok")
	require.NoError(t, err)
	assert.Nil(t, roState.LastSuccessAt)
	assert.Equal(t, 1, roState.ConsecutiveFailures)
	assert.Nil(t, roState.CooldownUntil)

	assert.Equal(t, 1.0, runsTotal(t, h.metrics, metrics.ResultPartial))
	require.Len(t, h.notifier.runs, 1)
	assert.Len(t, h.notifier.fresh, 2)
	assert.Equal(t, PhaseIdle, h.orch.Phase())

	var kinds []string
	for len(sub) > 0 {
		var e events.Event
		require.NoError(t, json.Unmarshal([]byte(<-sub), &e))
		kinds = append(kinds, e.Type)
	}
	require.Len(t, kinds, 4)
	assert.Equal(t, events.RunStarted, kinds[0])
	assert.Equal(t, events.RunFinished, kinds[3])
}

func TestRunSkipsSourcesInCooldown(t *testing.T) {
	ctx := context.Background()
	gh := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{posting("1", "Backend Engineer")}}
	lv := &fakeAdapter{id: "lever"}
	h := newHarness(t, fakeSources{gh, lv}, Options{})

	until := time.Now().Add(30 * time.Minute)
	_, err := h.db.UpsertSourceState(ctx, "lever", store.SourceStatePatch{CooldownUntil: &until})
	require.NoError(t, err)

	run, err := h.orch.Run(ctx, TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, []string{"greenhouse"}, run.SourcesAttempted)
	assert.Equal(t, 0, lv.calls())
}

func TestRunClearsCooldownTooFarAhead(t *testing.T) {
	ctx := context.Background()
	lv := &fakeAdapter{id: "lever"}
	h := newHarness(t, fakeSources{lv}, Options{})

	until := time.Now().Add(48 * time.Hour)
	_, err := h.db.UpsertSourceState(ctx, "lever", store.SourceStatePatch{CooldownUntil: &until})
	require.NoError(t, err)

	run, err := h.orch.Run(ctx, TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, []string{"lever"}, run.SourcesAttempted)
	assert.Equal(t, 1, lv.calls())
}

func TestRunBlockedSourceGetsCooldown(t *testing.T) {
	ctx := context.Background()
	wd := &fakeAdapter{id: "workday", err: util.Blocked(fmt.Errorf("http 403"))}
	h := newHarness(t, fakeSources{wd}, Options{})

	run, err := h.orch.Run(ctx, TriggerManual)
	require.NoError(t, err)
	require.Len(t, run.SourcesFailed, 1)
	assert.Equal(t, "blocked: http 403 (cooldown 30m)", run.SourcesFailed[0].Error)
	assert.Empty(t, run.SourcesSucceeded)

	st, err := h.db.GetSourceState(ctx, "workday")
	require.NoError(t, err)
	require.NotNil(t, st.CooldownUntil)
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Contains(t, st.LastMetrics["errors"].List(), "blocked: http 403 (cooldown 30m)")
	assert.Equal(t, 1.0, runsTotal(t, h.metrics, metrics.ResultFailed))
}

func TestRunRecoversAdapterPanic(t *testing.T) {
	ctx := context.Background()
	bad := &fakeAdapter{id: "lever", panics: true}
	good := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{posting("1", "Go Engineer")}}
	h := newHarness(t, fakeSources{good, bad}, Options{})

	run, err := h.orch.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"greenhouse"}, run.SourcesSucceeded)
	require.Len(t, run.SourcesFailed, 1)
	assert.Contains(t, run.SourcesFailed[0].Error, "adapter panic: boom")
}

func TestRunMarksStopOnSeen(t *testing.T) {
	ctx := context.Background()
	gh := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{
		posting("1", "Backend Engineer"),
		posting("2", "Platform Engineer"),
	}}
	h := newHarness(t, fakeSources{gh}, Options{})

	_, err := h.orch.Run(ctx, TriggerManual)
	require.NoError(t, err)
	second, err := h.orch.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.InsertedNewCount)
	assert.Equal(t, 2, second.FetchedCount)

	st, err := h.db.GetSourceState(ctx, "greenhouse")
	require.NoError(t, err)
	assert.Equal(t, []string{util.StopOnSeenNote(1)}, st.LastMetrics["errors"].List())
	assert.Equal(t, 2.0, st.LastMetrics["jobs_deduped_count"].Num())

	require.Len(t, gh.reqs, 2)
	assert.NotNil(t, gh.reqs[1].Seen)
	assert.True(t, gh.reqs[1].IsSeen(ctx, posting("1", "Backend Engineer")))
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	slow := &fakeAdapter{id: "remoteok", hang: true, started: make(chan struct{})}
	h := newHarness(t, fakeSources{slow}, Options{SourceTimeout: time.Second})

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Run(ctx, TriggerSchedule)
		done <- err
	}()
	<-slow.started

	id, active := h.orch.Active()
	assert.True(t, active)
	assert.NotEmpty(t, id)
	assert.Equal(t, PhaseRunning, h.orch.Phase())

	_, err := h.orch.Run(ctx, TriggerManual)
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, <-done)
}

func TestRunCancelledLeavesRunOpen(t *testing.T) {
	slow := &fakeAdapter{id: "remoteok", hang: true, started: make(chan struct{})}
	h := newHarness(t, fakeSources{slow}, Options{SourceTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var run domain.CrawlRun
	var err error
	go func() {
		run, err = h.orch.Run(ctx, TriggerManual)
		close(done)
	}()
	<-slow.started
	cancel()
	<-done
	require.ErrorIs(t, err, context.Canceled)

	stored, gerr := h.db.GetRun(context.Background(), run.RunID)
	require.NoError(t, gerr)
	assert.Nil(t, stored.FinishedAt)
	assert.Equal(t, domain.RunStatusRunning, stored.Status)

	_, serr := h.db.GetSourceState(context.Background(), "remoteok")
	assert.ErrorIs(t, serr, store.ErrNotFound)
}

// flakyStore fails RecordSourceOutcome for one source a fixed number of times.
type flakyStore struct {
	*store.DB
	source string

	mu    sync.Mutex
	fails int
}

func (f *flakyStore) RecordSourceOutcome(ctx context.Context, runID string, o store.SourceOutcome, p store.SourceStatePatch) (domain.SourceState, error) {
	f.mu.Lock()
	fail := o.Source == f.source && f.fails > 0
	if fail {
		f.fails--
	}
	f.mu.Unlock()
	if fail {
		return domain.SourceState{}, fmt.Errorf("database is locked")
	}
	return f.DB.RecordSourceOutcome(ctx, runID, o, p)
}

func TestRunAccountsForSourceWhenOutcomeWriteFails(t *testing.T) {
	ctx := context.Background()

	t.Run("retry records failure", func(t *testing.T) {
		gh := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{posting("1", "Backend Engineer")}}
		lv := &fakeAdapter{id: "lever", postings: []domain.RawPosting{posting("2", "Platform Engineer")}}
		h := newHarness(t, fakeSources{gh, lv}, Options{})
		h.orch.d.Store = &flakyStore{DB: h.db, source: "greenhouse", fails: 1}

		run, err := h.orch.Run(ctx, TriggerManual)
		require.NoError(t, err)
		require.NoError(t, run.Validate())

		assert.Equal(t, []string{"lever"}, run.SourcesSucceeded)
		require.Len(t, run.SourcesFailed, 1)
		assert.Equal(t, "greenhouse", run.SourcesFailed[0].Source)
		assert.Equal(t, "record outcome: database is locked", run.SourcesFailed[0].Error)
		assert.Equal(t, 2, run.FetchedCount)
		assert.Equal(t, 2, run.InsertedNewCount)

		st, err := h.db.GetSourceState(ctx, "greenhouse")
		require.NoError(t, err)
		assert.Nil(t, st.LastSuccessAt, "failure-only outcome leaves state untouched")
	})

	t.Run("finish backfills", func(t *testing.T) {
		gh := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{posting("1", "Backend Engineer")}}
		lv := &fakeAdapter{id: "lever", postings: []domain.RawPosting{posting("2", "Platform Engineer")}}
		h := newHarness(t, fakeSources{gh, lv}, Options{})
		h.orch.d.Store = &flakyStore{DB: h.db, source: "greenhouse", fails: 2}

		run, err := h.orch.Run(ctx, TriggerManual)
		require.NoError(t, err)
		require.NoError(t, run.Validate())

		assert.Equal(t, []string{"lever"}, run.SourcesSucceeded)
		require.Len(t, run.SourcesFailed, 1)
		assert.Equal(t, "greenhouse", run.SourcesFailed[0].Source)
		assert.Equal(t, store.OutcomeNotRecorded, run.SourcesFailed[0].Error)
		assert.Contains(t, run.ErrorsSummary, "greenhouse: "+store.OutcomeNotRecorded)
	})
}

func TestNewDefaultsLogger(t *testing.T) {
	gh := &fakeAdapter{id: "greenhouse", postings: []domain.RawPosting{posting("1", "Backend Engineer")}}
	h := newHarness(t, fakeSources{gh}, Options{})

	o := New(Deps{
		Store:    h.db,
		Sources:  fakeSources{gh},
		Engine:   dedup.NewEngine(h.db, nil, arbor.NewLogger()),
		Settings: config.Default,
	}, Options{})
	require.NotNil(t, o.d.Logger)

	run, err := o.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.NoError(t, run.Validate())
}
