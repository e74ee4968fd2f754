package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/crawl"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (f *fakeRunner) Run(_ context.Context, trigger string) (domain.CrawlRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return domain.CrawlRun{}, f.err
	}
	return domain.CrawlRun{RunID: "r1", FetchedCount: 12, InsertedNewCount: 5}, nil
}

func TestSpec(t *testing.T) {
	assert.Equal(t, "30 7 * * *", Spec(7, 30))
	assert.Equal(t, "0 0 * * *", Spec(0, 0))
}

func TestTriggerReturnsResult(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, arbor.NewLogger(), time.UTC)

	res, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 12, res.JobsFound)
	assert.Equal(t, 5, res.JobsAdded)
	assert.Equal(t, "Found 12 jobs, added 5 new jobs", res.Message)
	assert.Equal(t, "r1", res.RunID)
	assert.Equal(t, []string{crawl.TriggerManual}, r.triggers)
}

func TestTriggerBusy(t *testing.T) {
	s := New(&fakeRunner{err: crawl.ErrRunInProgress}, arbor.NewLogger(), time.UTC)
	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestFireSkipsWhenBusy(t *testing.T) {
	r := &fakeRunner{err: crawl.ErrRunInProgress}
	s := New(r, arbor.NewLogger(), time.UTC)
	s.fire()
	assert.Equal(t, []string{crawl.TriggerSchedule}, r.triggers)
}

func TestRescheduleMovesNextRun(t *testing.T) {
	s := New(&fakeRunner{}, arbor.NewLogger(), time.UTC)
	_, ok := s.NextRun()
	assert.False(t, ok)

	require.NoError(t, s.Start(context.Background(), 7, 0))
	defer s.Stop()

	next, ok := s.NextRun()
	require.True(t, ok)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 0, next.Minute())

	require.NoError(t, s.Reschedule(21, 45))
	next, ok = s.NextRun()
	require.True(t, ok)
	assert.Equal(t, 21, next.Hour())
	assert.Equal(t, 45, next.Minute())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRescheduleRejectsBadTime(t *testing.T) {
	s := New(&fakeRunner{}, arbor.NewLogger(), time.UTC)
	require.NoError(t, s.Reschedule(7, 0))
	assert.Error(t, s.Reschedule(25, 0))
	assert.Equal(t, "0 7 * * *", s.spec)
}

// slowRunner blocks until release and reports whether its context was
// cancelled by then.
type slowRunner struct {
	started  chan struct{}
	release  chan struct{}
	finished chan error
}

func (r *slowRunner) Run(ctx context.Context, _ string) (domain.CrawlRun, error) {
	close(r.started)
	<-r.release
	r.finished <- ctx.Err()
	now := time.Now()
	return domain.CrawlRun{RunID: "r2", FinishedAt: &now}, nil
}

func TestTriggerRunOutlivesCaller(t *testing.T) {
	r := &slowRunner{started: make(chan struct{}), release: make(chan struct{}), finished: make(chan error, 1)}
	s := New(r, arbor.NewLogger(), time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := s.Trigger(ctx)
		errc <- err
	}()

	<-r.started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(r.release)
	select {
	case err := <-r.finished:
		assert.NoError(t, err, "run context must not follow the caller")
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestTriggerRunStopsOnShutdown(t *testing.T) {
	r := &slowRunner{started: make(chan struct{}), release: make(chan struct{}), finished: make(chan error, 1)}
	s := New(r, arbor.NewLogger(), time.UTC)
	life, stop := context.WithCancel(context.Background())
	require.NoError(t, s.Start(life, 7, 0))
	defer s.Stop()

	go func() { _, _ = s.Trigger(context.Background()) }()
	<-r.started
	stop()
	close(r.release)
	assert.ErrorIs(t, <-r.finished, context.Canceled)
}
