// Package scheduler fires the daily crawl and serves on-demand rescans.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/crawl"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

// ErrBusy is returned by Trigger while another run is active.
var ErrBusy = crawl.ErrRunInProgress

// Runner executes one crawl; *crawl.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, trigger string) (domain.CrawlRun, error)
}

// Scheduler wraps robfig/cron with a single daily entry.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger arbor.ILogger

	mu      sync.Mutex
	ctx     context.Context
	entry   cron.EntryID
	spec    string
	started bool
}

// New builds a scheduler evaluating cron specs in loc (time.Local when nil).
func New(runner Runner, logger arbor.ILogger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger})),
		runner: runner,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Spec is the daily cron expression for hour:minute.
func Spec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// Start registers the daily run and starts the cron loop. Runs fired by cron
// use ctx, so cancelling it interrupts a scheduled crawl.
func (s *Scheduler) Start(ctx context.Context, hour, minute int) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	if err := s.Reschedule(hour, minute); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	next, _ := s.nextLocked()
	s.logger.Info().Str("spec", s.spec).Str("next_run", next.Format(time.RFC3339)).Msg("scheduler started")
	return nil
}

// Reschedule swaps the daily entry. The old entry stays when spec is invalid.
func (s *Scheduler) Reschedule(hour, minute int) error {
	spec := Spec(hour, minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec && s.entry != 0 {
		return nil
	}
	id, err := s.cron.AddFunc(spec, s.fire)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.spec = spec
	s.logger.Info().Str("spec", spec).Msg("daily crawl scheduled")
	return nil
}

// NextRun reports when the daily crawl fires next.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() (time.Time, bool) {
	if s.entry == 0 {
		return time.Time{}, false
	}
	e := s.cron.Entry(s.entry)
	if e.Next.IsZero() {
		// cron fills Next only once running
		sched, err := cron.ParseStandard(s.spec)
		if err != nil {
			return time.Time{}, false
		}
		return sched.Next(time.Now().In(s.cron.Location())), true
	}
	return e.Next, true
}

// Stop halts the cron loop and waits for a cron-fired run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Trigger starts a crawl now and waits for it. ErrBusy means a run is already
// active; the request is rejected rather than queued.
//
// The run itself uses the scheduler's lifetime context, not ctx: a caller
// that stops waiting (a closed browser tab) leaves the run to finish, and
// only shutdown cancels it.
func (s *Scheduler) Trigger(ctx context.Context) (domain.CrawlResult, error) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()

	type outcome struct {
		run domain.CrawlRun
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		run, err := s.runner.Run(base, crawl.TriggerManual)
		done <- outcome{run, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return domain.CrawlResult{}, o.err
		}
		return domain.ResultFromRun(o.run), nil
	case <-ctx.Done():
		s.logger.Info().Msg("rescan caller went away; run continues")
		return domain.CrawlResult{}, ctx.Err()
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	run, err := s.runner.Run(ctx, crawl.TriggerSchedule)
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Info().Msg("scheduled crawl skipped; a run is in progress")
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduled crawl failed")
	default:
		s.logger.Info().Str("run_id", run.RunID).Int("inserted", run.InsertedNewCount).Msg("scheduled crawl done")
	}
}

// cronLogger routes cron's own messages into arbor.
type cronLogger struct{ l arbor.ILogger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Str("kv", fmt.Sprint(kv...)).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Str("kv", fmt.Sprint(kv...)).Msg("cron: " + msg)
}
