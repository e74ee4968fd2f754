// Package crawl drives one crawl run across the enabled sources.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/dedup"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/events"
	"github.com/linkmeAman/JHuntAutomator/internal/metrics"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

// Phase is where the active run is in its lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCreated    Phase = "created"
	PhaseRunning    Phase = "running"
	PhaseFinalizing Phase = "finalizing"
	PhaseFinished   Phase = "finished"
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// Store is the persistence the orchestrator needs; *store.DB implements it.
type Store interface {
	GetSourceState(ctx context.Context, source string) (domain.SourceState, error)
	UpsertSourceState(ctx context.Context, source string, p store.SourceStatePatch) (domain.SourceState, error)
	CreateRun(ctx context.Context, r domain.CrawlRun) error
	RecordSourceOutcome(ctx context.Context, runID string, o store.SourceOutcome, p store.SourceStatePatch) (domain.SourceState, error)
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, summary string) (domain.CrawlRun, error)
}

// Sources yields the adapters enabled in a settings snapshot.
type Sources interface {
	Enabled(s config.Settings) []types.Adapter
}

type Ingester interface {
	Ingest(ctx context.Context, p domain.RawPosting, s config.Settings) (dedup.Result, error)
	SeenFunc() types.SeenFunc
}

type Notifier interface {
	RunFinished(ctx context.Context, cfg config.Notifications, run domain.CrawlRun, fresh []domain.Job) error
}

type Options struct {
	Concurrency     int
	SourceTimeout   time.Duration
	StopOnSeenRatio float64
	MaxPages        int
	MaxJobs         int
	Lookback        time.Duration
	LookbackBuffer  time.Duration
}

// OptionsFromRuntime maps the env config onto orchestrator options.
func OptionsFromRuntime(rt config.Runtime) Options {
	return Options{
		Concurrency:     rt.Concurrency,
		SourceTimeout:   rt.SourceTimeout,
		StopOnSeenRatio: rt.StopOnSeenRatio,
		MaxPages:        rt.MaxPages,
		MaxJobs:         rt.MaxJobsPerSource,
		Lookback:        time.Duration(rt.LookbackDays) * 24 * time.Hour,
		LookbackBuffer:  time.Duration(rt.LookbackBufferDays) * 24 * time.Hour,
	}
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = 2 * time.Minute
	}
	if o.StopOnSeenRatio <= 0 {
		o.StopOnSeenRatio = 0.8
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 3
	}
	if o.MaxJobs <= 0 {
		o.MaxJobs = 50
	}
	if o.Lookback <= 0 {
		o.Lookback = 14 * 24 * time.Hour
	}
	return o
}

type Deps struct {
	Store    Store
	Sources  Sources
	Engine   Ingester
	Settings func() config.Settings
	Lock     Locker
	Events   events.Publisher
	Metrics  *metrics.Recorder
	Notifier Notifier
	Logger   arbor.ILogger
	Now      func() time.Time
}

type Orchestrator struct {
	d    Deps
	opts Options

	mu    sync.RWMutex
	phase Phase
	runID string
}

func New(d Deps, opts Options) *Orchestrator {
	if d.Lock == nil {
		d.Lock = NewRunLock("")
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = arbor.NewLogger()
	}
	return &Orchestrator{d: d, opts: opts.withDefaults(), phase: PhaseIdle}
}

// Phase reports the lifecycle phase of the active run, or idle.
func (o *Orchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

// Active reports whether a run is in progress and its id.
func (o *Orchestrator) Active() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runID, o.phase != PhaseIdle
}

func (o *Orchestrator) setPhase(p Phase, runID string) {
	o.mu.Lock()
	o.phase = p
	o.runID = runID
	o.mu.Unlock()
}

// sourceTask is one source admitted into a run.
type sourceTask struct {
	adapter types.Adapter
	state   domain.SourceState
}

// runTotals collects what the sources of one run produced.
type runTotals struct {
	mu       sync.Mutex
	fresh    []domain.Job
	failures map[string]string
}

func (t *runTotals) add(source string, fresh []domain.Job, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fresh = append(t.fresh, fresh...)
	if errMsg != "" {
		t.failures[source] = errMsg
	}
}

// Run executes one crawl. It returns ErrRunInProgress when another run holds
// the lock. If ctx is cancelled mid-run the record is left without a finish
// timestamp and readers treat it as abandoned.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (domain.CrawlRun, error) {
	release, err := o.d.Lock.TryLock(ctx)
	if err != nil {
		return domain.CrawlRun{}, err
	}
	defer release()

	run := domain.CrawlRun{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: o.d.Now().UTC(),
	}
	o.setPhase(PhaseCreated, run.RunID)
	defer o.setPhase(PhaseIdle, "")

	log := o.d.Logger.WithCorrelationId(run.RunID)
	settings := o.d.Settings()

	tasks, err := o.admit(ctx, settings, run.StartedAt)
	if err != nil {
		return run, err
	}
	run.SourcesAttempted = make([]string, 0, len(tasks))
	for _, t := range tasks {
		run.SourcesAttempted = append(run.SourcesAttempted, t.adapter.ID())
	}
	if err := o.d.Store.CreateRun(ctx, run); err != nil {
		return run, fmt.Errorf("create run: %w", err)
	}
	log.Info().Str("run_id", run.RunID).Str("trigger", trigger).Strs("sources", run.SourcesAttempted).Msg("crawl run started")
	o.d.Events.Emit("", events.RunStarted, run)

	o.setPhase(PhaseRunning, run.RunID)
	totals := &runTotals{failures: map[string]string{}}
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			o.runSource(ctx, run.RunID, t, settings, totals)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn().Str("run_id", run.RunID).Err(err).Msg("crawl run interrupted; left unfinished")
		return run, err
	}

	o.setPhase(PhaseFinalizing, run.RunID)
	var parts []string
	for _, id := range run.SourcesAttempted {
		if msg, ok := totals.failures[id]; ok {
			parts = append(parts, id+": "+msg)
		}
	}
	summary := strings.Join(parts, "; ")

	finished, err := o.d.Store.FinishRun(ctx, run.RunID, o.d.Now().UTC(), summary)
	if err != nil {
		return run, fmt.Errorf("finish run: %w", err)
	}
	o.setPhase(PhaseFinished, run.RunID)

	result := metrics.ResultOK
	switch {
	case len(finished.SourcesFailed) > 0 && len(finished.SourcesFailed) == len(finished.SourcesAttempted):
		result = metrics.ResultFailed
	case len(finished.SourcesFailed) > 0:
		result = metrics.ResultPartial
	}
	if o.d.Metrics != nil {
		o.d.Metrics.RunFinished(result)
	}
	log.Info().
		Str("run_id", finished.RunID).
		Str("result", result).
		Int("fetched", finished.FetchedCount).
		Int("inserted", finished.InsertedNewCount).
		Int("failed", len(finished.SourcesFailed)).
		Msg("crawl run finished")
	o.d.Events.Emit("", events.RunFinished, finished)

	if o.d.Notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		_ = o.d.Notifier.RunFinished(nctx, settings.Notifications, finished, totals.fresh)
		cancel()
	}
	return finished, nil
}

// admit loads the state of every enabled source and drops the ones in
// cooldown.
func (o *Orchestrator) admit(ctx context.Context, s config.Settings, now time.Time) ([]sourceTask, error) {
	var tasks []sourceTask
	for _, a := range o.d.Sources.Enabled(s) {
		id := a.ID()
		st, err := o.d.Store.GetSourceState(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			st = domain.SourceState{Source: id}
		case err != nil:
			return nil, fmt.Errorf("load source state %s: %w", id, err)
		}

		if SanitizeCooldown(&st, now) {
			o.d.Logger.Warn().Str("source", id).Msg("cooldown too far in the future; cleared")
			if _, err := o.d.Store.UpsertSourceState(ctx, id, store.SourceStatePatch{ClearCooldown: true}); err != nil {
				return nil, fmt.Errorf("reset cooldown %s: %w", id, err)
			}
		}
		inCooldown := st.InCooldown(now)
		if o.d.Metrics != nil {
			o.d.Metrics.SetCooldown(id, inCooldown)
		}
		if inCooldown {
			o.d.Logger.Info().Str("source", id).Str("until", st.CooldownUntil.Format(time.RFC3339)).Msg("source in cooldown; skipped")
			continue
		}
		tasks = append(tasks, sourceTask{adapter: a, state: st})
	}
	return tasks, nil
}

// sourceCounts are the per-source numbers folded into last_metrics.
type sourceCounts struct {
	fetched, parsed, inserted, updated, deduped, filtered int
}

func (c sourceCounts) metadata() domain.Metadata {
	return domain.Metadata{
		"fetched_count":       domain.Int(c.fetched),
		"jobs_parsed_count":   domain.Int(c.parsed),
		"jobs_inserted_count": domain.Int(c.inserted),
		"jobs_updated_count":  domain.Int(c.updated),
		"jobs_deduped_count":  domain.Int(c.deduped),
		"jobs_filtered_count": domain.Int(c.filtered),
	}
}

func (o *Orchestrator) runSource(ctx context.Context, runID string, t sourceTask, s config.Settings, totals *runTotals) {
	id := t.adapter.ID()
	log := o.d.Logger.WithCorrelationId(runID)
	start := o.d.Now()

	req := types.FetchRequest{
		Cursor:          t.state.Cursor.Clone(),
		Since:           Since(start.UTC(), t.state.Cursor, o.opts.Lookback, o.opts.LookbackBuffer),
		Settings:        s,
		Seen:            o.d.Engine.SeenFunc(),
		MaxPages:        o.opts.MaxPages,
		MaxJobs:         o.opts.MaxJobs,
		StopOnSeenRatio: o.opts.StopOnSeenRatio,
	}

	sctx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
	res, fetchErr := fetchGuarded(sctx, t.adapter, req)
	timedOut := errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	if ctx.Err() != nil {
		// shutdown: leave the source state untouched
		return
	}
	if timedOut && (fetchErr == nil || errors.Is(fetchErr, context.DeadlineExceeded) || errors.Is(fetchErr, context.Canceled)) {
		fetchErr = util.Timeout(fmt.Errorf("source exceeded %s", o.opts.SourceTimeout))
	}

	cursor := res.Cursor
	if cursor.HTTPCache == nil && cursor.LastMaxPostDateSeen == nil {
		cursor = t.state.Cursor.Clone()
	}

	var (
		counts sourceCounts
		fresh  []domain.Job
	)
	counts.fetched = len(res.Postings)
	for _, p := range res.Postings {
		if p.Source == "" {
			p.Source = id
		}
		r, err := o.d.Engine.Ingest(ctx, p, s)
		if err != nil {
			if errors.Is(err, dedup.ErrInvalidPosting) {
				res.Metrics.AddError("invalid posting %q: %v", p.URL, err)
				continue
			}
			res.Metrics.AddError("ingest %q: %v", p.URL, err)
			continue
		}
		counts.parsed++
		cursor.Advance(p.PostedAt)
		switch {
		case r.Filtered:
			counts.filtered++
		case r.New:
			counts.inserted++
			fresh = append(fresh, r.Job)
		default:
			counts.deduped++
			if r.Changed {
				counts.updated++
			}
		}
	}
	if counts.parsed > 0 {
		ratio := float64(counts.deduped) / float64(counts.parsed)
		if ratio >= o.opts.StopOnSeenRatio && !hasStopMarker(res.Metrics.Errors) {
			res.Metrics.Errors = append(res.Metrics.Errors, util.StopOnSeenNote(ratio))
		}
	}

	now := o.d.Now().UTC()
	elapsed := o.d.Now().Sub(start)
	outcome := store.SourceOutcome{Source: id, Fetched: counts.fetched, Inserted: counts.inserted}

	var (
		patch    store.SourceStatePatch
		cooldown time.Duration
	)
	if fetchErr != nil {
		kind := util.Classify(fetchErr)
		msg := fetchErr.Error()
		var se *util.SourceError
		if !errors.As(fetchErr, &se) {
			msg = string(kind) + ": " + msg
		}
		md := res.Metrics.Metadata()
		md.Merge(counts.metadata())
		md["duration_ms"] = domain.Int(int(elapsed.Milliseconds()))
		patch, cooldown = FailurePatch(t.state, kind, now, md)
		if cooldown > 0 {
			msg += fmt.Sprintf(" (cooldown %dm)", int(cooldown.Minutes()))
		}
		md.AppendString("errors", msg)
		outcome.Err = msg
	} else {
		md := res.Metrics.Metadata()
		md.Merge(counts.metadata())
		md["duration_ms"] = domain.Int(int(elapsed.Milliseconds()))
		patch = SuccessPatch(now, cursor, md)
	}

	if _, err := o.d.Store.RecordSourceOutcome(ctx, runID, outcome, patch); err != nil {
		log.Error().Str("run_id", runID).Str("source", id).Err(err).Msg("record source outcome failed")
		// Second try records the source as failed without touching its
		// state, so the run still accounts for it.
		outcome.Err = "record outcome: " + err.Error()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if _, err := o.d.Store.RecordSourceOutcome(rctx, runID, outcome, store.SourceStatePatch{}); err != nil {
			log.Error().Str("run_id", runID).Str("source", id).Err(err).Msg("record failure outcome failed")
		}
		cancel()
	}
	totals.add(id, fresh, outcome.Err)

	if o.d.Metrics != nil {
		o.d.Metrics.SourceFetched(id, fetchErr == nil, elapsed)
		o.d.Metrics.JobsInserted(id, counts.inserted)
		o.d.Metrics.SetCooldown(id, cooldown > 0)
	}

	ev := log.Info()
	if fetchErr != nil {
		ev = log.Warn().Str("error", outcome.Err)
	}
	ev.Str("run_id", runID).
		Str("source", id).
		Int("fetched", counts.fetched).
		Int("inserted", counts.inserted).
		Int("deduped", counts.deduped).
		Int("filtered", counts.filtered).
		Int64("dur_ms", elapsed.Milliseconds()).
		Msg("source finished")

	o.d.Events.Emit("", events.SourceFinished, map[string]any{
		"run_id":   runID,
		"source":   id,
		"ok":       fetchErr == nil,
		"fetched":  counts.fetched,
		"inserted": counts.inserted,
		"error":    outcome.Err,
	})
}

// fetchGuarded runs the adapter in its own goroutine so a panic becomes an
// error and an adapter that ignores ctx is abandoned at the deadline.
func fetchGuarded(ctx context.Context, a types.Adapter, req types.FetchRequest) (types.FetchResult, error) {
	type result struct {
		res types.FetchResult
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		res, err := a.Fetch(ctx, req)
		ch <- result{res: res, err: err}
	}()
	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return types.FetchResult{Cursor: req.Cursor}, ctx.Err()
	}
}

func hasStopMarker(errs []string) bool {
	for _, e := range errs {
		if strings.HasPrefix(e, util.StopOnSeenMarker) {
			return true
		}
	}
	return false
}
