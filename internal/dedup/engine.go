package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/rank"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

var ErrInvalidPosting = errors.New("posting has no title or url")

type JobStore interface {
	UpsertJob(ctx context.Context, j domain.Job) (store.UpsertResult, error)
	HasJobHash(ctx context.Context, hash string) (bool, error)
}

// ScorerFunc builds the scorer for the settings a run snapshotted.
type ScorerFunc func(s config.Settings) rank.Scorer

func KeywordScorer(s config.Settings) rank.Scorer { return rank.FromSettings(s) }

type Result struct {
	Job      domain.Job
	New      bool
	Changed  bool
	Filtered bool
}

type Engine struct {
	store  JobStore
	scorer ScorerFunc
	logger arbor.ILogger
}

func NewEngine(st JobStore, scorer ScorerFunc, logger arbor.ILogger) *Engine {
	if scorer == nil {
		scorer = KeywordScorer
	}
	return &Engine{store: st, scorer: scorer, logger: logger}
}

// Ingest normalizes and scores p, then upserts it by hash. Postings with no
// keyword hit are dropped when the settings require a match, unless the job
// is already stored: then its row is refreshed with the zero score so a
// keyword change does not leave a stale ranking behind.
func (e *Engine) Ingest(ctx context.Context, p domain.RawPosting, s config.Settings) (Result, error) {
	job, err := Normalize(p)
	if err != nil {
		return Result{}, err
	}

	rel := e.scorer(s).Score(p)
	job.RelevanceScore = rel.Score
	job.KeywordsMatched = rel.KeywordsMatched()
	if rel.Score <= 0 && s.KeywordMatchRequired() && len(s.Keywords) > 0 {
		stored, err := e.store.HasJobHash(ctx, job.JobHash)
		if err != nil {
			return Result{}, err
		}
		if !stored {
			return Result{Job: job, Filtered: true}, nil
		}
		res, err := e.store.UpsertJob(ctx, job)
		if err != nil {
			return Result{}, err
		}
		return Result{Job: res.Job, Changed: res.Changed, Filtered: true}, nil
	}

	res, err := e.store.UpsertJob(ctx, job)
	if err != nil {
		return Result{}, err
	}
	if res.Inserted {
		e.logger.Debug().Str("source", job.Source).Str("title", job.Title).Float64("score", job.RelevanceScore).Msg("new job")
	}
	return Result{Job: res.Job, New: res.Inserted, Changed: res.Changed}, nil
}

// Normalize turns an adapter posting into a job ready for storage.
func Normalize(p domain.RawPosting) (domain.Job, error) {
	title := util.CleanText(p.Title)
	canonical := CanonicalURL(p.URL)
	if title == "" || canonical == "" {
		return domain.Job{}, ErrInvalidPosting
	}
	company := util.CleanText(p.Company)
	location := util.NormalizeLocation(p.Location)

	j := domain.Job{
		Title:        title,
		Company:      company,
		Location:     location,
		Description:  p.Description,
		Requirements: p.Requirements,
		URL:          canonical,
		Source:       p.Source,
		Remote:       p.Remote || util.IsRemote(location, title),
		SourceMeta:   p.Meta,
		JobHash:      JobHash(title, company, p.URL),
	}
	if p.PostedAt != nil && !p.PostedAt.IsZero() {
		j.PostDate = p.PostedAt.UTC().Format(time.RFC3339)
	}
	return j, nil
}

// SeenFunc answers stop-on-seen checks against the job table. Lookup
// errors count as unseen so paging continues.
func (e *Engine) SeenFunc() types.SeenFunc {
	return func(ctx context.Context, p domain.RawPosting) bool {
		ok, err := e.store.HasJobHash(ctx, JobHash(util.CleanText(p.Title), util.CleanText(p.Company), p.URL))
		return err == nil && ok
	}
}
