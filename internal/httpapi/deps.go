package httpapi

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/crawl"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/events"
	"github.com/linkmeAman/JHuntAutomator/internal/metrics"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

// Store is the read/write surface the handlers use; *store.DB implements it.
type Store interface {
	ListJobs(ctx context.Context, f store.JobFilter) ([]domain.Job, error)
	GetJob(ctx context.Context, id int64) (domain.Job, error)
	UpdateJobUserFields(ctx context.Context, id int64, p store.JobPatch) (domain.Job, error)
	Stats(ctx context.Context) (store.Stats, error)
	ListRuns(ctx context.Context, limit, offset int) ([]domain.CrawlRun, error)
	GetRun(ctx context.Context, runID string) (domain.CrawlRun, error)
	ListSourceStates(ctx context.Context) ([]domain.SourceState, error)
	Checkpoint(ctx context.Context) error
}

// Scheduler is implemented by *scheduler.Scheduler.
type Scheduler interface {
	Trigger(ctx context.Context) (domain.CrawlResult, error)
	Reschedule(hour, minute int) error
	NextRun() (time.Time, bool)
}

// RunState is implemented by *crawl.Orchestrator.
type RunState interface {
	Phase() crawl.Phase
	Active() (string, bool)
}

type Deps struct {
	Store     Store
	Settings  *config.Store
	Scheduler Scheduler
	Runs      RunState
	Hub       *events.Hub
	Metrics   *metrics.Recorder
	Logger    arbor.ILogger

	CORSOrigins []string

	// SetIMAPPassword stores the mailbox password; secrets.SetIMAPPassword
	// in production.
	SetIMAPPassword func(account, password string) error

	// ShutdownToken guards POST /shutdown; Shutdown is called after the
	// response is written. Both empty disables the route.
	ShutdownToken string
	Shutdown      func()
}
