// Package scrape builds the source adapters a crawl run fans out to.
package scrape

import (
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/greenhouse"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/htmlboard"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/jobboard"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/lever"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/linkedin"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/smartrecruiters"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/types"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/util"
	"github.com/linkmeAman/JHuntAutomator/internal/scrape/workday"
)

type Options struct {
	MaxQueries    int
	QueryVariants int
}

// OptionsFromRuntime copies the query knobs out of the process config.
func OptionsFromRuntime(rt config.Runtime) Options {
	return Options{MaxQueries: rt.MaxQueries, QueryVariants: rt.QueryVariants}
}

type Registry struct {
	adapters map[string]types.Adapter
}

// NewRegistry builds one adapter per known source, all sharing client so the
// per-host limiter applies across sources.
func NewRegistry(client *util.Client, logger arbor.ILogger, opt Options) *Registry {
	r := &Registry{adapters: map[string]types.Adapter{}}

	r.Register(greenhouse.New(client, logger))
	r.Register(lever.New(client, logger))
	r.Register(smartrecruiters.New(client, logger))
	r.Register(workday.New(client, logger))

	for _, jb := range []*jobboard.Adapter{
		jobboard.NewRemotive(client, logger),
		jobboard.NewWorkingNomads(client, logger),
		jobboard.NewRemoteOK(client, logger),
		jobboard.NewWeWorkRemotely(client, logger),
	} {
		if opt.MaxQueries > 0 {
			jb.MaxQueries = opt.MaxQueries
		}
		if opt.QueryVariants > 0 {
			jb.QueryVariants = opt.QueryVariants
		}
		r.Register(jb)
	}

	for _, b := range htmlboard.All {
		hb := htmlboard.New(b, client, logger)
		if opt.MaxQueries > 0 {
			hb.MaxQueries = opt.MaxQueries
		}
		if opt.QueryVariants > 0 {
			hb.QueryVariants = opt.QueryVariants
		}
		r.Register(hb)
	}

	r.Register(linkedin.NewDefault(client, logger))

	for _, id := range []string{domain.SourceGlassdoor, domain.SourceWellfound, domain.SourceYC} {
		r.Register(NewRestricted(id))
	}
	return r
}

// Register adds a or replaces the adapter with the same ID.
func (r *Registry) Register(a types.Adapter) {
	r.adapters[a.ID()] = a
}

func (r *Registry) Get(id string) (types.Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// IDs lists known sources first in their canonical order, then any extra
// registrations sorted by name.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.adapters))
	known := map[string]bool{}
	for _, id := range domain.KnownSources {
		known[id] = true
		if _, ok := r.adapters[id]; ok {
			out = append(out, id)
		}
	}
	var extra []string
	for id := range r.adapters {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Enabled returns the adapters switched on in s, in registry order.
func (r *Registry) Enabled(s config.Settings) []types.Adapter {
	var out []types.Adapter
	for _, id := range r.IDs() {
		if s.SourceEnabled(id) {
			out = append(out, r.adapters[id])
		}
	}
	return out
}
