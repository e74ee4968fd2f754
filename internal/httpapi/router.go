package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/ternarybob/arbor"
)

// NewRouter mounts every route of the engine API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = arbor.NewLogger()
	}
	r := chi.NewRouter()

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"tauri://localhost", "http://localhost:3000"}
	}
	r.Use(
		RequestID,
		Recover(d.Logger),
		AccessLog(d.Logger),
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Shutdown-Token"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}),
	)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", HealthHandler{}.Health)

	jh := JobsHandler{Store: d.Store, Hub: d.Hub}
	sh := SettingsHandler{Settings: d.Settings, Scheduler: d.Scheduler, Store: d.Store, Hub: d.Hub, Logger: d.Logger}
	rh := RescanHandler{Scheduler: d.Scheduler, Runs: d.Runs, Logger: d.Logger}
	runs := RunsHandler{Store: d.Store}
	sec := SecretsHandler{Settings: d.Settings, Set: d.SetIMAPPassword}
	eh := EventsHandler{Hub: d.Hub}
	db := DBHandler{Store: d.Store}

	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", jh.List)
		r.Get("/jobs/{id}", jh.Get)
		r.Patch("/jobs/{id}", jh.Patch)

		r.Post("/rescan", rh.Rescan)
		r.Get("/rescan/status", rh.Status)

		r.Get("/settings", sh.Get)
		r.Put("/settings", sh.Put)
		r.Post("/settings/validate", sh.Validate)
		r.Get("/settings/source-states", sh.SourceStates)

		r.Get("/stats", jh.Stats)

		r.Get("/runs", runs.List)
		r.Get("/runs/{id}", runs.Get)

		r.Post("/secrets/imap", sec.SetIMAPPassword)

		if d.Hub != nil {
			r.Get("/events", eh.ServeSSE)
		}

		r.With(LocalOnly).Post("/db/checkpoint", db.Checkpoint)
	})

	if d.ShutdownToken != "" && d.Shutdown != nil {
		r.With(LocalOnly).Post("/shutdown", ShutdownHandler(d.ShutdownToken, d.Shutdown))
	}
	return r
}
