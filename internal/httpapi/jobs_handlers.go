package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/events"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

type JobsHandler struct {
	Store Store
	Hub   *events.Hub
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.JobFilter{
		Query:    q.Get("q"),
		Location: q.Get("location"),
		Source:   q.Get("source"),
	}
	var err error
	if f.Applied, err = boolParam(r, "applied"); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if f.Remote, err = boolParam(r, "remote"); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if f.Limit, err = intParam(r, "limit", store.DefaultJobsLimit); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if f.Offset, err = intParam(r, "offset", 0); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	jobs, err := h.Store.ListJobs(r.Context(), f)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

func jobID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid id")
		return
	}
	job, err := h.Store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "job not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Patch changes applied and notes only; any other field is rejected.
func (h JobsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid id")
		return
	}
	var p store.JobPatch
	if err := decodeStrict(w, r, &p); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if p.Applied == nil && p.Notes == nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "nothing to update: send applied and/or notes")
		return
	}

	job, err := h.Store.UpdateJobUserFields(r.Context(), id, p)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "job not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if h.Hub != nil {
		h.Hub.Emit(RequestIDFrom(r.Context()), events.JobUpdated, map[string]any{
			"id":      job.ID,
			"applied": job.Applied,
		})
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Store.Stats(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, st)
}
