package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/store"
)

type RunsHandler struct {
	Store Store
}

func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", store.DefaultRunsLimit)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	runs, err := h.Store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.CrawlRun{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

func (h RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, CodeNotFound, "run not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, run)
}
