package httpapi

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/crawl"
)

type RescanHandler struct {
	Scheduler Scheduler
	Runs      RunState
	Logger    arbor.ILogger
}

// Rescan runs a crawl and answers when it has finished. A second rescan
// while one is active gets 409.
func (h RescanHandler) Rescan(w http.ResponseWriter, r *http.Request) {
	res, err := h.Scheduler.Trigger(r.Context())
	if errors.Is(err, crawl.ErrRunInProgress) {
		WriteJSON(w, http.StatusConflict, map[string]any{
			"status":  "busy",
			"message": "a crawl is already running",
		})
		return
	}
	if err != nil && r.Context().Err() != nil {
		// client gone; the run carries on without it
		return
	}
	if err != nil {
		h.Logger.Error().Str("request_id", RequestIDFrom(r.Context())).Err(err).Msg("rescan failed")
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h RescanHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := RescanStatus{Phase: string(crawl.PhaseIdle)}
	if h.Runs != nil {
		st.RunID, st.Running = h.Runs.Active()
		st.Phase = string(h.Runs.Phase())
	}
	if next, ok := h.Scheduler.NextRun(); ok {
		st.NextRun = &next
	}
	WriteJSON(w, http.StatusOK, st)
}
