package httpapi

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/domain"
	"github.com/linkmeAman/JHuntAutomator/internal/events"
)

type SettingsHandler struct {
	Settings  *config.Store
	Scheduler Scheduler
	Store     Store
	Hub       *events.Hub
	Logger    arbor.ILogger
}

func (h SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Settings.Get())
}

// Put validates the full settings document, writes it atomically and
// swaps it in. A changed crawl time reschedules the daily run.
func (h SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var incoming config.Settings
	if err := decodeStrict(w, r, &incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	saved, vr, err := h.Settings.Replace(incoming)
	if errors.Is(err, config.ErrInvalidSettings) {
		vr.Warnings = nonNilStrings(vr.Warnings)
		WriteJSON(w, http.StatusBadRequest, vr)
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	if h.Scheduler != nil {
		if err := h.Scheduler.Reschedule(saved.CrawlHour, saved.CrawlMinute); err != nil {
			h.Logger.Error().Err(err).Msg("reschedule after settings update failed")
		}
	}
	if h.Hub != nil {
		h.Hub.Emit(RequestIDFrom(r.Context()), events.SettingsUpdated, map[string]any{
			"warnings": vr.Warnings,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"settings": saved,
		"warnings": nonNilStrings(vr.Warnings),
	})
}

// Validate checks a settings document without saving it. With an empty
// body the current settings are checked.
func (h SettingsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	s := h.Settings.Get()
	if r.ContentLength != 0 {
		var incoming config.Settings
		if err := decodeStrict(w, r, &incoming); err != nil {
			WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		s = incoming
	}
	_, vr := config.NormalizeAndValidate(s)
	vr.Errors = nonNilStrings(vr.Errors)
	vr.Warnings = nonNilStrings(vr.Warnings)
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       vr.OK(),
		"errors":   vr.Errors,
		"warnings": vr.Warnings,
	})
}

func (h SettingsHandler) SourceStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.Store.ListSourceStates(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	if states == nil {
		states = []domain.SourceState{}
	}
	WriteJSON(w, http.StatusOK, states)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
