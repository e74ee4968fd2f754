package httpapi

import (
	"net/http"
)

type DBHandler struct {
	Store Store
}

// Checkpoint folds the WAL into the main database file.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Checkpoint(r.Context()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
