package httpapi

import (
	"net/http"

	"github.com/linkmeAman/JHuntAutomator/internal/config"
	"github.com/linkmeAman/JHuntAutomator/internal/secrets"
)

type SecretsHandler struct {
	Settings *config.Store
	Set      func(account, password string) error
}

// SetIMAPPassword stores the password under the account derived from the
// current linkedin_email settings.
func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req imapPasswordReq
	if err := decodeStrict(w, r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	cfg, ok := h.Settings.Get().LinkedIn().(config.LinkedInEmail)
	if !ok || cfg.Username == "" || cfg.IMAPHost == "" {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "set linkedin_email.username and imap_host first")
		return
	}
	set := h.Set
	if set == nil {
		set = secrets.SetIMAPPassword
	}
	if err := set(secrets.IMAPKeyringAccount(cfg.Username, cfg.IMAPHost), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
