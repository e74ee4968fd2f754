package httpapi

import "time"

type RescanStatus struct {
	Running bool       `json:"running"`
	RunID   string     `json:"run_id,omitempty"`
	Phase   string     `json:"phase"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

type imapPasswordReq struct {
	Password string `json:"password"`
}
