package events

import (
	"encoding/json"
	"time"
)

// Event types pushed to /api/events subscribers.
const (
	RunStarted      = "run_started"
	SourceFinished  = "source_finished"
	RunFinished     = "run_finished"
	JobUpdated      = "job_updated"
	SettingsUpdated = "settings_updated"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Publisher is what producers depend on; *Hub implements it.
type Publisher interface {
	Emit(reqID, typ string, data any)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(string, string, any) {}
