package model

import "time"

// Report is a persisted run report.
type Report struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// Kind implements Record.
func (r *Report) Kind() Kind { return KindReport }

// Key implements Record.
func (r *Report) Key() string { return r.ID }
