package models

import "time"

// RunEvent is published after every successful prediction run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	TS         time.Time `json:"ts"`
	Start      string    `json:"start_datetime"`
	End        string    `json:"end_datetime"`
	Clinics    []string  `json:"clinic_selector"`
	Rows       int       `json:"rows"`
	NoShows    int       `json:"no_shows"`
	Shows      int       `json:"shows"`
	DurationMS int64     `json:"duration_ms"`
	Cached     bool      `json:"cached"`
}
