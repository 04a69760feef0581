package types

import "time"

// ProcessInfo describes a process tracked by the host launcher
type ProcessInfo struct {
	PID       int       `json:"pid"`
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// ProcessStats contains runtime statistics for one process
type ProcessStats struct {
	PID           int     `json:"pid"`
	State         string  `json:"state"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	ExitCode      *int    `json:"exit_code,omitempty"`
	OutputBytes   int64   `json:"output_bytes"`
}
