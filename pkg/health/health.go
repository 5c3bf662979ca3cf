// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

// Package health holds the serializable health types reported by the
// reference server.
package health

import "time"

// Metrics is a point-in-time view of a dependency's health.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Status values reported by the health endpoint.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// Report is the body of the health endpoint.
type Report struct {
	Status   string   `json:"status"`
	Version  string   `json:"version,omitempty"`
	Database string   `json:"database"`
	Provider string   `json:"provider"`
	LLM      *Metrics `json:"llm,omitempty"`
}

// Overall derives the report status: a failed database is down, an
// unavailable provider is degraded.
func Overall(dbOK bool, llm *Metrics) string {
	switch {
	case !dbOK:
		return StatusDown
	case llm != nil && !llm.Available:
		return StatusDegraded
	default:
		return StatusOK
	}
}
