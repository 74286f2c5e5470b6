// Package models defines the data structures tracked by the flbt job client.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a remote job as seen by the client.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusExpired Status = "EXPIRED"
	// StatusError is synthesized by the client for transport/protocol failures.
	// It is never reported by the service itself.
	StatusError Status = "ERROR"
)

// statusAliases maps service-side spellings onto the client state machine.
var statusAliases = map[string]Status{
	"PENDING":    StatusPending,
	"RUNNING":    StatusRunning,
	"PROCESSING": StatusRunning,
	"STARTED":    StatusRunning,
	"RETRY":      StatusRunning,
	"SUCCESS":    StatusSuccess,
	"FAILURE":    StatusFailure,
	"REVOKED":    StatusFailure,
	"EXPIRED":    StatusExpired,
	"ERROR":      StatusError,
}

// ParseStatus converts a status string reported by the service.
// Matching is case-insensitive. Unknown values return an error.
func ParseStatus(s string) (Status, error) {
	st, ok := statusAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

// Terminal reports whether no further transitions can happen from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusExpired, StatusError:
		return true
	default:
		return false
	}
}

// Record is the client-side state of one submitted identifier.
type Record struct {
	ExternalID   string     `json:"externalId" yaml:"external_id"`
	JobID        string     `json:"jobId,omitempty" yaml:"job_id,omitempty"`
	Status       Status     `json:"status" yaml:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty" yaml:"error_message,omitempty"`
	ArtifactPath string     `json:"artifactSavedPath,omitempty" yaml:"artifact_saved_path,omitempty"`
	FetchError   string     `json:"fetchError,omitempty" yaml:"fetch_error,omitempty"`
	SubmittedAt  time.Time  `json:"submittedAt" yaml:"submitted_at"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updated_at"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
}

// Pollable reports whether the record still needs status queries.
func (r Record) Pollable() bool {
	return !r.Status.Terminal() && r.JobID != ""
}

// Fetched reports whether the artifact was persisted locally.
func (r Record) Fetched() bool {
	return r.Status == StatusSuccess && r.ArtifactPath != ""
}

// Snapshot is an immutable view of a session's live set.
type Snapshot struct {
	SessionID string    `json:"sessionId" yaml:"session_id"`
	BatchID   string    `json:"batchId,omitempty" yaml:"batch_id,omitempty"`
	Records   []Record  `json:"records" yaml:"records"`
	Polling   bool      `json:"polling" yaml:"polling"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Counts tallies records by status.
func (s Snapshot) Counts() map[Status]int {
	counts := make(map[Status]int, len(s.Records))
	for _, r := range s.Records {
		counts[r.Status]++
	}
	return counts
}

// Settled returns the number of terminal records.
func (s Snapshot) Settled() int {
	n := 0
	for _, r := range s.Records {
		if r.Status.Terminal() {
			n++
		}
	}
	return n
}

// Done reports whether every record is terminal.
func (s Snapshot) Done() bool {
	return s.Settled() == len(s.Records)
}

// Find returns the record for an external id.
func (s Snapshot) Find(externalID string) (Record, bool) {
	for _, r := range s.Records {
		if r.ExternalID == externalID {
			return r, true
		}
	}
	return Record{}, false
}

// Event describes one committed change to a record.
type Event struct {
	Seq        int64     `json:"seq"`
	SessionID  string    `json:"sessionId"`
	ExternalID string    `json:"externalId"`
	JobID      string    `json:"jobId,omitempty"`
	From       Status    `json:"from,omitempty"`
	To         Status    `json:"to"`
	Message    string    `json:"message,omitempty"`
	Record     Record    `json:"record"`
	At         time.Time `json:"at"`
}
