package db

import (
	"context"
	"fmt"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobRecord is one persisted job outcome.
type JobRecord struct {
	ID           surrealmodels.RecordID `json:"id"`
	SessionID    string                 `json:"session_id"`
	ExternalID   string                 `json:"external_id"`
	JobID        string                 `json:"job_id"`
	Status       string                 `json:"status"`
	ErrorMessage string                 `json:"error_message"`
	ArtifactPath string                 `json:"artifact_path"`
	FetchError   string                 `json:"fetch_error"`
	SubmittedAt  time.Time              `json:"submitted_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	RecordedAt   time.Time              `json:"recorded_at"`
}

// Record converts the row back to the client model.
func (r JobRecord) Record() models.Record {
	return models.Record{
		ExternalID:   r.ExternalID,
		JobID:        r.JobID,
		Status:       models.Status(r.Status),
		ErrorMessage: r.ErrorMessage,
		ArtifactPath: r.ArtifactPath,
		FetchError:   r.FetchError,
		SubmittedAt:  r.SubmittedAt,
		UpdatedAt:    r.RecordedAt,
		CompletedAt:  r.CompletedAt,
	}
}

// RecordKey builds the row key for a session's record.
func RecordKey(sessionID, externalID string) string {
	return sessionID + "/" + externalID
}

// QueryUpsertJobRecord writes the latest state of rec for sessionID,
// replacing any earlier row for the same (session, external id).
func (c *Client) QueryUpsertJobRecord(ctx context.Context, sessionID string, rec models.Record) (*JobRecord, error) {
	var completedAt *string
	if rec.CompletedAt != nil {
		s := rec.CompletedAt.UTC().Format(time.RFC3339Nano)
		completedAt = &s
	}

	sql := `
		UPSERT type::record("job_record", $id) SET
			session_id = $session_id,
			external_id = $external_id,
			job_id = $job_id,
			status = $status,
			error_message = $error_message,
			artifact_path = $artifact_path,
			fetch_error = $fetch_error,
			submitted_at = type::datetime($submitted_at),
			completed_at = IF $completed_at THEN type::datetime($completed_at) ELSE NONE END,
			recorded_at = time::now()
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, sql, map[string]any{
		"id":            RecordKey(sessionID, rec.ExternalID),
		"session_id":    sessionID,
		"external_id":   rec.ExternalID,
		"job_id":        rec.JobID,
		"status":        string(rec.Status),
		"error_message": rec.ErrorMessage,
		"artifact_path": rec.ArtifactPath,
		"fetch_error":   rec.FetchError,
		"submitted_at":  rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
		"completed_at":  completedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert job record: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("upsert job record: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QueryListJobRecords returns the most recent rows first. A non-empty
// externalID restricts the result to that identifier.
func (c *Client) QueryListJobRecords(ctx context.Context, externalID string, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	where := ""
	vars := map[string]any{"limit": limit}
	if externalID != "" {
		where = "WHERE external_id = $external_id"
		vars["external_id"] = externalID
	}

	sql := fmt.Sprintf(`
		SELECT * FROM job_record %s
		ORDER BY recorded_at DESC
		LIMIT $limit
	`, where)

	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []JobRecord{}, nil
}

// QueryGetJobRecord returns one row or ErrNotFound.
func (c *Client) QueryGetJobRecord(ctx context.Context, sessionID, externalID string) (*JobRecord, error) {
	results, err := surrealdb.Query[[]JobRecord](ctx, c.db, `
		SELECT * FROM type::record("job_record", $id)
	`, map[string]any{"id": RecordKey(sessionID, externalID)})
	if err != nil {
		return nil, fmt.Errorf("get job record: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}
