package db

import (
	"testing"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestJobRecordToRecord(t *testing.T) {
	submitted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	completed := submitted.Add(time.Minute)
	row := JobRecord{
		ExternalID:   "vid1",
		JobID:        "t1",
		Status:       "FAILURE",
		ErrorMessage: "demucs crashed",
		SubmittedAt:  submitted,
		CompletedAt:  &completed,
		RecordedAt:   completed,
	}

	rec := row.Record()
	assert.Equal(t, models.StatusFailure, rec.Status)
	assert.Equal(t, "demucs crashed", rec.ErrorMessage)
	assert.Equal(t, completed, rec.UpdatedAt)
	assert.Equal(t, &completed, rec.CompletedAt)
}

func TestWSBaseURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000", wsBaseURL("ws://localhost:8000/rpc"))
	assert.Equal(t, "wss://db.example.com", wsBaseURL("wss://db.example.com"))
}
