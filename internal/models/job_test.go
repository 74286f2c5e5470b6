package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Status
	}{
		{"pending", "PENDING", StatusPending},
		{"lowercase", "running", StatusRunning},
		{"processing alias", "PROCESSING", StatusRunning},
		{"celery started", "STARTED", StatusRunning},
		{"celery retry", "RETRY", StatusRunning},
		{"success", "SUCCESS", StatusSuccess},
		{"failure", "FAILURE", StatusFailure},
		{"revoked", "REVOKED", StatusFailure},
		{"expired", "EXPIRED", StatusExpired},
		{"padded", "  success ", StatusSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatusUnknown(t *testing.T) {
	_, err := ParseStatus("DANCING")
	assert.Error(t, err)

	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	for _, s := range []Status{StatusSuccess, StatusFailure, StatusExpired, StatusError} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
}

func TestRecordPollable(t *testing.T) {
	assert.True(t, Record{JobID: "t1", Status: StatusRunning}.Pollable())
	assert.False(t, Record{Status: StatusPending}.Pollable(), "no job id")
	assert.False(t, Record{JobID: "t1", Status: StatusExpired}.Pollable())
}

func TestSnapshotCounts(t *testing.T) {
	snap := Snapshot{Records: []Record{
		{ExternalID: "a", Status: StatusSuccess, ArtifactPath: "/d/a.zip"},
		{ExternalID: "b", Status: StatusRunning},
		{ExternalID: "c", Status: StatusError},
	}}

	counts := snap.Counts()
	assert.Equal(t, 1, counts[StatusSuccess])
	assert.Equal(t, 1, counts[StatusRunning])
	assert.Equal(t, 1, counts[StatusError])
	assert.Equal(t, 2, snap.Settled())
	assert.False(t, snap.Done())

	rec, ok := snap.Find("a")
	require.True(t, ok)
	assert.True(t, rec.Fetched())

	_, ok = snap.Find("zzz")
	assert.False(t, ok)
}
