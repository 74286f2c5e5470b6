//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func testRecord(externalID string, status models.Status) models.Record {
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := models.Record{
		ExternalID:  externalID,
		JobID:       "job-" + externalID,
		Status:      status,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if status.Terminal() {
		rec.CompletedAt = &now
	}
	return rec
}

func TestPing(t *testing.T) {
	require.NoError(t, testDB.Ping(context.Background()))
}

func TestUpsertJobRecord(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	rec := testRecord("vid1", models.StatusSuccess)
	rec.ArtifactPath = "/tmp/vid1.zip"

	row, err := testDB.QueryUpsertJobRecord(ctx, "sess1", rec)
	require.NoError(t, err)
	assert.Equal(t, "job_record", row.ID.Table)
	assert.Equal(t, RecordKey("sess1", "vid1"), row.ID.ID)
	assert.Equal(t, "SUCCESS", row.Status)
	assert.Equal(t, "/tmp/vid1.zip", row.ArtifactPath)
	require.NotNil(t, row.CompletedAt)

	got := row.Record()
	assert.Equal(t, rec.ExternalID, got.ExternalID)
	assert.Equal(t, rec.JobID, got.JobID)
	assert.True(t, got.Fetched())
}

func TestUpsertOverwritesSameKey(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	rec := testRecord("vid2", models.StatusSuccess)
	_, err := testDB.QueryUpsertJobRecord(ctx, "sess1", rec)
	require.NoError(t, err)

	rec.FetchError = "fetch artifact of job-vid2: 404"
	_, err = testDB.QueryUpsertJobRecord(ctx, "sess1", rec)
	require.NoError(t, err)

	rows, err := testDB.QueryListJobRecords(ctx, "vid2", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "same session and id upserts one row")
	assert.Equal(t, rec.FetchError, rows[0].FetchError)

	// Another session keeps its own row.
	_, err = testDB.QueryUpsertJobRecord(ctx, "sess2", rec)
	require.NoError(t, err)
	rows, err = testDB.QueryListJobRecords(ctx, "vid2", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestListJobRecords(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	for _, id := range []string{"a", "b", "c"} {
		_, err := testDB.QueryUpsertJobRecord(ctx, "sess", testRecord(id, models.StatusFailure))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	rows, err := testDB.QueryListJobRecords(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].ExternalID, "newest first")

	rows, err = testDB.QueryListJobRecords(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetJobRecord(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	_, err := testDB.QueryUpsertJobRecord(ctx, "sess1", testRecord("vid3", models.StatusExpired))
	require.NoError(t, err)

	row, err := testDB.QueryGetJobRecord(ctx, "sess1", "vid3")
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", row.Status)
	assert.Equal(t, "sess1", row.SessionID)
}

func TestGetJobRecordNotFound(t *testing.T) {
	_, err := testDB.QueryGetJobRecord(context.Background(), "nope", "nothing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
