package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/LucasAlfare/FL-BT/internal/server"
	"github.com/LucasAlfare/FL-BT/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantService finishes every job on the first status query.
type instantService struct{}

func (instantService) Submit(_ context.Context, externalID string) (*client.SubmitResult, error) {
	return &client.SubmitResult{JobID: "job-" + externalID, Status: models.StatusPending}, nil
}

func (instantService) Status(context.Context, string) (*client.StatusResult, error) {
	return &client.StatusResult{Status: models.StatusSuccess}, nil
}

func (instantService) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("zip")), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *service.Session) {
	t.Helper()
	m := metrics.NewCollector()
	sess := service.NewSession(service.Options{
		Service:      instantService{},
		DestDir:      t.TempDir(),
		PollInterval: 10 * time.Millisecond,
		Logger:       testLogger(),
		Metrics:      m,
	})
	t.Cleanup(sess.Close)

	srv := server.New(sess, m, "test", testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sess
}

func waitSettled(t *testing.T, sess *service.Session) models.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := sess.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestBatchPlainText(t *testing.T) {
	ts, sess := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/batch", "text/plain", strings.NewReader("abc123\n abc123, https://youtu.be/dQw4w9WgXcQ\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var snap models.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "abc123", snap.Records[0].ExternalID)
	assert.Equal(t, "dQw4w9WgXcQ", snap.Records[1].ExternalID)

	settled := waitSettled(t, sess)
	assert.True(t, settled.Done())
}

func TestBatchJSON(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/batch", "application/json; charset=utf-8", strings.NewReader(`{"ids":["a1","b2"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var snap models.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Len(t, snap.Records, 2)
}

func TestBatchInvalidJSON(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/batch", "application/json", strings.NewReader(`{"ids":`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchLongLine(t *testing.T) {
	ts, _ := newTestServer(t)

	ids := make([]string, 4000)
	for i := range ids {
		ids[i] = fmt.Sprintf("video-%010d", i)
	}
	body := strings.Join(ids, ",")
	require.Greater(t, len(body), 64*1024)

	resp, err := http.Post(ts.URL+"/api/batch", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var snap models.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.Records, 4000)
	assert.Equal(t, "video-0000003999", snap.Records[3999].ExternalID)
}

func TestBatchBodyTooLarge(t *testing.T) {
	ts, sess := newTestServer(t)

	body := strings.Repeat("abcdefgh\n", (1<<20)/9+10)
	resp, err := http.Post(ts.URL+"/api/batch", "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	var errResp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "exceeds")
	assert.Empty(t, sess.Snapshot().Records, "nothing submitted from a truncated body")
}

func TestBatchMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/batch")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSnapshotEventsAndStats(t *testing.T) {
	ts, sess := newTestServer(t)

	_, err := sess.Submit([]string{"vid1"})
	require.NoError(t, err)
	waitSettled(t, sess)

	resp, err := http.Get(ts.URL + "/api/snapshot")
	require.NoError(t, err)
	var snap models.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	rec, ok := snap.Find("vid1")
	require.True(t, ok)
	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.NotEmpty(t, rec.ArtifactPath)

	resp, err = http.Get(ts.URL + "/api/events?since=0")
	require.NoError(t, err)
	var events []models.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	resp.Body.Close()
	require.NotEmpty(t, events)
	assert.Equal(t, models.StatusSuccess, events[len(events)-1].To)

	resp, err = http.Get(ts.URL + "/api/events?since=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	var stats metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.NotNil(t, stats.Submit)
	assert.Equal(t, int64(1), stats.Submit.Count)
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	ts, sess := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first models.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Empty(t, first.Records)

	_, err = sess.Submit([]string{"ws1"})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var snap models.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		if len(snap.Records) == 1 && snap.Done() && !snap.Polling {
			assert.Equal(t, models.StatusSuccess, snap.Records[0].Status)
			return
		}
	}
}
