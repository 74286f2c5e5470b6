package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/LucasAlfare/FL-BT/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectIdentifiers(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("ids: [c3]\ndest: out\n"), 0o644))

	ids, dest, err := collectIdentifiers([]string{"a1,b2", "https://youtu.be/dQw4w9WgXcQ"}, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b2", "dQw4w9WgXcQ", "c3"}, ids)
	assert.Equal(t, "out", dest)

	ids, _, err = collectIdentifiers(nil, "", strings.NewReader("x1\ny2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "y2"}, ids, "stdin read when no args or file")

	_, _, err = collectIdentifiers(nil, filepath.Join(dir, "missing.txt"), nil)
	assert.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

// fakeJobServer emulates the task profile: every job succeeds on its first
// status query except ids starting with "bad", which fail on submit.
func fakeJobServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/video/id/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if strings.HasPrefix(id, "bad") {
			http.Error(w, "rejected", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"task_id":"t-%s","status":"PENDING"}`, id)
	})
	mux.HandleFunc("/api/task/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"SUCCESS"}`)
	})
	mux.HandleFunc("/api/task/result/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "PK-zip-bytes")
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestRunPlainAgainstFakeService(t *testing.T) {
	ts := fakeJobServer(t)
	dest := t.TempDir()

	sess := service.NewSession(service.Options{
		Service:      client.New(ts.URL, client.ProfileTask),
		DestDir:      dest,
		PollInterval: 10 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer sess.Close()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	_, err := sess.Submit([]string{"vid1", "bad1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	interrupted := runPlain(ctx, &buf, sess, updates)
	assert.False(t, interrupted)

	final := sess.Snapshot()
	ok, _ := final.Find("vid1")
	assert.Equal(t, models.StatusSuccess, ok.Status)
	assert.Equal(t, filepath.Join(dest, "vid1.zip"), ok.ArtifactPath)
	bad, _ := final.Find("bad1")
	assert.Equal(t, models.StatusError, bad.Status)

	out := buf.String()
	assert.Contains(t, out, "[SUCCESS] vid1 (t-vid1)")
	assert.Contains(t, out, "[ERROR] bad1")

	missing := incomplete(final)
	require.Len(t, missing, 1)
	assert.Equal(t, "bad1", missing[0].ExternalID)
}
