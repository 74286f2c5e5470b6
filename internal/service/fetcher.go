package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
)

// ArtifactSource opens the result stream of a finished job.
type ArtifactSource interface {
	Download(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// Fetcher downloads artifacts of successful jobs into a directory.
type Fetcher struct {
	src     ArtifactSource
	destDir string
	timeout time.Duration
}

// NewFetcher creates a fetcher writing into destDir. The directory must
// already exist (see EnsureDestDir).
func NewFetcher(src ArtifactSource, destDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{src: src, destDir: destDir, timeout: timeout}
}

// DestDir returns the directory artifacts are written to.
func (f *Fetcher) DestDir() string {
	return f.destDir
}

// EnsureDestDir creates the artifact directory if it does not exist.
// Call once per session, not per job.
func EnsureDestDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure destination directory: %w", err)
	}
	return nil
}

// ArtifactPath returns where the artifact of externalID is stored.
func ArtifactPath(destDir, externalID string) string {
	return filepath.Join(destDir, artifactName(externalID))
}

// artifactName keeps the file inside destDir whatever the id contains.
func artifactName(externalID string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(externalID)
	if name == "" || name == "." {
		name = "_"
	}
	return name + ".zip"
}

// Fetch downloads the artifact of rec and writes it to its artifact path,
// replacing any existing file. Returns the written path.
func (f *Fetcher) Fetch(ctx context.Context, rec models.Record) (string, error) {
	path := ArtifactPath(f.destDir, rec.ExternalID)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	body, err := f.src.Download(ctx, rec.JobID)
	if err != nil {
		return "", &FetchError{JobID: rec.JobID, Path: path, Err: err}
	}
	defer body.Close()

	if err := writeFile(path, body); err != nil {
		return "", &FetchError{JobID: rec.JobID, Path: path, Err: err}
	}
	return path, nil
}

// writeFile streams r into a temp file next to path and renames it into
// place so a failed download never leaves a truncated artifact.
func writeFile(path string, r io.Reader) error {
	temp, err := os.CreateTemp(filepath.Dir(path), ".flbt-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(temp, r); err != nil {
		temp.Close()
		os.Remove(temp.Name())
		return fmt.Errorf("copy artifact to disk: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(temp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(temp.Name(), path); err != nil {
		os.Remove(temp.Name())
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}
