package journal

import (
	"context"
	"errors"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/db"
	"github.com/LucasAlfare/FL-BT/internal/models"
)

// Surreal is a journal backed by a SurrealDB history store.
type Surreal struct {
	client *db.Client
}

// NewSurreal wraps a connected client. The schema must already be
// initialized (see db.Client.InitSchema).
func NewSurreal(client *db.Client) *Surreal {
	return &Surreal{client: client}
}

// Save upserts rec for sessionID.
func (s *Surreal) Save(ctx context.Context, sessionID string, rec models.Record) error {
	_, err := s.client.QueryUpsertJobRecord(ctx, sessionID, rec)
	return err
}

// List returns journal entries, newest first.
func (s *Surreal) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	rows, err := s.client.QueryListJobRecords(ctx, opts.ExternalID, opts.limit())
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRow(row))
	}
	return entries, nil
}

// Get returns the entry of externalID in sessionID.
func (s *Surreal) Get(ctx context.Context, sessionID, externalID string) (Entry, error) {
	row, err := s.client.QueryGetJobRecord(ctx, sessionID, externalID)
	if errors.Is(err, db.ErrNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return entryFromRow(*row), nil
}

// Ping checks the history store connection.
func (s *Surreal) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func entryFromRow(row db.JobRecord) Entry {
	return Entry{
		SessionID:  row.SessionID,
		Record:     row.Record(),
		RecordedAt: row.RecordedAt,
	}
}

// Close closes the underlying connection.
func (s *Surreal) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Close(ctx)
}

// Wipe deletes all entries.
func (s *Surreal) Wipe(ctx context.Context) error {
	return s.client.WipeData(ctx)
}
