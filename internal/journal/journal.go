// Package journal keeps a history of settled jobs across sessions.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/LucasAlfare/FL-BT/internal/service"
)

// Journal persists job outcomes. Saving the same (session, external id)
// twice replaces the earlier entry.
type Journal interface {
	Save(ctx context.Context, sessionID string, rec models.Record) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
	// Get returns one entry or ErrNotFound.
	Get(ctx context.Context, sessionID, externalID string) (Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by Get for an unknown (session, external id).
var ErrNotFound = errors.New("journal entry not found")

// Entry is one journaled record.
type Entry struct {
	SessionID  string        `json:"sessionId" yaml:"session_id"`
	Record     models.Record `json:"record" yaml:"record"`
	RecordedAt time.Time     `json:"recordedAt" yaml:"recorded_at"`
}

// ListOptions filters List. Results are newest first.
type ListOptions struct {
	ExternalID string
	Limit      int
}

const defaultListLimit = 50

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return defaultListLimit
	}
	return o.Limit
}

// Sink journals every event that leaves its record terminal.
func Sink(j Journal) service.Sink {
	return service.SinkFunc(func(ctx context.Context, ev models.Event) error {
		if !ev.Record.Status.Terminal() {
			return nil
		}
		return j.Save(ctx, ev.SessionID, ev.Record)
	})
}

// Wipe deletes every entry of backends that support it.
func Wipe(ctx context.Context, j Journal) error {
	w, ok := j.(interface{ Wipe(context.Context) error })
	if !ok {
		return errors.New("journal backend does not support wiping")
	}
	return w.Wipe(ctx)
}
