package service

import (
	"context"
	"sync"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
)

// Sink receives committed record changes, e.g. a history journal or a
// message bus. Errors are logged by the session and never touch records.
type Sink interface {
	Publish(ctx context.Context, event models.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event models.Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, event models.Event) error {
	return f(ctx, event)
}

// EventLog stores recent events and provides incremental reads.
type EventLog struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []models.Event
}

// NewEventLog creates a bounded in-memory event buffer.
func NewEventLog(maxEvents int) *EventLog {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventLog{
		maxEvents: maxEvents,
		events:    make([]models.Event, 0, maxEvents),
	}
}

// Append stores one event and assigns sequence and timestamp.
func (l *EventLog) Append(event models.Event) models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	event.Seq = l.nextSeq
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		trim := len(l.events) - l.maxEvents
		l.events = append([]models.Event(nil), l.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (l *EventLog) Since(seq int64) []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Event, 0, len(l.events))
	for _, event := range l.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
