// Package service orchestrates job submission, status polling and artifact
// retrieval for one client session.
package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/google/uuid"
)

// Defaults for Options fields left zero.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultFetchTimeout   = 60 * time.Second
)

// RemoteService is the job service consumed by a session.
type RemoteService interface {
	Submit(ctx context.Context, externalID string) (*client.SubmitResult, error)
	Status(ctx context.Context, jobID string) (*client.StatusResult, error)
	Download(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// Options configures a Session.
type Options struct {
	Service        RemoteService
	DestDir        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	FetchTimeout   time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Collector
	Sinks          []Sink
	EventLogSize   int
}

// Session owns the live set of job records and the poll loop driving them.
// Only one batch is live at a time; submitting a new batch supersedes the
// previous one.
type Session struct {
	id             string
	svc            RemoteService
	fetcher        *Fetcher
	interval       time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Collector
	sinks          []Sink
	events         *EventLog

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu        sync.Mutex
	gen       uint64
	batchID   string
	records   []*models.Record
	index     map[string]*models.Record
	fetching  map[string]bool
	polling   bool
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
	updatedAt time.Time
	subs      map[int]chan models.Snapshot
	nextSub   int
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.New().String()[:8] // Short ID for convenience
	baseCtx, baseCancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	close(done)

	return &Session{
		id:             id,
		svc:            opts.Service,
		fetcher:        NewFetcher(opts.Service, opts.DestDir, opts.FetchTimeout),
		interval:       opts.PollInterval,
		requestTimeout: opts.RequestTimeout,
		logger:         opts.Logger.With("session_id", id),
		metrics:        opts.Metrics,
		sinks:          opts.Sinks,
		events:         NewEventLog(opts.EventLogSize),
		baseCtx:        baseCtx,
		baseCancel:     baseCancel,
		index:          make(map[string]*models.Record),
		fetching:       make(map[string]bool),
		done:           done,
		updatedAt:      time.Now(),
		subs:           make(map[int]chan models.Snapshot),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// DestDir returns the artifact directory.
func (s *Session) DestDir() string {
	return s.fetcher.DestDir()
}

// Submit replaces the live set with one record per distinct identifier and
// starts submitting them in the background. Any running poll cycle of the
// previous batch is cancelled. The returned snapshot shows the new records
// as PENDING.
func (s *Session) Submit(raw []string) (models.Snapshot, error) {
	ids := NormalizeIdentifiers(raw)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Snapshot{}, ErrClosed
	}
	s.stopLocked()

	s.gen++
	gen := s.gen
	s.batchID = uuid.New().String()[:8]
	s.records = make([]*models.Record, 0, len(ids))
	s.index = make(map[string]*models.Record, len(ids))
	s.fetching = make(map[string]bool)

	now := time.Now()
	for _, id := range ids {
		rec := &models.Record{
			ExternalID:  id,
			Status:      models.StatusPending,
			SubmittedAt: now,
			UpdatedAt:   now,
		}
		s.records = append(s.records, rec)
		s.index[id] = rec
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.polling = len(ids) > 0
	s.updatedAt = now

	snap := s.snapshotLocked()
	s.notifyLocked(snap)
	if len(ids) == 0 {
		s.finishLocked(gen)
	}
	s.mu.Unlock()

	s.logger.Info("batch submitted", "batch_id", snap.BatchID, "jobs", len(ids), "raw", len(raw))

	if len(ids) > 0 {
		go s.run(ctx, gen, ids)
	}
	return snap, nil
}

// Snapshot returns an immutable copy of the live set.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Done returns a channel closed once the current batch has settled or was
// superseded.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the current batch settles or ctx ends, then returns the
// latest snapshot.
func (s *Session) Wait(ctx context.Context) (models.Snapshot, error) {
	select {
	case <-s.Done():
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Subscribe returns a channel receiving a snapshot after every committed
// change. Slow readers only see the latest snapshot. The channel is closed
// by the returned cancel func or when the session closes.
func (s *Session) Subscribe() (<-chan models.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Events returns committed events with sequence greater than since.
func (s *Session) Events(since int64) []models.Event {
	return s.events.Since(since)
}

// Close cancels any running batch and releases subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopLocked()
	s.baseCancel()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.logger.Debug("session closed")
}

// stopLocked cancels the current batch's loop. Caller must hold s.mu.
func (s *Session) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.polling = false
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// finishLocked marks batch gen as settled. Caller must hold s.mu.
func (s *Session) finishLocked(gen uint64) {
	if gen != s.gen {
		return
	}
	s.polling = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Session) snapshotLocked() models.Snapshot {
	records := make([]models.Record, len(s.records))
	for i, r := range s.records {
		records[i] = *r
	}
	return models.Snapshot{
		SessionID: s.id,
		BatchID:   s.batchID,
		Records:   records,
		Polling:   s.polling,
		UpdatedAt: s.updatedAt,
	}
}

// notifyLocked hands snap to every subscriber without blocking.
func (s *Session) notifyLocked(snap models.Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot in favour of the new one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// update is the outcome of one network step for one record.
type update struct {
	externalID string
	jobID      string
	status     models.Status
	message    string
	fetched    bool
	artifact   string
	fetchErr   string
}

// commit applies updates of batch gen in one critical section and returns
// the resulting events. Updates for a superseded batch or a frozen record
// are discarded.
func (s *Session) commit(gen uint64, updates ...update) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return nil
	}

	now := time.Now()
	var events []models.Event
	for _, u := range updates {
		rec, ok := s.index[u.externalID]
		if !ok || rec.Status.Terminal() {
			continue
		}

		from := rec.Status
		if u.jobID != "" && rec.JobID == "" {
			rec.JobID = u.jobID
		}
		rec.Status = u.status
		rec.UpdatedAt = now

		switch u.status {
		case models.StatusError, models.StatusFailure:
			rec.ErrorMessage = u.message
		default:
			rec.ErrorMessage = ""
		}
		if u.fetched {
			rec.ArtifactPath = u.artifact
			rec.FetchError = u.fetchErr
		}
		if rec.Status.Terminal() {
			completed := now
			rec.CompletedAt = &completed
		}

		if from == rec.Status && !u.fetched && u.jobID == "" {
			continue
		}
		msg := rec.ErrorMessage
		if rec.FetchError != "" {
			msg = rec.FetchError
		} else if rec.ArtifactPath != "" {
			msg = "artifact saved to " + rec.ArtifactPath
		}
		events = append(events, s.events.Append(models.Event{
			SessionID:  s.id,
			ExternalID: rec.ExternalID,
			JobID:      rec.JobID,
			From:       from,
			To:         rec.Status,
			Message:    msg,
			Record:     *rec,
		}))
	}

	if len(events) > 0 {
		s.updatedAt = now
		s.notifyLocked(s.snapshotLocked())
	}
	return events
}

// publish forwards events to the sinks outside the session lock.
func (s *Session) publish(events []models.Event) {
	for _, ev := range events {
		s.logger.Info("job transition",
			"external_id", ev.ExternalID,
			"job_id", ev.JobID,
			"from", ev.From,
			"status", ev.To,
			"message", ev.Message)

		for _, sink := range s.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
			if err := sink.Publish(ctx, ev); err != nil {
				s.logger.Warn("failed to publish event", "external_id", ev.ExternalID, "error", err)
			}
			cancel()
		}
	}
}
