package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/models"
)

// pollLoop queries the pollable records of batch gen once per interval until
// none remain or the batch is superseded.
func (s *Session) pollLoop(ctx context.Context, gen uint64) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if !s.hasPollable(gen) {
			s.mu.Lock()
			current := gen == s.gen
			if current {
				s.finishLocked(gen)
				s.updatedAt = time.Now()
				s.notifyLocked(s.snapshotLocked())
			}
			s.mu.Unlock()
			if current {
				s.logger.Info("batch settled", "gen", gen)
			}
			return
		}

		select {
		case <-ctx.Done():
			s.logger.Debug("poll loop cancelled", "gen", gen)
			return
		case <-timer.C:
		}

		s.cycle(ctx, gen)
		timer.Reset(s.interval)
	}
}

func (s *Session) hasPollable(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	for _, r := range s.records {
		if r.Pollable() {
			return true
		}
	}
	return false
}

// cycle performs one poll round: every pollable record is queried
// concurrently, successful jobs get their artifact fetched, and all results
// are committed together. A cancelled cycle commits nothing.
func (s *Session) cycle(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	targets := make([]models.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.Pollable() {
			targets = append(targets, *r)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	updates := make([]update, len(targets))
	var wg sync.WaitGroup
	for i, rec := range targets {
		wg.Add(1)
		go func(i int, rec models.Record) {
			defer wg.Done()
			updates[i] = s.queryOne(ctx, gen, rec)
		}(i, rec)
	}
	wg.Wait()

	if ctx.Err() != nil {
		s.logger.Debug("discarding cancelled poll cycle", "gen", gen, "jobs", len(targets))
		return
	}
	s.publish(s.commit(gen, updates...))
}

func (s *Session) queryOne(ctx context.Context, gen uint64, rec models.Record) update {
	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	done := s.metrics.Track(metrics.OpStatus)
	res, err := s.svc.Status(callCtx, rec.JobID)
	done(err)

	u := update{externalID: rec.ExternalID}
	if err != nil {
		qErr := &QueryError{JobID: rec.JobID, Err: err}
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("status query failed", "external_id", rec.ExternalID, "job_id", rec.JobID, "error", err)
		}
		u.status = models.StatusError
		u.message = qErr.Error()
		return u
	}

	u.status = res.Status
	u.message = res.ErrorMessage
	if res.Status == models.StatusSuccess {
		s.settleSuccess(ctx, gen, rec, &u)
	}
	return u
}

// settleSuccess downloads the artifact of a job that just reached SUCCESS and
// records the outcome on u. Each record of a batch is fetched at most once.
func (s *Session) settleSuccess(ctx context.Context, gen uint64, rec models.Record, u *update) {
	if !s.claimFetch(gen, rec.ExternalID) {
		return
	}

	done := s.metrics.Track(metrics.OpFetch)
	path, err := s.fetcher.Fetch(ctx, rec)
	done(err)

	u.fetched = true
	if err != nil {
		s.logger.Warn("artifact fetch failed", "external_id", rec.ExternalID, "job_id", rec.JobID, "error", err)
		u.fetchErr = err.Error()
		return
	}
	u.artifact = path
}

func (s *Session) claimFetch(gen uint64, externalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.fetching[externalID] {
		return false
	}
	s.fetching[externalID] = true
	return true
}
