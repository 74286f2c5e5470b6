package service

import (
	"context"
	"strings"
	"sync"

	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/models"
)

// NormalizeIdentifiers trims raw identifiers, drops blanks and removes exact
// duplicates, keeping the first occurrence.
func NormalizeIdentifiers(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		id := strings.TrimSpace(r)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// run drives batch gen: submit every identifier, then poll until settled.
func (s *Session) run(ctx context.Context, gen uint64, ids []string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("batch goroutine panicked", "panic", r)
		}
	}()

	s.submitAll(ctx, gen, ids)
	s.pollLoop(ctx, gen)
}

// submitAll issues one submit per identifier concurrently. Each result is
// committed as soon as it arrives; failures never affect sibling submits.
func (s *Session) submitAll(ctx context.Context, gen uint64, ids []string) {
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(externalID string) {
			defer wg.Done()
			u := s.submitOne(ctx, gen, externalID)
			if ctx.Err() != nil {
				return
			}
			s.publish(s.commit(gen, u))
		}(id)
	}
	wg.Wait()
}

func (s *Session) submitOne(ctx context.Context, gen uint64, externalID string) update {
	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	done := s.metrics.Track(metrics.OpSubmit)
	res, err := s.svc.Submit(callCtx, externalID)
	done(err)

	if err != nil {
		subErr := &SubmissionError{ExternalID: externalID, Err: err}
		s.logger.Warn("submit failed", "external_id", externalID, "error", err)
		return update{
			externalID: externalID,
			status:     models.StatusError,
			message:    subErr.Error(),
		}
	}

	u := update{
		externalID: externalID,
		jobID:      res.JobID,
		status:     res.Status,
	}
	// A service may answer with an already finished job.
	if res.Status == models.StatusSuccess {
		rec := models.Record{ExternalID: externalID, JobID: res.JobID, Status: res.Status}
		s.settleSuccess(ctx, gen, rec, &u)
	}
	return u
}
