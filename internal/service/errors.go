package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned when submitting to a session that was closed.
var ErrClosed = errors.New("session closed")

// SubmissionError is a transport or protocol failure while submitting a job.
// The record ends in ERROR without a job id.
type SubmissionError struct {
	ExternalID string
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %s", e.ExternalID, describe(e.Err))
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// QueryError is a transport or protocol failure while polling a job's status.
// The record ends in ERROR and is never polled again.
type QueryError struct {
	JobID string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query status of %s: %s", e.JobID, describe(e.Err))
}

func (e *QueryError) Unwrap() error { return e.Err }

// FetchError is a failure downloading or writing the artifact of a
// successful job. It never changes the job's SUCCESS status.
type FetchError struct {
	JobID string
	Path  string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch artifact of %s: %s", e.JobID, describe(e.Err))
}

func (e *FetchError) Unwrap() error { return e.Err }

func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out: " + err.Error()
	}
	return err.Error()
}
