package replicate

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIToken    = errors.New("replicate: api token is not configured")
	ErrTimeout            = errors.New("replicate: prediction timed out")
	ErrPredictionCanceled = errors.New("replicate: prediction was canceled")
	ErrEmptyOutput        = errors.New("replicate: no output image returned")
)

// UpstreamError is a non-2xx response from the API.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("replicate: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// PredictionFailedError is a prediction that ended in the failed state.
type PredictionFailedError struct {
	ID      string
	Message string
}

func (e *PredictionFailedError) Error() string {
	return fmt.Sprintf("replicate: prediction %s failed: %s", e.ID, e.Message)
}

type UnexpectedStatusError struct {
	ID     string
	Status string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("replicate: prediction %s ended with unexpected status %q", e.ID, e.Status)
}
