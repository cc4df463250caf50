package domain

import "time"

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

const (
	DefaultProvider        = "replicate"
	DefaultProviderModelID = "prunaai/z-image-turbo-img2img"
)

// Storage prefixes under which task blobs live.
const (
	TaskKeyPrefix    = "image-tasks/"
	InputsKeyPrefix  = "image-tasks/inputs/"
	OutputsKeyPrefix = "image-tasks/outputs/"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusProcessing:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// forward-only. Re-asserting processing is allowed so a generate call can be
// replayed against a task that never reached a terminal state.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Task is a single user request to transform source images.
type Task struct {
	ID               string
	UserID           string
	Prompt           string
	Model            string
	AspectRatio      string
	NumOutputs       int
	Provider         string
	ProviderModelID  string
	Status           TaskStatus
	ErrorMessage     *string
	ProcessingTimeMs *int64
	CreditsUsed      *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TaskInput is an uploaded source image.
type TaskInput struct {
	ID         string
	TaskID     string
	StorageKey string
	FileName   string
	FileSize   int64
	FileType   string
	Ordinal    int
	CreatedAt  time.Time
}

// TaskOutput is a generated image. Ordinal is the attempt index, so gaps are
// expected when attempts fail.
type TaskOutput struct {
	ID         string
	TaskID     string
	StorageKey string
	Ordinal    int
	CreatedAt  time.Time
}

// AttemptFailure records why a single generation attempt produced nothing.
type AttemptFailure struct {
	TaskID    string
	Ordinal   int
	Reason    string
	CreatedAt time.Time
}

// TaskDetails aggregates a task with its children.
type TaskDetails struct {
	Task     Task
	Inputs   []TaskInput
	Outputs  []TaskOutput
	Failures []AttemptFailure
}

// StatusUpdate carries the fields written by a status change.
type StatusUpdate struct {
	Status           TaskStatus
	ErrorMessage     *string
	ProcessingTimeMs *int64
	CreditsUsed      *float64
}

// Blob is a fetched stored object.
type Blob struct {
	Key         string
	ContentType string
	Data        []byte
}
