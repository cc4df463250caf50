package domain

import "context"

// TaskRepository persists tasks and their inputs, outputs and attempt failures.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, taskID string) (*Task, error)
	UpdateStatus(ctx context.Context, taskID string, update StatusUpdate) error
	ListRecent(ctx context.Context, ownerID string, limit int) ([]Task, error)
	DeleteTask(ctx context.Context, taskID string) error

	AddInput(ctx context.Context, input *TaskInput) error
	ListInputs(ctx context.Context, taskID string) ([]TaskInput, error)
	AddOutput(ctx context.Context, output *TaskOutput) error
	ListOutputs(ctx context.Context, taskID string) ([]TaskOutput, error)
	AddFailure(ctx context.Context, failure *AttemptFailure) error
	ListFailures(ctx context.Context, taskID string) ([]AttemptFailure, error)
}

// BlobStore stores task images and resolves their public addresses.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, filename, contentType, prefix string) (string, error)
	Fetch(ctx context.Context, key string) (*Blob, error)
	PublicURL(key string) string
	// Delete removes the object at key. A missing object is not an error.
	Delete(ctx context.Context, key string) error
}
