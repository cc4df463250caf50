package imagegen

import (
	"context"

	"img2img/internal/domain"
	"img2img/internal/domain/modelcfg"
	"img2img/internal/providers/replicate"
)

// RunRequest asks for NumOutputs images for an existing task.
type RunRequest struct {
	TaskID      string
	Prompt      string
	Model       string
	AspectRatio string
	NumOutputs  int
}

// RunResult summarizes a run that produced at least one image.
type RunResult struct {
	TaskID           string
	Outputs          []string
	CreditsUsed      float64
	ProcessingTimeMs int64
}

// Predictor runs one remote prediction and fetches its output.
type Predictor interface {
	SubmitPrediction(ctx context.Context, cfg modelcfg.ModelConfig, imageURL, prompt, outputFormat string) (*replicate.Prediction, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// TaskStore is the part of the task lifecycle the orchestrator drives.
type TaskStore interface {
	SetStatus(ctx context.Context, taskID string, update domain.StatusUpdate) error
	ListInputs(ctx context.Context, taskID string) ([]domain.TaskInput, error)
	AddOutput(ctx context.Context, taskID, storageKey string, ordinal int) (*domain.TaskOutput, error)
	RecordAttemptFailure(ctx context.Context, taskID string, ordinal int, reason string) error
}
