// Package tasks owns the image task lifecycle: creation, attaching inputs and
// outputs, status transitions and retrieval.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"img2img/internal/domain"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// NewTask describes a task to create.
type NewTask struct {
	UserID      string
	Prompt      string
	Model       string
	AspectRatio string
	NumOutputs  int
}

// Manager applies lifecycle rules on top of a TaskRepository.
type Manager struct {
	repo   domain.TaskRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewManager(repo domain.TaskRepository, logger zerolog.Logger) *Manager {
	return &Manager{repo: repo, logger: logger, now: time.Now}
}

// CreateTask persists a pending task and returns it.
func (m *Manager) CreateTask(ctx context.Context, req NewTask) (*domain.Task, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidRequest)
	}
	now := m.now().UTC()
	task := &domain.Task{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Prompt:          req.Prompt,
		Model:           req.Model,
		AspectRatio:     req.AspectRatio,
		NumOutputs:      req.NumOutputs,
		Provider:        domain.DefaultProvider,
		ProviderModelID: domain.DefaultProviderModelID,
		Status:          domain.TaskStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	m.logger.Info().Str("task_id", task.ID).Str("model", task.Model).Int("num_outputs", task.NumOutputs).Msg("task created")
	return task, nil
}

// AddInput records an uploaded source image at ordinal.
func (m *Manager) AddInput(ctx context.Context, taskID, storageKey, fileName string, fileSize int64, fileType string, ordinal int) (*domain.TaskInput, error) {
	in := &domain.TaskInput{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		StorageKey: storageKey,
		FileName:   fileName,
		FileSize:   fileSize,
		FileType:   fileType,
		Ordinal:    ordinal,
		CreatedAt:  m.now().UTC(),
	}
	if err := m.repo.AddInput(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// AddOutput records a generated image produced by attempt ordinal.
func (m *Manager) AddOutput(ctx context.Context, taskID, storageKey string, ordinal int) (*domain.TaskOutput, error) {
	out := &domain.TaskOutput{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		StorageKey: storageKey,
		Ordinal:    ordinal,
		CreatedAt:  m.now().UTC(),
	}
	if err := m.repo.AddOutput(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus moves the task to update.Status. Transitions out of a terminal
// state or backwards are rejected with domain.ErrInvalidTransition.
func (m *Manager) SetStatus(ctx context.Context, taskID string, update domain.StatusUpdate) error {
	task, err := m.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.Status.CanTransitionTo(update.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, task.Status, update.Status)
	}
	if err := m.repo.UpdateStatus(ctx, taskID, update); err != nil {
		return err
	}
	ev := m.logger.Info().Str("task_id", taskID).Str("status", string(update.Status))
	if update.ErrorMessage != nil {
		ev = ev.Str("error", *update.ErrorMessage)
	}
	ev.Msg("task status changed")
	return nil
}

// RecordAttemptFailure stores why attempt ordinal produced nothing.
func (m *Manager) RecordAttemptFailure(ctx context.Context, taskID string, ordinal int, reason string) error {
	return m.repo.AddFailure(ctx, &domain.AttemptFailure{
		TaskID:    taskID,
		Ordinal:   ordinal,
		Reason:    reason,
		CreatedAt: m.now().UTC(),
	})
}

func (m *Manager) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return m.repo.GetTask(ctx, taskID)
}

func (m *Manager) ListInputs(ctx context.Context, taskID string) ([]domain.TaskInput, error) {
	return m.repo.ListInputs(ctx, taskID)
}

func (m *Manager) ListOutputs(ctx context.Context, taskID string) ([]domain.TaskOutput, error) {
	return m.repo.ListOutputs(ctx, taskID)
}

// GetTaskWithDetails returns the task with inputs and outputs in ordinal order.
func (m *Manager) GetTaskWithDetails(ctx context.Context, taskID string) (*domain.TaskDetails, error) {
	task, err := m.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	inputs, err := m.repo.ListInputs(ctx, taskID)
	if err != nil {
		return nil, err
	}
	outputs, err := m.repo.ListOutputs(ctx, taskID)
	if err != nil {
		return nil, err
	}
	failures, err := m.repo.ListFailures(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &domain.TaskDetails{Task: *task, Inputs: inputs, Outputs: outputs, Failures: failures}, nil
}

// ListRecentTasks returns ownerID's newest tasks first. An empty owner lists
// every task.
func (m *Manager) ListRecentTasks(ctx context.Context, ownerID string, limit int) ([]domain.Task, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}
	return m.repo.ListRecent(ctx, ownerID, limit)
}

// DeleteTask removes the task and everything it owns. When ownerID is set,
// tasks belonging to someone else are reported as forbidden.
func (m *Manager) DeleteTask(ctx context.Context, taskID, ownerID string) error {
	if ownerID != "" {
		task, err := m.repo.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.UserID != "" && task.UserID != ownerID {
			return domain.ErrForbidden
		}
	}
	if err := m.repo.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	m.logger.Info().Str("task_id", taskID).Msg("task deleted")
	return nil
}
