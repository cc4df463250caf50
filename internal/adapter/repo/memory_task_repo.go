package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"img2img/internal/domain"
)

// MemoryTaskRepository keeps tasks in process memory. It backs the API when
// no DATABASE_URL is configured and is used throughout the tests.
type MemoryTaskRepository struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.Task
	inputs   map[string][]domain.TaskInput
	outputs  map[string][]domain.TaskOutput
	failures map[string][]domain.AttemptFailure
	now      func() time.Time
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		tasks:    make(map[string]*domain.Task),
		inputs:   make(map[string][]domain.TaskInput),
		outputs:  make(map[string][]domain.TaskOutput),
		failures: make(map[string][]domain.AttemptFailure),
		now:      time.Now,
	}
}

func (r *MemoryTaskRepository) CreateTask(_ context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *MemoryTaskRepository) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (r *MemoryTaskRepository) UpdateStatus(_ context.Context, taskID string, update domain.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.Status.IsTerminal() {
		return domain.ErrInvalidTransition
	}
	task.Status = update.Status
	task.ErrorMessage = update.ErrorMessage
	task.ProcessingTimeMs = update.ProcessingTimeMs
	task.CreditsUsed = update.CreditsUsed
	task.UpdatedAt = r.now()
	return nil
}

func (r *MemoryTaskRepository) ListRecent(_ context.Context, ownerID string, limit int) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]domain.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		if ownerID != "" && task.UserID != ownerID {
			continue
		}
		tasks = append(tasks, *task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (r *MemoryTaskRepository) DeleteTask(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[taskID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.tasks, taskID)
	delete(r.inputs, taskID)
	delete(r.outputs, taskID)
	delete(r.failures, taskID)
	return nil
}

func (r *MemoryTaskRepository) AddInput(_ context.Context, in *domain.TaskInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[in.TaskID]; !ok {
		return domain.ErrNotFound
	}
	r.inputs[in.TaskID] = append(r.inputs[in.TaskID], *in)
	return nil
}

func (r *MemoryTaskRepository) ListInputs(_ context.Context, taskID string) ([]domain.TaskInput, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inputs := append([]domain.TaskInput(nil), r.inputs[taskID]...)
	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].Ordinal < inputs[j].Ordinal })
	return inputs, nil
}

func (r *MemoryTaskRepository) AddOutput(_ context.Context, out *domain.TaskOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[out.TaskID]; !ok {
		return domain.ErrNotFound
	}
	r.outputs[out.TaskID] = append(r.outputs[out.TaskID], *out)
	return nil
}

func (r *MemoryTaskRepository) ListOutputs(_ context.Context, taskID string) ([]domain.TaskOutput, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	outputs := append([]domain.TaskOutput(nil), r.outputs[taskID]...)
	sort.SliceStable(outputs, func(i, j int) bool { return outputs[i].Ordinal < outputs[j].Ordinal })
	return outputs, nil
}

func (r *MemoryTaskRepository) AddFailure(_ context.Context, f *domain.AttemptFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[f.TaskID]; !ok {
		return domain.ErrNotFound
	}
	r.failures[f.TaskID] = append(r.failures[f.TaskID], *f)
	return nil
}

func (r *MemoryTaskRepository) ListFailures(_ context.Context, taskID string) ([]domain.AttemptFailure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AttemptFailure(nil), r.failures[taskID]...), nil
}

var _ domain.TaskRepository = (*MemoryTaskRepository)(nil)
