package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"img2img/internal/domain"
	"img2img/internal/infra"
	"img2img/internal/sqlinline"
)

// TaskRepositoryPG implements domain.TaskRepository on PostgreSQL.
type TaskRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTaskRepository creates a task repository backed by the given executor.
func NewTaskRepository(sql infra.SQLExecutor) *TaskRepositoryPG {
	return &TaskRepositoryPG{sql: sql}
}

func (r *TaskRepositoryPG) CreateTask(ctx context.Context, task *domain.Task) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertImageTask,
		task.ID,
		task.UserID,
		task.Prompt,
		task.Model,
		task.AspectRatio,
		task.NumOutputs,
		task.Provider,
		task.ProviderModelID,
		string(task.Status),
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepositoryPG) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if !isUUID(taskID) {
		return nil, domain.ErrNotFound
	}
	task, err := scanTask(r.sql.QueryRow(ctx, sqlinline.QSelectImageTask, taskID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select task: %w", err)
	}
	return task, nil
}

// UpdateStatus refuses to touch terminal rows. When nothing was updated the
// row is re-read to tell a missing task from a terminal one.
func (r *TaskRepositoryPG) UpdateStatus(ctx context.Context, taskID string, update domain.StatusUpdate) error {
	if !isUUID(taskID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateImageTaskStatus,
		taskID,
		string(update.Status),
		update.ErrorMessage,
		update.ProcessingTimeMs,
		update.CreditsUsed,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetTask(ctx, taskID); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

func (r *TaskRepositoryPG) ListRecent(ctx context.Context, ownerID string, limit int) ([]domain.Task, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentImageTasks, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepositoryPG) DeleteTask(ctx context.Context, taskID string) error {
	if !isUUID(taskID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteImageTask, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TaskRepositoryPG) AddInput(ctx context.Context, in *domain.TaskInput) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertImageTaskInput,
		in.ID, in.TaskID, in.StorageKey, in.FileName, in.FileSize, in.FileType, in.Ordinal, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task input: %w", err)
	}
	return nil
}

func (r *TaskRepositoryPG) ListInputs(ctx context.Context, taskID string) ([]domain.TaskInput, error) {
	if !isUUID(taskID) {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListImageTaskInputs, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task inputs: %w", err)
	}
	defer rows.Close()

	var inputs []domain.TaskInput
	for rows.Next() {
		var in domain.TaskInput
		if err := rows.Scan(&in.ID, &in.TaskID, &in.StorageKey, &in.FileName, &in.FileSize, &in.FileType, &in.Ordinal, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task input: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

func (r *TaskRepositoryPG) AddOutput(ctx context.Context, out *domain.TaskOutput) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertImageTaskOutput, out.ID, out.TaskID, out.StorageKey, out.Ordinal, out.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task output: %w", err)
	}
	return nil
}

func (r *TaskRepositoryPG) ListOutputs(ctx context.Context, taskID string) ([]domain.TaskOutput, error) {
	if !isUUID(taskID) {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListImageTaskOutputs, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task outputs: %w", err)
	}
	defer rows.Close()

	var outputs []domain.TaskOutput
	for rows.Next() {
		var out domain.TaskOutput
		if err := rows.Scan(&out.ID, &out.TaskID, &out.StorageKey, &out.Ordinal, &out.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task output: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

func (r *TaskRepositoryPG) AddFailure(ctx context.Context, f *domain.AttemptFailure) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertImageTaskFailure, f.TaskID, f.Ordinal, f.Reason, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attempt failure: %w", err)
	}
	return nil
}

func (r *TaskRepositoryPG) ListFailures(ctx context.Context, taskID string) ([]domain.AttemptFailure, error) {
	if !isUUID(taskID) {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListImageTaskFailures, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attempt failures: %w", err)
	}
	defer rows.Close()

	var failures []domain.AttemptFailure
	for rows.Next() {
		var f domain.AttemptFailure
		if err := rows.Scan(&f.TaskID, &f.Ordinal, &f.Reason, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var status string
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Prompt,
		&task.Model,
		&task.AspectRatio,
		&task.NumOutputs,
		&task.Provider,
		&task.ProviderModelID,
		&status,
		&task.ErrorMessage,
		&task.ProcessingTimeMs,
		&task.CreditsUsed,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	return &task, nil
}

var _ domain.TaskRepository = (*TaskRepositoryPG)(nil)

// isUUID guards uuid-typed columns; ids that cannot exist are reported as
// missing instead of surfacing a cast error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
