package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"img2img/internal/domain"
	"img2img/internal/sqlinline"
)

const testTaskID = "5f0c2d4e-8a1b-4c3d-9e2f-1a2b3c4d5e6f"

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	execs    []execCall
	tags     []pgconn.CommandTag
	execErr  error
	row      pgx.Row
	rows     pgx.Rows
	queryErr error
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	if len(s.tags) == 0 {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	tag := s.tags[0]
	s.tags = s.tags[1:]
	return tag, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows, nil
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = values[i].(string)
		case *int:
			*p = values[i].(int)
		case *int64:
			*p = values[i].(int64)
		case *time.Time:
			*p = values[i].(time.Time)
		case **string:
			*p, _ = values[i].(*string)
		case **int64:
			*p, _ = values[i].(*int64)
		case **float64:
			*p, _ = values[i].(*float64)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

// stubRows implements the subset of pgx.Rows the repository uses.
type stubRows struct {
	pgx.Rows
	data   [][]any
	idx    int
	closed bool
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx-1]) }
func (r *stubRows) Err() error             { return nil }
func (r *stubRows) Close()                 { r.closed = true }

func taskValues(id string, status domain.TaskStatus, created time.Time) []any {
	credits := 1.5
	return []any{id, "user-1", "prompt", "standard", "1:1", 2, "replicate", "prunaai/z-image-turbo-img2img",
		string(status), (*string)(nil), (*int64)(nil), &credits, created, created}
}

func TestTaskRepositoryCreateTaskArgs(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewTaskRepository(exec)
	now := time.Now()
	err := repo.CreateTask(context.Background(), &domain.Task{
		ID: testTaskID, UserID: "u", Prompt: "p", Model: "turbo", AspectRatio: "1:1", NumOutputs: 4,
		Provider: "replicate", ProviderModelID: "m", Status: domain.TaskStatusPending, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTask error: %v", err)
	}
	if len(exec.execs) != 1 || exec.execs[0].query != sqlinline.QInsertImageTask {
		t.Fatalf("unexpected exec calls: %+v", exec.execs)
	}
	args := exec.execs[0].args
	if len(args) != 10 || args[0] != testTaskID || args[8] != "pending" || args[9] != now {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestTaskRepositoryGetTask(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewTaskRepository(&stubExecutor{row: stubRow{values: taskValues(testTaskID, domain.TaskStatusCompleted, created)}})
	task, err := repo.GetTask(context.Background(), testTaskID)
	if err != nil {
		t.Fatalf("GetTask error: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted || task.CreditsUsed == nil || *task.CreditsUsed != 1.5 || !task.CreatedAt.Equal(created) {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestTaskRepositoryGetTaskNotFound(t *testing.T) {
	repo := NewTaskRepository(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	if _, err := repo.GetTask(context.Background(), testTaskID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskRepositoryRejectsMalformedIDs(t *testing.T) {
	boom := errors.New("invalid input syntax for type uuid")
	exec := &stubExecutor{execErr: boom, queryErr: boom}
	repo := NewTaskRepository(exec)
	ctx := context.Background()
	if _, err := repo.GetTask(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetTask: expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteTask(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("DeleteTask: expected ErrNotFound, got %v", err)
	}
	if outputs, err := repo.ListOutputs(ctx, "missing"); err != nil || len(outputs) != 0 {
		t.Fatalf("ListOutputs: %v %v", outputs, err)
	}
}

func TestTaskRepositoryUpdateStatus(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		exec := &stubExecutor{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 1")}}
		msg := "boom"
		err := NewTaskRepository(exec).UpdateStatus(context.Background(), testTaskID, domain.StatusUpdate{Status: domain.TaskStatusFailed, ErrorMessage: &msg})
		if err != nil {
			t.Fatalf("UpdateStatus error: %v", err)
		}
		if !strings.Contains(exec.execs[0].query, "status not in ('completed', 'failed')") {
			t.Fatal("update must guard terminal rows")
		}
		if exec.execs[0].args[1] != "failed" || exec.execs[0].args[2] != &msg {
			t.Fatalf("unexpected args: %v", exec.execs[0].args)
		}
	})
	t.Run("terminal", func(t *testing.T) {
		exec := &stubExecutor{
			tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")},
			row:  stubRow{values: taskValues(testTaskID, domain.TaskStatusCompleted, time.Now())},
		}
		err := NewTaskRepository(exec).UpdateStatus(context.Background(), testTaskID, domain.StatusUpdate{Status: domain.TaskStatusFailed})
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
	t.Run("missing", func(t *testing.T) {
		exec := &stubExecutor{
			tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")},
			row:  stubRow{err: pgx.ErrNoRows},
		}
		err := NewTaskRepository(exec).UpdateStatus(context.Background(), testTaskID, domain.StatusUpdate{Status: domain.TaskStatusProcessing})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTaskRepositoryDeleteTaskNotFound(t *testing.T) {
	exec := &stubExecutor{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 0")}}
	if err := NewTaskRepository(exec).DeleteTask(context.Background(), testTaskID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskRepositoryListOutputs(t *testing.T) {
	now := time.Now()
	rows := &stubRows{data: [][]any{
		{"o0", testTaskID, "image-tasks/outputs/x/a.jpg", 0, now},
		{"o2", testTaskID, "image-tasks/outputs/x/b.jpg", 2, now},
	}}
	outputs, err := NewTaskRepository(&stubExecutor{rows: rows}).ListOutputs(context.Background(), testTaskID)
	if err != nil {
		t.Fatalf("ListOutputs error: %v", err)
	}
	if len(outputs) != 2 || outputs[1].Ordinal != 2 || outputs[1].StorageKey != "image-tasks/outputs/x/b.jpg" {
		t.Fatalf("unexpected outputs: %+v", outputs)
	}
	if !rows.closed {
		t.Fatal("rows not closed")
	}
}

func TestTaskRepositoryListRecent(t *testing.T) {
	now := time.Now()
	rows := &stubRows{data: [][]any{
		taskValues("t2", domain.TaskStatusPending, now),
		taskValues(testTaskID, domain.TaskStatusFailed, now.Add(-time.Minute)),
	}}
	tasks, err := NewTaskRepository(&stubExecutor{rows: rows}).ListRecent(context.Background(), "user-1", 20)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t2" || tasks[1].Status != domain.TaskStatusFailed {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestMemoryTaskRepositoryCascadeDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	_ = repo.CreateTask(ctx, &domain.Task{ID: "t1", Status: domain.TaskStatusPending})
	_ = repo.AddInput(ctx, &domain.TaskInput{ID: "i0", TaskID: "t1"})
	_ = repo.AddOutput(ctx, &domain.TaskOutput{ID: "o0", TaskID: "t1"})
	_ = repo.AddFailure(ctx, &domain.AttemptFailure{TaskID: "t1", Ordinal: 1, Reason: "x"})
	if err := repo.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTask error: %v", err)
	}
	if in, _ := repo.ListInputs(ctx, "t1"); len(in) != 0 {
		t.Fatalf("inputs survived delete: %+v", in)
	}
	if out, _ := repo.ListOutputs(ctx, "t1"); len(out) != 0 {
		t.Fatalf("outputs survived delete: %+v", out)
	}
	if err := repo.AddOutput(ctx, &domain.TaskOutput{ID: "o1", TaskID: "t1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for orphan output, got %v", err)
	}
}

func TestMemoryTaskRepositoryListRecentBreaksTies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "d", "a", "c"} {
		_ = repo.CreateTask(ctx, &domain.Task{ID: id, UserID: "u", Status: domain.TaskStatusPending, CreatedAt: at})
	}
	_ = repo.CreateTask(ctx, &domain.Task{ID: "e", UserID: "u", Status: domain.TaskStatusPending, CreatedAt: at.Add(-time.Second)})
	for i := 0; i < 5; i++ {
		tasks, err := repo.ListRecent(ctx, "u", 10)
		if err != nil {
			t.Fatal(err)
		}
		var ids []string
		for _, task := range tasks {
			ids = append(ids, task.ID)
		}
		if strings.Join(ids, ",") != "d,c,b,a,e" {
			t.Fatalf("order = %v", ids)
		}
	}
}

func TestMemoryTaskRepositoryTerminalGuard(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	_ = repo.CreateTask(ctx, &domain.Task{ID: "t1", Status: domain.TaskStatusPending})
	if err := repo.UpdateStatus(ctx, "t1", domain.StatusUpdate{Status: domain.TaskStatusCompleted}); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "t1", domain.StatusUpdate{Status: domain.TaskStatusFailed}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "nope", domain.StatusUpdate{Status: domain.TaskStatusFailed}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
