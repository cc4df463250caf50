package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"img2img/internal/sqlinline"
)

type stubExecutor struct {
	token string
	err   error
	query struct {
		query string
		args  []any
	}
	exec struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.query.query = query
	s.query.args = args
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestReplicateAPIToken(t *testing.T) {
	exec := &stubExecutor{token: " r8_abc123 "}
	token, err := NewStore(exec).ReplicateAPIToken(context.Background())
	if err != nil {
		t.Fatalf("ReplicateAPIToken error: %v", err)
	}
	if token != "r8_abc123" {
		t.Fatalf("expected r8_abc123, got %q", token)
	}
	if exec.query.query != sqlinline.QSelectIntegrationToken || exec.query.args[0] != ProviderReplicate {
		t.Fatalf("unexpected query: %+v", exec.query)
	}
}

func TestReplicateAPIToken_NoRows(t *testing.T) {
	token, err := NewStore(&stubExecutor{err: pgx.ErrNoRows}).ReplicateAPIToken(context.Background())
	if err != nil {
		t.Fatalf("ReplicateAPIToken error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestReplicateAPIToken_Error(t *testing.T) {
	boom := errors.New("connection reset")
	if _, err := NewStore(&stubExecutor{err: boom}).ReplicateAPIToken(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestSetReplicateAPIToken(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).SetReplicateAPIToken(context.Background(), " secret ", map[string]any{"label": "prod"}); err != nil {
		t.Fatalf("SetReplicateAPIToken error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	if raw, ok := exec.exec.args[2].([]byte); !ok || string(raw) != `{"label":"prod"}` {
		t.Fatalf("unexpected properties: %v", exec.exec.args[2])
	}
}

func TestSetReplicateAPITokenEmpty(t *testing.T) {
	exec := &stubExecutor{}
	if err := NewStore(exec).SetReplicateAPIToken(context.Background(), " ", nil); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if exec.exec.query != "" {
		t.Fatal("empty token must not reach the database")
	}
}

func TestTokenNormalizesProvider(t *testing.T) {
	exec := &stubExecutor{token: "abc"}
	if _, err := NewStore(exec).Token(context.Background(), " Replicate "); err != nil {
		t.Fatal(err)
	}
	if exec.query.args[0] != ProviderReplicate {
		t.Fatalf("provider arg = %v", exec.query.args[0])
	}
}
