package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"img2img/internal/domain"
	"img2img/internal/domain/modelcfg"
	"img2img/internal/imagegen"
	"img2img/internal/infra"
	"img2img/internal/middleware"
	"img2img/internal/tasks"
)

// Generator runs generation for an existing task.
type Generator interface {
	Run(ctx context.Context, req imagegen.RunRequest) (*imagegen.RunResult, error)
}

type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	Tasks     *tasks.Manager
	Generator Generator
	Blobs     domain.BlobStore
	Registry  *modelcfg.Registry
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// fail maps domain errors onto HTTP status codes. fallback is the message
// used for unexpected errors, which are logged rather than echoed.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, modelcfg.ErrInvalidModel), errors.Is(err, domain.ErrNoInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "not your task")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "task not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", "task already finished")
	case errors.Is(err, domain.ErrGenerationFailed):
		a.error(w, http.StatusInternalServerError, "generation_failed", err.Error())
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg(fallback)
		a.error(w, http.StatusInternalServerError, "internal", fallback)
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// authorizeTask loads the task and checks that the caller may see it.
func (a *App) authorizeTask(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	task, err := a.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != "" && task.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return task, nil
}
