package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"img2img/internal/domain"
	"img2img/internal/domain/modelcfg"
	"img2img/internal/tasks"
)

const (
	maxInputImages     = 5
	maxInputFileSize   = 24 << 20
	maxUploadBodySize  = maxInputImages*maxInputFileSize + 1<<20
	multipartMemory    = 32 << 20
	defaultRecentLimit = 20
	outputFetchWorkers = 4

	msgInputStoreFailed = "Failed to store input images"
)

// uploadLimit caps the whole multipart body. Oversized files inside the cap
// are skipped individually; a body past the cap is rejected outright.
func (a *App) uploadLimit() int64 {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return maxUploadBodySize
}

type createTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
}

// CreateTask accepts a multipart submission and records the task with its
// accepted source images. Files that are not images or exceed the size cap
// are skipped.
func (a *App) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := a.uploadLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("request body exceeds %d bytes", limit))
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := a.parseTaskForm(r)
	if err != nil {
		a.fail(w, r, err, "failed to create task")
		return
	}
	req.UserID = userID

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one image is required")
		return
	}
	if len(files) > maxInputImages {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("maximum %d images allowed", maxInputImages))
		return
	}
	accepted := acceptedImages(files)
	if len(accepted) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "no valid images: each file must be an image of at most 24 MiB")
		return
	}

	task, err := a.Tasks.CreateTask(r.Context(), req)
	if err != nil {
		a.fail(w, r, err, "failed to create task")
		return
	}
	for i, fh := range accepted {
		if err := a.storeInput(r.Context(), task.ID, fh, i); err != nil {
			a.markFailed(r.Context(), task.ID, msgInputStoreFailed)
			a.fail(w, r, err, "failed to create task")
			return
		}
	}
	a.json(w, http.StatusOK, createTaskResponse{Success: true, TaskID: task.ID})
}

func (a *App) parseTaskForm(r *http.Request) (tasks.NewTask, error) {
	prompt := strings.TrimSpace(r.FormValue("prompt"))
	model := strings.TrimSpace(r.FormValue("model"))
	aspect := strings.TrimSpace(r.FormValue("aspectRatio"))
	rawNum := strings.TrimSpace(r.FormValue("numOutputs"))
	if prompt == "" || model == "" || aspect == "" || rawNum == "" {
		return tasks.NewTask{}, fmt.Errorf("%w: missing required fields: prompt, model, aspectRatio, numOutputs", domain.ErrInvalidRequest)
	}
	cfg, err := a.Registry.Lookup(model)
	if err != nil {
		return tasks.NewTask{}, err
	}
	if !modelcfg.ValidAspectRatio(aspect) {
		return tasks.NewTask{}, fmt.Errorf("%w: unsupported aspect ratio %q", domain.ErrInvalidRequest, aspect)
	}
	num, err := strconv.Atoi(rawNum)
	if err != nil || !modelcfg.ValidNumOutputs(num) {
		return tasks.NewTask{}, fmt.Errorf("%w: numOutputs must be 1, 2 or 4", domain.ErrInvalidRequest)
	}
	return tasks.NewTask{Prompt: prompt, Model: cfg.ID, AspectRatio: aspect, NumOutputs: num}, nil
}

func acceptedImages(files []*multipart.FileHeader) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, fh := range files {
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			continue
		}
		if fh.Size <= 0 || fh.Size > maxInputFileSize {
			continue
		}
		out = append(out, fh)
	}
	return out
}

func (a *App) storeInput(ctx context.Context, taskID string, fh *multipart.FileHeader, ordinal int) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	contentType := fh.Header.Get("Content-Type")
	key, err := a.Blobs.Upload(ctx, data, fh.Filename, contentType, domain.InputsKeyPrefix+taskID)
	if err != nil {
		return err
	}
	_, err = a.Tasks.AddInput(ctx, taskID, key, fh.Filename, int64(len(data)), contentType, ordinal)
	return err
}

func (a *App) markFailed(ctx context.Context, taskID, message string) {
	msg := message
	if err := a.Tasks.SetStatus(context.WithoutCancel(ctx), taskID, domain.StatusUpdate{
		Status:       domain.TaskStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		a.Logger.Warn().Err(err).Str("task_id", taskID).Msg("mark task failed")
	}
}

// GetTask returns the task with its inputs, outputs and attempt failures.
func (a *App) GetTask(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	taskID := chi.URLParam(r, "id")
	if _, err := a.authorizeTask(r.Context(), taskID, userID); err != nil {
		a.fail(w, r, err, "failed to get task")
		return
	}
	details, err := a.Tasks.GetTaskWithDetails(r.Context(), taskID)
	if err != nil {
		a.fail(w, r, err, "failed to get task")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":  true,
		"task":     newTaskView(details.Task),
		"inputs":   a.inputViews(details.Inputs),
		"outputs":  a.outputViews(details.Outputs),
		"failures": failureViews(details.Failures),
	})
}

// ListTasks returns the caller's most recent tasks, newest first, each with
// its outputs resolved to public URLs.
func (a *App) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	recent, err := a.Tasks.ListRecentTasks(r.Context(), userID, limit)
	if err != nil {
		a.fail(w, r, err, "failed to list tasks")
		return
	}

	items := make([]recentTaskView, len(recent))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(outputFetchWorkers)
	for i, task := range recent {
		i, task := i, task
		g.Go(func() error {
			outputs, err := a.Tasks.ListOutputs(ctx, task.ID)
			if err != nil {
				return fmt.Errorf("list outputs for %s: %w", task.ID, err)
			}
			items[i] = recentTaskView{taskView: newTaskView(task), Outputs: a.outputViews(outputs)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.fail(w, r, err, "failed to list tasks")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "tasks": items})
}

// DeleteTask removes a task owned by the caller along with its records and
// stored images.
func (a *App) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	ctx := r.Context()
	taskID := chi.URLParam(r, "id")
	inputs, err := a.Tasks.ListInputs(ctx, taskID)
	if err != nil {
		a.fail(w, r, err, "failed to delete task")
		return
	}
	outputs, err := a.Tasks.ListOutputs(ctx, taskID)
	if err != nil {
		a.fail(w, r, err, "failed to delete task")
		return
	}
	if err := a.Tasks.DeleteTask(ctx, taskID, userID); err != nil {
		a.fail(w, r, err, "failed to delete task")
		return
	}

	keys := make([]string, 0, len(inputs)+len(outputs))
	for _, in := range inputs {
		keys = append(keys, in.StorageKey)
	}
	for _, o := range outputs {
		keys = append(keys, o.StorageKey)
	}
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := a.Blobs.Delete(cleanupCtx, key); err != nil {
			a.Logger.Warn().Err(err).Str("task_id", taskID).Str("key", key).Msg("delete task image")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
