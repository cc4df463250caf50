package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"img2img/internal/domain"
	"img2img/pkg/zip"
)

// ImageProxy streams a stored task image. Only keys under the task prefix are
// served.
func (a *App) ImageProxy(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimLeft(chi.URLParam(r, "*"), "/")
	if key == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image key required")
		return
	}
	if !strings.HasPrefix(path.Clean(key), domain.TaskKeyPrefix) {
		a.error(w, http.StatusForbidden, "forbidden", "access denied")
		return
	}
	blob, err := a.Blobs.Fetch(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "image not found")
			return
		}
		a.fail(w, r, err, "failed to load image")
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// TaskArchive returns the task's generated images as a zip file.
func (a *App) TaskArchive(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	taskID := chi.URLParam(r, "id")
	if _, err := a.authorizeTask(r.Context(), taskID, userID); err != nil {
		a.fail(w, r, err, "failed to build archive")
		return
	}
	outputs, err := a.Tasks.ListOutputs(r.Context(), taskID)
	if err != nil {
		a.fail(w, r, err, "failed to build archive")
		return
	}
	if len(outputs) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "task has no outputs")
		return
	}
	assets := make([]zip.Asset, 0, len(outputs))
	for _, o := range outputs {
		blob, err := a.Blobs.Fetch(r.Context(), o.StorageKey)
		if err != nil {
			a.fail(w, r, fmt.Errorf("fetch output %d: %w", o.Ordinal, err), "failed to build archive")
			return
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("output-%d%s", o.Ordinal, path.Ext(o.StorageKey)),
			MIME:     blob.ContentType,
			Data:     blob.Data,
			Modified: o.CreatedAt,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err, "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=task-%s.zip", taskID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
