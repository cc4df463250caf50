package handlers

import (
	"time"

	"img2img/internal/domain"
)

type taskView struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId,omitempty"`
	Prompt           string    `json:"prompt"`
	Model            string    `json:"model"`
	AspectRatio      string    `json:"aspectRatio"`
	NumOutputs       int       `json:"numOutputs"`
	Provider         string    `json:"provider"`
	ProviderModelID  string    `json:"modelId"`
	Status           string    `json:"status"`
	ErrorMessage     *string   `json:"errorMessage"`
	ProcessingTimeMs *int64    `json:"processingTimeMs"`
	CreditsUsed      *float64  `json:"creditsUsed"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type inputView struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storageKey"`
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	Ordinal    int       `json:"sortOrder"`
	ImageURL   string    `json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type outputView struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storageKey"`
	Ordinal    int       `json:"sortOrder"`
	ImageURL   string    `json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

type failureView struct {
	Ordinal   int       `json:"sortOrder"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

type recentTaskView struct {
	taskView
	Outputs []outputView `json:"outputs"`
}

func newTaskView(t domain.Task) taskView {
	return taskView{
		ID:               t.ID,
		UserID:           t.UserID,
		Prompt:           t.Prompt,
		Model:            t.Model,
		AspectRatio:      t.AspectRatio,
		NumOutputs:       t.NumOutputs,
		Provider:         t.Provider,
		ProviderModelID:  t.ProviderModelID,
		Status:           string(t.Status),
		ErrorMessage:     t.ErrorMessage,
		ProcessingTimeMs: t.ProcessingTimeMs,
		CreditsUsed:      t.CreditsUsed,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func (a *App) inputViews(inputs []domain.TaskInput) []inputView {
	out := make([]inputView, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, inputView{
			ID:         in.ID,
			StorageKey: in.StorageKey,
			FileName:   in.FileName,
			FileSize:   in.FileSize,
			FileType:   in.FileType,
			Ordinal:    in.Ordinal,
			ImageURL:   a.Blobs.PublicURL(in.StorageKey),
			CreatedAt:  in.CreatedAt,
		})
	}
	return out
}

func (a *App) outputViews(outputs []domain.TaskOutput) []outputView {
	out := make([]outputView, 0, len(outputs))
	for _, o := range outputs {
		out = append(out, outputView{
			ID:         o.ID,
			StorageKey: o.StorageKey,
			Ordinal:    o.Ordinal,
			ImageURL:   a.Blobs.PublicURL(o.StorageKey),
			CreatedAt:  o.CreatedAt,
		})
	}
	return out
}

func failureViews(failures []domain.AttemptFailure) []failureView {
	out := make([]failureView, 0, len(failures))
	for _, f := range failures {
		out = append(out, failureView{Ordinal: f.Ordinal, Reason: f.Reason, CreatedAt: f.CreatedAt})
	}
	return out
}
