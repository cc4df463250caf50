package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"img2img/internal/domain"
	"img2img/internal/imagegen"
)

const maxGenerateBodySize = 64 << 10

type generateRequest struct {
	TaskID      string `json:"taskId"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspectRatio"`
	NumOutputs  int    `json:"numOutputs"`
}

type generateResponse struct {
	Success          bool     `json:"success"`
	TaskID           string   `json:"taskId"`
	Outputs          []string `json:"outputs"`
	CreditsUsed      float64  `json:"creditsUsed"`
	ProcessingTimeMs int64    `json:"processingTimeMs"`
}

// Generate runs generation for a task the caller submitted earlier. The call
// blocks until every attempt has finished.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBodySize)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.TaskID = strings.TrimSpace(req.TaskID)
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.TaskID == "" || req.Prompt == "" || req.Model == "" || req.AspectRatio == "" || req.NumOutputs == 0 {
		a.fail(w, r, fmt.Errorf("%w: missing required parameters", domain.ErrInvalidRequest), "generation failed")
		return
	}
	if _, err := a.authorizeTask(r.Context(), req.TaskID, userID); err != nil {
		a.fail(w, r, err, "generation failed")
		return
	}

	res, err := a.Generator.Run(r.Context(), imagegen.RunRequest{
		TaskID:      req.TaskID,
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		NumOutputs:  req.NumOutputs,
	})
	if err != nil {
		a.fail(w, r, err, "generation failed")
		return
	}
	a.json(w, http.StatusOK, generateResponse{
		Success:          true,
		TaskID:           res.TaskID,
		Outputs:          res.Outputs,
		CreditsUsed:      res.CreditsUsed,
		ProcessingTimeMs: res.ProcessingTimeMs,
	})
}
