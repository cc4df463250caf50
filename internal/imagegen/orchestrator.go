// Package imagegen drives a task through N sequential image-to-image
// attempts and records whatever they produce.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"img2img/internal/domain"
	"img2img/internal/domain/modelcfg"
)

const (
	DefaultAttemptTimeout  = 120 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
	outputFormat           = "jpg"

	msgNoInput          = "No input images found"
	msgGenerationFailed = "Failed to generate any images"
)

// Orchestrator runs generation for one task at a time per call. Calls for
// different tasks may run concurrently.
type Orchestrator struct {
	predictor       Predictor
	tasks           TaskStore
	blobs           domain.BlobStore
	models          *modelcfg.Registry
	logger          zerolog.Logger
	attemptTimeout  time.Duration
	downloadTimeout time.Duration
	now             func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAttemptTimeout bounds each remote prediction.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.attemptTimeout = d
		}
	}
}

// WithDownloadTimeout bounds fetching a finished prediction's output.
func WithDownloadTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.downloadTimeout = d
		}
	}
}

// WithClock replaces the wall clock used for processing time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(predictor Predictor, tasks TaskStore, blobs domain.BlobStore, models *modelcfg.Registry, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		predictor:       predictor,
		tasks:           tasks,
		blobs:           blobs,
		models:          models,
		logger:          logger,
		attemptTimeout:  DefaultAttemptTimeout,
		downloadTimeout: DefaultDownloadTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run generates req.NumOutputs images for req.TaskID. Individual attempt
// failures are tolerated; the task fails only when every attempt fails.
// The returned error wraps domain.ErrNoInput or domain.ErrGenerationFailed
// when the task was marked failed.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	start := o.now()

	cfg, err := o.models.Lookup(req.Model)
	if err != nil {
		return nil, err
	}
	if !modelcfg.ValidNumOutputs(req.NumOutputs) {
		return nil, fmt.Errorf("%w: numOutputs must be 1, 2 or 4", domain.ErrInvalidRequest)
	}
	if req.AspectRatio != "" && !modelcfg.ValidAspectRatio(req.AspectRatio) {
		return nil, fmt.Errorf("%w: unsupported aspect ratio %q", domain.ErrInvalidRequest, req.AspectRatio)
	}

	log := o.logger.With().Str("task_id", req.TaskID).Str("model", cfg.ID).Logger()

	if err := o.tasks.SetStatus(ctx, req.TaskID, domain.StatusUpdate{Status: domain.TaskStatusProcessing}); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	// Terminal status writes outlive caller cancellation.
	finalCtx := context.WithoutCancel(ctx)

	inputs, err := o.tasks.ListInputs(ctx, req.TaskID)
	if err != nil {
		o.fail(finalCtx, log, req.TaskID, err.Error())
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	if len(inputs) == 0 {
		o.fail(finalCtx, log, req.TaskID, msgNoInput)
		return nil, domain.ErrNoInput
	}
	sourceURL := o.blobs.PublicURL(inputs[0].StorageKey)

	var (
		outputs     []string
		predictTime float64
	)
	for i := 0; i < req.NumOutputs; i++ {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Int("attempt", i).Msg("generation interrupted")
			break
		}
		publicURL, seconds, err := o.attempt(ctx, cfg, req, sourceURL, i)
		if err != nil {
			log.Error().Err(err).Int("attempt", i).Msg("generation attempt failed")
			if recErr := o.tasks.RecordAttemptFailure(finalCtx, req.TaskID, i, err.Error()); recErr != nil {
				log.Warn().Err(recErr).Int("attempt", i).Msg("record attempt failure")
			}
			continue
		}
		outputs = append(outputs, publicURL)
		predictTime += seconds
	}

	if len(outputs) == 0 {
		o.fail(finalCtx, log, req.TaskID, msgGenerationFailed)
		return nil, domain.ErrGenerationFailed
	}

	credits := modelcfg.Credits(cfg, len(outputs))
	elapsed := o.now().Sub(start).Milliseconds()
	if err := o.tasks.SetStatus(finalCtx, req.TaskID, domain.StatusUpdate{
		Status:           domain.TaskStatusCompleted,
		ProcessingTimeMs: &elapsed,
		CreditsUsed:      &credits,
	}); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}

	log.Info().
		Int("requested", req.NumOutputs).
		Int("produced", len(outputs)).
		Float64("credits", credits).
		Float64("predict_seconds", predictTime).
		Int64("processing_ms", elapsed).
		Msg("generation completed")

	return &RunResult{
		TaskID:           req.TaskID,
		Outputs:          outputs,
		CreditsUsed:      credits,
		ProcessingTimeMs: elapsed,
	}, nil
}

// attempt produces and stores the image for ordinal i. The prediction and the
// output download each run under their own deadline.
func (o *Orchestrator) attempt(ctx context.Context, cfg modelcfg.ModelConfig, req RunRequest, sourceURL string, i int) (string, float64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	pred, err := o.predictor.SubmitPrediction(attemptCtx, cfg, sourceURL, req.Prompt, outputFormat)
	cancel()
	if err != nil {
		return "", 0, err
	}

	downloadCtx, cancel := context.WithTimeout(ctx, o.downloadTimeout)
	data, err := o.predictor.Download(downloadCtx, pred.OutputURL)
	cancel()
	if err != nil {
		return "", 0, err
	}
	key, err := o.blobs.Upload(ctx, data, fmt.Sprintf("output-%d.%s", i, outputFormat), ContentTypeFromURL(pred.OutputURL), domain.OutputsKeyPrefix+req.TaskID)
	if err != nil {
		return "", 0, fmt.Errorf("upload output: %w", err)
	}
	if _, err := o.tasks.AddOutput(ctx, req.TaskID, key, i); err != nil {
		return "", 0, fmt.Errorf("record output: %w", err)
	}
	return o.blobs.PublicURL(key), pred.PredictTime, nil
}

func (o *Orchestrator) fail(ctx context.Context, log zerolog.Logger, taskID, message string) {
	msg := message
	if err := o.tasks.SetStatus(ctx, taskID, domain.StatusUpdate{Status: domain.TaskStatusFailed, ErrorMessage: &msg}); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			log.Error().Err(err).Msg("mark task failed")
		}
	}
}

// ContentTypeFromURL infers an image MIME type from the URL's extension,
// defaulting to JPEG.
func ContentTypeFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	}
	return "image/jpeg"
}
