// Package replicate submits image-to-image predictions to the Replicate API
// and waits for them to reach a terminal state.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"img2img/internal/domain/modelcfg"
)

const (
	DefaultBaseURL      = "https://api.replicate.com/v1"
	DefaultPollInterval = time.Second
	DefaultTimeout      = 120 * time.Second
	DefaultWaitSeconds  = 60
	DefaultOutputFormat = "jpg"

	maxErrorBody    = 4 << 10
	maxDownloadSize = 64 << 20
)

// Prediction statuses reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Options configures a Client.
type Options struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       zerolog.Logger
	PollInterval time.Duration
	Timeout      time.Duration
	// WaitSeconds is sent as the Prefer: wait=N hint on creation. Zero or
	// negative omits the header.
	WaitSeconds int
}

// Client talks to the predictions endpoint. It is safe for concurrent use.
type Client struct {
	token        string
	baseURL      string
	httpClient   *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration
	timeout      time.Duration
	waitSeconds  int
	now          func() time.Time
}

// NewClient builds a Client, filling unset options with defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		token:        strings.TrimSpace(opts.APIToken),
		baseURL:      strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		timeout:      opts.Timeout,
		waitSeconds:  opts.WaitSeconds,
		now:          time.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Prediction is the resolved result of a successful prediction.
type Prediction struct {
	ID        string
	OutputURL string
	// PredictTime is the provider-reported inference time in seconds, zero when absent.
	PredictTime float64
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Image             string  `json:"image"`
	Prompt            string  `json:"prompt"`
	Strength          float64 `json:"strength"`
	LoraScales        float64 `json:"lora_scales"`
	OutputFormat      string  `json:"output_format"`
	GuidanceScale     float64 `json:"guidance_scale"`
	OutputQuality     int     `json:"output_quality"`
	NumInferenceSteps int     `json:"num_inference_steps"`
}

type predictionResponse struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output"`
	Error   any             `json:"error"`
	Metrics struct {
		PredictTime *float64 `json:"predict_time"`
	} `json:"metrics"`
	URLs struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

func isTerminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCanceled
}

// SubmitPrediction creates a prediction for imageURL and prompt using cfg and
// blocks until it succeeds, fails, or the client timeout elapses. The timeout
// is measured from entry and covers creation and every poll.
func (c *Client) SubmitPrediction(ctx context.Context, cfg modelcfg.ModelConfig, imageURL, prompt, outputFormat string) (*Prediction, error) {
	if c.token == "" {
		return nil, ErrMissingAPIToken
	}
	if strings.TrimSpace(outputFormat) == "" {
		outputFormat = DefaultOutputFormat
	}

	parent := ctx
	ctx, cancel := context.WithDeadline(ctx, c.now().Add(c.timeout))
	defer cancel()

	body, err := json.Marshal(predictionRequest{
		Version: cfg.Version,
		Input: predictionInput{
			Image:             imageURL,
			Prompt:            prompt,
			Strength:          cfg.Strength,
			LoraScales:        cfg.LoraScale,
			OutputFormat:      outputFormat,
			GuidanceScale:     cfg.GuidanceScale,
			OutputQuality:     cfg.OutputQuality,
			NumInferenceSteps: cfg.InferenceSteps,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("replicate: marshal request: %w", err)
	}

	pred, err := c.create(ctx, body)
	if err != nil {
		return nil, c.contextError(parent, ctx, err)
	}
	log := c.logger.With().Str("prediction_id", pred.ID).Str("model", cfg.ID).Logger()
	log.Debug().Str("status", pred.Status).Msg("prediction created")

	if !isTerminal(pred.Status) {
		pollURL := pred.URLs.Get
		if pollURL == "" {
			pollURL = c.baseURL + "/predictions/" + pred.ID
		}
		pred, err = c.poll(ctx, pollURL, log)
		if err != nil {
			return nil, c.contextError(parent, ctx, err)
		}
	}
	return resolve(pred)
}

func (c *Client) create(ctx context.Context, body []byte) (*predictionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	if c.waitSeconds > 0 {
		req.Header.Set("Prefer", fmt.Sprintf("wait=%d", c.waitSeconds))
	}
	return c.do(req, "create")
}

func (c *Client) poll(ctx context.Context, url string, log zerolog.Logger) (*predictionResponse, error) {
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("replicate: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		pred, err := c.do(req, "poll")
		if err != nil {
			return nil, err
		}
		log.Debug().Int("poll", attempt).Str("status", pred.Status).Msg("prediction polled")
		if isTerminal(pred.Status) {
			return pred, nil
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) do(req *http.Request, op string) (*predictionResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("replicate: %s: decode response: %w", op, err)
	}
	return &pred, nil
}

// contextError maps a failure that happened while ctx was done. Expiry of
// the prediction deadline becomes ErrTimeout; cancellation of the caller's
// context is passed through.
func (c *Client) contextError(parent, ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

func resolve(pred *predictionResponse) (*Prediction, error) {
	switch pred.Status {
	case StatusSucceeded:
		out := firstOutput(pred.Output)
		if out == "" {
			return nil, ErrEmptyOutput
		}
		p := &Prediction{ID: pred.ID, OutputURL: out}
		if pred.Metrics.PredictTime != nil {
			p.PredictTime = *pred.Metrics.PredictTime
		}
		return p, nil
	case StatusFailed:
		return nil, &PredictionFailedError{ID: pred.ID, Message: errorMessage(pred.Error)}
	case StatusCanceled:
		return nil, ErrPredictionCanceled
	default:
		return nil, &UnexpectedStatusError{ID: pred.ID, Status: pred.Status}
	}
}

// firstOutput accepts either a single URL or a list of URLs.
func firstOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}

func errorMessage(v any) string {
	switch e := v.(type) {
	case string:
		if strings.TrimSpace(e) != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"]; ok {
			return fmt.Sprintf("%v", msg)
		}
	}
	return "Unknown error"
}

// Download fetches a prediction output. Output URLs are pre-signed, so no
// credentials are sent. Without a caller deadline the client timeout applies.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("replicate: download: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("replicate: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Op: "download", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("replicate: read download: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("replicate: download exceeds %d bytes", maxDownloadSize)
	}
	return data, nil
}
