// Package modelcfg holds the static parameters of the supported
// image-to-image models.
package modelcfg

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// ErrInvalidModel is returned for identifiers outside the registry.
var ErrInvalidModel = errors.New("invalid model")

const (
	ModelMax      = "max"
	ModelStandard = "standard"
	ModelTurbo    = "turbo"
)

// ModelVersion is the pinned Replicate version shared by every model.
const ModelVersion = "prunaai/z-image-turbo-img2img:5c958e90e0f904240629ee35c69196e3bd790b5528c0696705ebdb1656871dd8"

// ModelConfig is the set of generation parameters for one model.
type ModelConfig struct {
	ID              string  `json:"id" yaml:"-"`
	Version         string  `json:"-" yaml:"version"`
	Strength        float64 `json:"strength" yaml:"strength"`
	LoraScale       float64 `json:"loraScale" yaml:"lora_scale"`
	GuidanceScale   float64 `json:"guidanceScale" yaml:"guidance_scale"`
	OutputQuality   int     `json:"outputQuality" yaml:"output_quality"`
	InferenceSteps  int     `json:"inferenceSteps" yaml:"inference_steps"`
	CreditsPerImage float64 `json:"creditsPerImage" yaml:"credits_per_image"`
}

var order = []string{ModelMax, ModelStandard, ModelTurbo}

func defaults() map[string]ModelConfig {
	return map[string]ModelConfig{
		ModelMax: {
			ID:              ModelMax,
			Version:         ModelVersion,
			Strength:        0.6,
			LoraScale:       -0.03,
			GuidanceScale:   0,
			OutputQuality:   80,
			InferenceSteps:  14,
			CreditsPerImage: 1.5,
		},
		ModelStandard: {
			ID:              ModelStandard,
			Version:         ModelVersion,
			Strength:        0.5,
			LoraScale:       -0.03,
			GuidanceScale:   0,
			OutputQuality:   70,
			InferenceSteps:  10,
			CreditsPerImage: 1.0,
		},
		ModelTurbo: {
			ID:              ModelTurbo,
			Version:         ModelVersion,
			Strength:        0.7,
			LoraScale:       -0.03,
			GuidanceScale:   0,
			OutputQuality:   60,
			InferenceSteps:  6,
			CreditsPerImage: 0.5,
		},
	}
}

// Registry maps model identifiers to their configuration. It is read-only
// after construction.
type Registry struct {
	models map[string]ModelConfig
}

// NewRegistry returns the built-in registry.
func NewRegistry() *Registry {
	return &Registry{models: defaults()}
}

// LoadRegistry returns the built-in registry with overrides from the YAML file
// at path applied. An empty path yields the defaults. The file is a mapping
// from model id to the fields to override:
//
//	turbo:
//	  inference_steps: 8
//	  credits_per_image: 0.6
func LoadRegistry(path string) (*Registry, error) {
	reg := NewRegistry()
	path = strings.TrimSpace(path)
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modelcfg: read %s: %w", path, err)
	}
	var overrides map[string]yaml.Node
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("modelcfg: parse %s: %w", path, err)
	}
	for rawID, node := range overrides {
		id := normalize(rawID)
		cfg, ok := reg.models[id]
		if !ok {
			return nil, fmt.Errorf("modelcfg: %w %q in %s", ErrInvalidModel, rawID, path)
		}
		// Decoding onto the existing value keeps fields the file omits.
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("modelcfg: decode %q: %w", rawID, err)
		}
		cfg.ID = id
		if err := validate(cfg); err != nil {
			return nil, err
		}
		reg.models[id] = cfg
	}
	return reg, nil
}

func validate(cfg ModelConfig) error {
	switch {
	case strings.TrimSpace(cfg.Version) == "":
		return fmt.Errorf("modelcfg: %s: version is required", cfg.ID)
	case cfg.Strength < 0 || cfg.Strength > 1:
		return fmt.Errorf("modelcfg: %s: strength must be within [0,1]", cfg.ID)
	case cfg.OutputQuality < 1 || cfg.OutputQuality > 100:
		return fmt.Errorf("modelcfg: %s: output_quality must be within [1,100]", cfg.ID)
	case cfg.InferenceSteps < 1:
		return fmt.Errorf("modelcfg: %s: inference_steps must be positive", cfg.ID)
	case cfg.CreditsPerImage < 0:
		return fmt.Errorf("modelcfg: %s: credits_per_image must not be negative", cfg.ID)
	}
	return nil
}

// Lookup returns the configuration for id. Identifiers are matched
// case-insensitively.
func (r *Registry) Lookup(id string) (ModelConfig, error) {
	cfg, ok := r.models[normalize(id)]
	if !ok {
		return ModelConfig{}, fmt.Errorf("%w: %q", ErrInvalidModel, id)
	}
	return cfg, nil
}

// Valid reports whether id names a known model.
func (r *Registry) Valid(id string) bool {
	_, ok := r.models[normalize(id)]
	return ok
}

// List returns every model ordered max, standard, turbo.
func (r *Registry) List() []ModelConfig {
	out := make([]ModelConfig, 0, len(order))
	for _, id := range order {
		out = append(out, r.models[id])
	}
	return out
}

// Normalize returns the canonical form of a model identifier.
func Normalize(id string) string {
	return normalize(id)
}

func normalize(id string) string {
	return cases.Fold().String(strings.TrimSpace(id))
}

// Credits returns the cost of n produced images, rounded to one decimal place.
func Credits(cfg ModelConfig, n int) float64 {
	return math.Round(cfg.CreditsPerImage*float64(n)*10) / 10
}
