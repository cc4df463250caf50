package modelcfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLookupDefaults(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		id       string
		strength float64
		quality  int
		steps    int
		credits  float64
	}{
		{ModelMax, 0.6, 80, 14, 1.5},
		{ModelStandard, 0.5, 70, 10, 1.0},
		{ModelTurbo, 0.7, 60, 6, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			cfg, err := reg.Lookup(tc.id)
			if err != nil {
				t.Fatalf("Lookup(%q) error: %v", tc.id, err)
			}
			if cfg.Strength != tc.strength || cfg.OutputQuality != tc.quality || cfg.InferenceSteps != tc.steps || cfg.CreditsPerImage != tc.credits {
				t.Fatalf("unexpected config: %+v", cfg)
			}
			if cfg.LoraScale != -0.03 || cfg.GuidanceScale != 0 {
				t.Fatalf("unexpected lora/guidance: %+v", cfg)
			}
			if cfg.Version != ModelVersion {
				t.Fatalf("version = %q", cfg.Version)
			}
		})
	}
}

func TestLookupNormalizesIdentifier(t *testing.T) {
	cfg, err := NewRegistry().Lookup("  TURBO ")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if cfg.ID != ModelTurbo {
		t.Fatalf("ID = %q, want turbo", cfg.ID)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := NewRegistry().Lookup("ultra")
	if !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestListOrder(t *testing.T) {
	list := NewRegistry().List()
	want := []string{ModelMax, ModelStandard, ModelTurbo}
	if len(list) != len(want) {
		t.Fatalf("len = %d", len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("list[%d] = %q, want %q", i, list[i].ID, id)
		}
	}
}

func TestCredits(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		model string
		n     int
		want  float64
	}{
		{ModelMax, 3, 4.5},
		{ModelMax, 4, 6.0},
		{ModelStandard, 2, 2.0},
		{ModelTurbo, 1, 0.5},
		{ModelTurbo, 3, 1.5},
	}
	for _, tc := range tests {
		cfg, _ := reg.Lookup(tc.model)
		if got := Credits(cfg, tc.n); got != tc.want {
			t.Fatalf("Credits(%s, %d) = %v, want %v", tc.model, tc.n, got, tc.want)
		}
	}
}

func TestLoadRegistryOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	body := "turbo:\n  inference_steps: 8\n  credits_per_image: 0.6\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry error: %v", err)
	}
	cfg, _ := reg.Lookup(ModelTurbo)
	if cfg.InferenceSteps != 8 || cfg.CreditsPerImage != 0.6 {
		t.Fatalf("override not applied: %+v", cfg)
	}
	if cfg.Strength != 0.7 || cfg.Version != ModelVersion {
		t.Fatalf("untouched fields changed: %+v", cfg)
	}
	if other, _ := reg.Lookup(ModelMax); other.InferenceSteps != 14 {
		t.Fatalf("max changed: %+v", other)
	}
}

func TestLoadRegistryRejectsUnknownModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte("ultra:\n  inference_steps: 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(path); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestLoadRegistryEmptyPath(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry error: %v", err)
	}
	if !reg.Valid("standard") {
		t.Fatal("expected defaults")
	}
}

func TestAspectRatios(t *testing.T) {
	for _, ratio := range AspectRatios() {
		if !ValidAspectRatio(ratio) {
			t.Fatalf("ratio %q should be valid", ratio)
		}
	}
	if ValidAspectRatio("5:4") {
		t.Fatal("5:4 should be invalid")
	}
	if d, ok := Dimensions("16:9"); !ok || d.Width != 1344 || d.Height != 768 {
		t.Fatalf("Dimensions(16:9) = %+v %v", d, ok)
	}
}

func TestValidNumOutputs(t *testing.T) {
	for n, want := range map[int]bool{0: false, 1: true, 2: true, 3: false, 4: true, 5: false} {
		if got := ValidNumOutputs(n); got != want {
			t.Fatalf("ValidNumOutputs(%d) = %v", n, got)
		}
	}
}
