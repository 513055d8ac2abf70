// config_test.go - Tests fuer die TOML Run-Konfiguration
package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/flowmatch/flow"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Config schreiben fehlgeschlagen: %v", err)
	}
	return path
}

func TestLoadRunConfigOverlay(t *testing.T) {
	path := writeConfig(t, `
num_scales = 2
bidirectional = true

[[scales]]
attn_splits = 2
corr_radius = -1
prop_radius = 0

[[scales]]
attn_splits = 8
corr_radius = 4
prop_radius = 1
`)

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("loadRunConfig fehlgeschlagen: %v", err)
	}

	if cfg.NumScales != 2 {
		t.Errorf("NumScales = %d, erwartet 2", cfg.NumScales)
	}
	if !cfg.Bidirectional {
		t.Error("Bidirectional = false, erwartet true")
	}

	// Nicht gesetzte Schluessel behalten ihre Defaults
	if cfg.UpsampleFactor != 8 {
		t.Errorf("UpsampleFactor = %d, erwartet Default 8", cfg.UpsampleFactor)
	}
	if cfg.PatchSize != 8 {
		t.Errorf("PatchSize = %d, erwartet Default 8", cfg.PatchSize)
	}

	want := []flow.ScaleConfig{
		{AttnSplits: 2, CorrRadius: -1, PropRadius: 0},
		{AttnSplits: 8, CorrRadius: 4, PropRadius: 1},
	}
	if diff := cmp.Diff(want, cfg.Scales); diff != "" {
		t.Errorf("Scales (-want +got):\n%s", diff)
	}
}

func TestLoadRunConfigRejectsScaleMismatch(t *testing.T) {
	path := writeConfig(t, `
num_scales = 2

[[scales]]
corr_radius = -1
`)

	if _, err := loadRunConfig(path); err == nil {
		t.Error("loadRunConfig sollte unpassende Skalen-Anzahl ablehnen")
	}
}

func TestLoadRunConfigRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `upsample_factor = 0`)

	if _, err := loadRunConfig(path); err == nil {
		t.Error("loadRunConfig sollte upsample_factor = 0 ablehnen")
	}
}

func TestRunConfigDerivedValues(t *testing.T) {
	cfg := defaultRunConfig()

	// 3 * 8 * 8 Patch-Pixel
	if got := cfg.channels(); got != 192 {
		t.Errorf("channels = %d, erwartet 192", got)
	}
	if got := cfg.inputMultiple(); got != 8 {
		t.Errorf("inputMultiple = %d, erwartet 8", got)
	}

	cfg.FeatureChannels = 128
	if got := cfg.channels(); got != 128 {
		t.Errorf("channels = %d, erwartet 128", got)
	}

	cfg.NumScales = 3
	if got := cfg.inputMultiple(); got != 32 {
		t.Errorf("inputMultiple = %d, erwartet 32", got)
	}
}
