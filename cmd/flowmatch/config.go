// config.go - TOML Run-Konfiguration
// Hauptfunktionen: defaultRunConfig, loadRunConfig
package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/7blacky7/flowmatch/flow"
)

// runConfig buendelt alle Modell- und Pipeline-Einstellungen eines Laufs
type runConfig struct {
	NumScales       int
	UpsampleFactor  int
	FeatureChannels int
	PatchSize       int
	Bidirectional   bool
	Checkpoint      string
	Scales          []flow.ScaleConfig
}

// fileConfig ist das TOML-Abbild von runConfig; nur gesetzte Schluessel
// ueberschreiben die Defaults
type fileConfig struct {
	NumScales       int    `toml:"num_scales"`
	UpsampleFactor  int    `toml:"upsample_factor"`
	FeatureChannels int    `toml:"feature_channels"`
	PatchSize       int    `toml:"patch_size"`
	Bidirectional   bool   `toml:"bidirectional"`
	Checkpoint      string `toml:"checkpoint"`

	Scales []scaleFileConfig `toml:"scales"`
}

type scaleFileConfig struct {
	AttnSplits int `toml:"attn_splits"`
	CorrRadius int `toml:"corr_radius"`
	PropRadius int `toml:"prop_radius"`
}

// defaultRunConfig entspricht dem Ein-Skalen-Setup mit globalem Matching
func defaultRunConfig() runConfig {
	return runConfig{
		NumScales:       1,
		UpsampleFactor:  8,
		FeatureChannels: 0, // 0 = aus Patch-Groesse abgeleitet (3*p*p)
		PatchSize:       8,
		Scales: []flow.ScaleConfig{
			{AttnSplits: 2, CorrRadius: -1, PropRadius: 0},
		},
	}
}

// loadRunConfig laedt eine TOML-Datei und legt sie ueber die Defaults
func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load run config: %w", err)
	}

	if meta.IsDefined("num_scales") {
		cfg.NumScales = raw.NumScales
	}
	if meta.IsDefined("upsample_factor") {
		cfg.UpsampleFactor = raw.UpsampleFactor
	}
	if meta.IsDefined("feature_channels") {
		cfg.FeatureChannels = raw.FeatureChannels
	}
	if meta.IsDefined("patch_size") {
		cfg.PatchSize = raw.PatchSize
	}
	if meta.IsDefined("bidirectional") {
		cfg.Bidirectional = raw.Bidirectional
	}
	if meta.IsDefined("checkpoint") {
		cfg.Checkpoint = raw.Checkpoint
	}
	if meta.IsDefined("scales") {
		cfg.Scales = make([]flow.ScaleConfig, len(raw.Scales))
		for i, s := range raw.Scales {
			cfg.Scales[i] = flow.ScaleConfig{
				AttnSplits: s.AttnSplits,
				CorrRadius: s.CorrRadius,
				PropRadius: s.PropRadius,
			}
		}
	}

	return cfg, cfg.validate()
}

func (c runConfig) validate() error {
	if c.NumScales <= 0 {
		return fmt.Errorf("num_scales must be positive, got %d", c.NumScales)
	}
	if c.UpsampleFactor <= 0 {
		return fmt.Errorf("upsample_factor must be positive, got %d", c.UpsampleFactor)
	}
	if c.PatchSize <= 0 {
		return fmt.Errorf("patch_size must be positive, got %d", c.PatchSize)
	}
	if len(c.Scales) != c.NumScales {
		return fmt.Errorf("got %d scale entries, want %d", len(c.Scales), c.NumScales)
	}
	return nil
}

// channels leitet die Feature-Kanalzahl ab, wenn keine konfiguriert ist
func (c runConfig) channels() int {
	if c.FeatureChannels > 0 {
		return c.FeatureChannels
	}
	return 3 * c.PatchSize * c.PatchSize
}

// inputMultiple gibt das Vielfache zurueck, auf das Eingabebilder skaliert
// werden muessen: Patch-Groesse mal groebster Downsampling-Faktor
func (c runConfig) inputMultiple() int {
	return c.PatchSize * (1 << (c.NumScales - 1))
}
