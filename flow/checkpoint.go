// checkpoint.go - Laden von PyTorch-Checkpoints
// Hauptfunktionen: LoadCheckpoint, stateTensors, tensorData
//
// PyTorch-Checkpoints sind pickle-serialisierte state dicts, teils
// unter dem Schluessel "model" verschachtelt und teils mit "module."-Praefix
// (DataParallel). Nur die Gewichte der hier implementierten Komponenten
// werden uebernommen; Backbone- und Transformer-Gewichte werden verworfen.
package flow

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/7blacky7/flowmatch/ml"
)

// LoadCheckpoint laedt trainierte Gewichte aus einem PyTorch-Checkpoint in
// das Modell. Fehlt jeder passende Schluessel, schlaegt der Aufruf mit
// ErrCheckpoint fehl.
func (m *Model) LoadCheckpoint(ctx ml.Context, path string) error {
	raw, err := pytorch.Load(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	state, err := stateTensors(raw)
	if err != nil {
		return err
	}

	targets := map[string]*ml.Tensor{
		"feature_flow_attn.q_proj.weight": &m.FlowAttn.QProj.Weight,
		"feature_flow_attn.q_proj.bias":   &m.FlowAttn.QProj.Bias,
		"feature_flow_attn.k_proj.weight": &m.FlowAttn.KProj.Weight,
		"feature_flow_attn.k_proj.bias":   &m.FlowAttn.KProj.Bias,
		"upsampler.0.weight":              &m.Upsampler.Conv1.Weight,
		"upsampler.0.bias":                &m.Upsampler.Conv1.Bias,
		"upsampler.2.weight":              &m.Upsampler.Conv2.Weight,
		"upsampler.2.bias":                &m.Upsampler.Conv2.Bias,
	}

	var loaded int
	for name, t := range state {
		name = strings.TrimPrefix(name, "module.")

		dst, ok := targets[name]
		if !ok {
			slog.Debug("skipping checkpoint tensor", "name", name)
			continue
		}

		data, size, err := tensorData(t)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}

		if want := (*dst).Shape(); !slices.Equal(size, want) {
			return fmt.Errorf("tensor %q: shape %v does not match %v", name, size, want)
		}

		*dst = ctx.FromFloats(data, size...)
		loaded++
	}

	if loaded == 0 {
		return ErrCheckpoint
	}

	slog.Info("checkpoint loaded", "path", path, "tensors", loaded)
	return nil
}

// stateTensors entpackt das state dict aus dem geladenen Pickle-Objekt.
func stateTensors(raw any) (map[string]*pytorch.Tensor, error) {
	// Checkpoints nach dem Muster {"model": state_dict, ...} auspacken
	if d, ok := raw.(*types.Dict); ok {
		if inner, ok := d.Get("model"); ok {
			raw = inner
		}
	}

	out := make(map[string]*pytorch.Tensor)

	add := func(k, v any) {
		name, ok := k.(string)
		if !ok {
			return
		}
		if t, ok := v.(*pytorch.Tensor); ok {
			out[name] = t
		}
	}

	switch d := raw.(type) {
	case *types.Dict:
		for _, entry := range *d {
			add(entry.Key, entry.Value)
		}
	case *types.OrderedDict:
		for k, entry := range d.Map {
			add(k, entry.Value)
		}
	default:
		return nil, fmt.Errorf("flow: unsupported checkpoint layout %T", raw)
	}

	return out, nil
}

// tensorData extrahiert Daten und Form eines Checkpoint-Tensors als float32.
func tensorData(t *pytorch.Tensor) ([]float32, []int, error) {
	n := 1
	for _, d := range t.Size {
		n *= d
	}

	offset := int(t.StorageOffset)

	switch src := t.Source.(type) {
	case *pytorch.FloatStorage:
		return slices.Clone(src.Data[offset : offset+n]), slices.Clone(t.Size), nil
	case *pytorch.HalfStorage:
		return slices.Clone(src.Data[offset : offset+n]), slices.Clone(t.Size), nil
	case *pytorch.DoubleStorage:
		data := make([]float32, n)
		for i, v := range src.Data[offset : offset+n] {
			data[i] = float32(v)
		}
		return data, slices.Clone(t.Size), nil
	default:
		return nil, nil, fmt.Errorf("flow: unsupported storage type %T", t.Source)
	}
}
