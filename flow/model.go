// model.go - Modell und Skalen-Orchestrierung
// Hauptfunktionen: New, Forward, EstimateFlow
//
// Forward treibt die coarse-to-fine Schleife: pro Skala wird die laufende
// Flow-Schaetzung hochskaliert, feature1 damit gewarpt, per Korrelation ein
// (Residual-)Flow vorhergesagt, akkumuliert und per Attention propagiert.
// Zwei stop-gradient Grenzen (Detach) sind Teil des Vertrags: vor dem Warp
// und vor der Propagation erhaelt der Konsument eine frische Kopie des
// Flows, nie eine View.
package flow

import (
	"fmt"
	"log/slog"

	"github.com/7blacky7/flowmatch/ml"
)

// Model buendelt die gelernten Komponenten des Flow-Schaetzers.
type Model struct {
	FlowAttn  *FlowAttention
	Upsampler *ConvexUpsampler

	*options
}

// New erstellt ein Modell mit Null-Gewichten; LoadCheckpoint laedt trainierte
// Parameter nach.
func New(ctx ml.Context, opts ...Option) *Model {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Model{
		FlowAttn:  newFlowAttention(ctx, o.featureChannels),
		Upsampler: newConvexUpsampler(ctx, o.featureChannels, o.upsampleFactor),
		options:   o,
	}

	if m.matcher == nil {
		m.matcher = correlationMatcher{}
	}
	if m.warper == nil {
		m.warper = flowWarper{}
	}
	if m.propagator == nil {
		m.propagator = m.FlowAttn
	}

	return m
}

// NumScales gibt die konfigurierte Anzahl der Refinement-Skalen zurueck.
func (m *Model) NumScales() int {
	return m.numScales
}

// UpsampleFactor gibt den Basis-Upsample-Faktor der feinsten Skala zurueck.
func (m *Model) UpsampleFactor() int {
	return m.upsampleFactor
}

// Forward berechnet die Vorhersage-Sequenz fuer ein Feature-Paar.
//
// Die Feature-Listen sind grob nach fein geordnet; configs muss genau
// numScales Eintraege haben, sonst bricht der Aufruf vor jeder
// Tensor-Berechnung mit ErrScaleConfig ab. Pro nicht-letzter Skala werden im
// Trainingsmodus zwei bilineare Zwischen-Vorhersagen angehaengt, fuer die
// letzte Skala immer genau zwei konvexe Upsamples (vor und nach der
// Propagation) - unabhaengig vom Trainingsmodus. Inferenz-Aufrufer nehmen
// den letzten Eintrag.
func (m *Model) Forward(ctx ml.Context, feature0List, feature1List []ml.Tensor, configs []ScaleConfig, bidir bool) ([]ml.Tensor, error) {
	if len(configs) != m.numScales {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrScaleConfig, len(configs), m.numScales)
	}
	if len(feature0List) < m.numScales || len(feature1List) < m.numScales {
		return nil, fmt.Errorf("%w: got %d/%d, want >= %d", ErrFeatureScales, len(feature0List), len(feature1List), m.numScales)
	}

	var preds []ml.Tensor
	var flow ml.Tensor

	for s := 0; s < m.numScales; s++ {
		feature0, feature1 := feature0List[s], feature1List[s]
		cfg := configs[s]

		if bidir && s > 0 {
			// Beide Richtungen als ein Batch: (f0‖f1) gegen (f1‖f0)
			feature0, feature1 = feature0.Concat(ctx, feature1, 0), feature1.Concat(ctx, feature0, 0)
		}

		upFactor := m.upsampleFactor * (1 << (m.numScales - 1 - s))

		if s > 0 {
			// Aufloesung verdoppeln, Versatzwerte mitskalieren
			flow = upsampleBilinear(ctx, flow, 2)
		}

		if flow != nil {
			flow = flow.Detach(ctx)
			feature1 = m.warper.Warp(ctx, feature1, flow)
		}

		if m.transformer != nil {
			feature0, feature1 = m.transformer.Enhance(ctx, feature0, feature1, cfg.AttnSplits)
		}

		var pred ml.Tensor
		if cfg.CorrRadius == -1 {
			pred = m.matcher.Global(ctx, feature0, feature1, bidir)
		} else {
			pred = m.matcher.Local(ctx, feature0, feature1, cfg.CorrRadius)
		}

		// Erste Skala: Vorhersage ist der Flow; danach Residual
		if flow != nil {
			flow = flow.Add(ctx, pred)
		} else {
			flow = pred
		}

		if bidir && s == 0 {
			// Propagation und Upsampler sehen beide Richtungen: feature0
			// fuer vorwaerts, feature1 fuer rueckwaerts
			feature0 = feature0.Concat(ctx, feature1, 0)
		}

		if m.training && s < m.numScales-1 {
			preds = append(preds, upsampleBilinear(ctx, flow, upFactor))
		}
		if s == m.numScales-1 {
			preds = append(preds, m.Upsampler.Forward(ctx, flow, feature0))
		}

		flow = m.propagator.Propagate(ctx, feature0, flow.Detach(ctx), cfg.PropRadius > 0, cfg.PropRadius)

		if m.training && s < m.numScales-1 {
			preds = append(preds, upsampleBilinear(ctx, flow, upFactor))
		}
		if s == m.numScales-1 {
			preds = append(preds, m.Upsampler.Forward(ctx, flow, feature0))
		}

		slog.Debug("flow scale refined", "scale", s, "upsample_factor", upFactor,
			"corr_radius", cfg.CorrRadius, "prop_radius", cfg.PropRadius)
	}

	return preds, nil
}

// EstimateFlow berechnet den Fluss fuer ein Bildpaar (N, 3, H, W) ueber den
// konfigurierten Feature-Extraktor und gibt die volle Vorhersage-Sequenz
// zurueck; der letzte Eintrag ist das Endergebnis.
func (m *Model) EstimateFlow(ctx ml.Context, img0, img1 ml.Tensor, configs []ScaleConfig, bidir bool) ([]ml.Tensor, error) {
	if m.extractor == nil {
		return nil, ErrNoExtractor
	}

	feature0List, feature1List, err := m.extractor.Extract(ctx, img0, img1)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	return m.Forward(ctx, feature0List, feature1List, configs, bidir)
}
