// Package flow - Functional Options und Skalen-Konfiguration.
//
// Diese Datei enthaelt:
// - ScaleConfig: Per-Skala Parameter des Refinement-Loops
// - options Struct: Interne Konfigurationsstruktur
// - defaultOptions: Standard-Konfiguration
// - WithNumScales, WithUpsampleFactor, etc.: Functional Options
package flow

// ============================================================================
// Skalen-Konfiguration
// ============================================================================

// ScaleConfig buendelt die Parameter einer Refinement-Skala.
// Frueher drei parallele Listen; als Struct einmal beim Aufruf validiert.
type ScaleConfig struct {
	// AttnSplits ist die Fensteraufteilung des optionalen Feature-Transformers.
	AttnSplits int

	// CorrRadius begrenzt das Korrelations-Fenster; -1 bedeutet globales Matching.
	CorrRadius int

	// PropRadius begrenzt das Propagations-Fenster; 0 bedeutet globale Attention.
	PropRadius int
}

// ============================================================================
// Options
// ============================================================================

// Option ist eine funktionale Option fuer New.
type Option func(*options)

// options speichert die Modell-Konfiguration.
type options struct {
	numScales       int
	upsampleFactor  int
	featureChannels int
	training        bool

	extractor   FeatureExtractor
	transformer Transformer
	matcher     CorrelationMatcher
	warper      Warper
	propagator  Propagator
}

// defaultOptions gibt die Standard-Konfiguration zurueck.
func defaultOptions() *options {
	return &options{
		numScales:       1,
		upsampleFactor:  8,
		featureChannels: 128,
	}
}

// WithNumScales setzt die Anzahl der Refinement-Skalen.
func WithNumScales(n int) Option {
	return func(o *options) {
		o.numScales = n
	}
}

// WithUpsampleFactor setzt den Basis-Upsample-Faktor der feinsten Skala.
func WithUpsampleFactor(f int) Option {
	return func(o *options) {
		o.upsampleFactor = f
	}
}

// WithFeatureChannels setzt die Kanalzahl D der Feature-Maps.
func WithFeatureChannels(c int) Option {
	return func(o *options) {
		o.featureChannels = c
	}
}

// WithTraining aktiviert die Zwischen-Vorhersagen fuer die Supervision.
func WithTraining(t bool) Option {
	return func(o *options) {
		o.training = t
	}
}

// WithExtractor setzt den Feature-Extraktor fuer EstimateFlow.
func WithExtractor(e FeatureExtractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// WithTransformer setzt den optionalen Feature-Transformer, der vor dem
// Matching auf beide Feature-Maps angewendet wird.
func WithTransformer(t Transformer) Option {
	return func(o *options) {
		o.transformer = t
	}
}

// WithMatcher ersetzt den Korrelations-Matcher.
func WithMatcher(m CorrelationMatcher) Option {
	return func(o *options) {
		o.matcher = m
	}
}

// WithWarper ersetzt den Backward-Warper.
func WithWarper(w Warper) Option {
	return func(o *options) {
		o.warper = w
	}
}

// WithPropagator ersetzt den Flow-Propagator.
func WithPropagator(p Propagator) Option {
	return func(o *options) {
		o.propagator = p
	}
}
