// model_test.go - Tests fuer die Skalen-Orchestrierung
package flow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/flowmatch/ml"
	_ "github.com/7blacky7/flowmatch/ml/backend/cpu"
)

func newTestContext(t *testing.T) ml.Context {
	t.Helper()

	backend, err := ml.NewBackend("cpu", ml.BackendParams{NumThreads: 1})
	if err != nil {
		t.Fatalf("Backend erstellen fehlgeschlagen: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	return backend.NewContext()
}

// constantMatcher liefert ein konstantes Flow-Feld in Eingabe-Aufloesung
type constantMatcher struct {
	value float32
}

func (m constantMatcher) constant(ctx ml.Context, b, h, w int) ml.Tensor {
	data := make([]float32, b*2*h*w)
	for i := range data {
		data[i] = m.value
	}
	return ctx.FromFloats(data, b, 2, h, w)
}

func (m constantMatcher) Global(ctx ml.Context, feature0, feature1 ml.Tensor, bidir bool) ml.Tensor {
	b := feature0.Dim(0)
	if bidir {
		b *= 2
	}
	return m.constant(ctx, b, feature0.Dim(2), feature0.Dim(3))
}

func (m constantMatcher) Local(ctx ml.Context, feature0, feature1 ml.Tensor, radius int) ml.Tensor {
	return m.constant(ctx, feature0.Dim(0), feature0.Dim(2), feature0.Dim(3))
}

// recordingPropagator gibt den Flow unveraendert zurueck und merkt sich jede
// uebergebene Kopie
type recordingPropagator struct {
	flows [][]float32
}

func (p *recordingPropagator) Propagate(ctx ml.Context, feature, flow ml.Tensor, localWindow bool, radius int) ml.Tensor {
	p.flows = append(p.flows, flow.Floats())
	return flow
}

// identityWarper laesst feature1 unveraendert
type identityWarper struct{}

func (identityWarper) Warp(ctx ml.Context, feature, flow ml.Tensor) ml.Tensor {
	return feature
}

// testFeatures baut Null-Feature-Pyramiden, grob nach fein, feinste Skala
// mit Aufloesung h x w
func testFeatures(ctx ml.Context, numScales, b, c, h, w int) ([]ml.Tensor, []ml.Tensor) {
	f0 := make([]ml.Tensor, numScales)
	f1 := make([]ml.Tensor, numScales)
	for s := 0; s < numScales; s++ {
		down := 1 << (numScales - 1 - s)
		f0[s] = ctx.Zeros(ml.DTypeF32, b, c, h/down, w/down)
		f1[s] = ctx.Zeros(ml.DTypeF32, b, c, h/down, w/down)
	}
	return f0, f1
}

func TestForwardConfigMismatch(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	m := New(ctx, WithNumScales(2), WithFeatureChannels(4))
	f0, f1 := testFeatures(ctx, 2, 1, 4, 4, 4)

	// Nur eine Konfiguration fuer zwei Skalen
	_, err := m.Forward(ctx, f0, f1, []ScaleConfig{{CorrRadius: -1}}, false)
	if !errors.Is(err, ErrScaleConfig) {
		t.Errorf("Fehler = %v, erwartet ErrScaleConfig", err)
	}
}

func TestForwardFeatureScalesMismatch(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	m := New(ctx, WithNumScales(2), WithFeatureChannels(4))
	f0, f1 := testFeatures(ctx, 1, 1, 4, 2, 2)

	configs := []ScaleConfig{{CorrRadius: -1}, {CorrRadius: 1}}
	_, err := m.Forward(ctx, f0, f1, configs, false)
	if !errors.Is(err, ErrFeatureScales) {
		t.Errorf("Fehler = %v, erwartet ErrFeatureScales", err)
	}
}

func TestForwardPredictionCount(t *testing.T) {
	cases := []struct {
		name      string
		numScales int
		training  bool
		wantPreds int
	}{
		{"eine skala inferenz", 1, false, 2},
		{"eine skala training", 1, true, 2},
		{"zwei skalen inferenz", 2, false, 2},
		{"zwei skalen training", 2, true, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newTestContext(t)
			defer ctx.Close()

			m := New(ctx,
				WithNumScales(tc.numScales),
				WithUpsampleFactor(2),
				WithFeatureChannels(4),
				WithTraining(tc.training),
				WithMatcher(constantMatcher{value: 1}),
				WithWarper(identityWarper{}),
				WithPropagator(&recordingPropagator{}),
			)

			f0, f1 := testFeatures(ctx, tc.numScales, 1, 4, 4, 4)

			configs := make([]ScaleConfig, tc.numScales)
			for i := range configs {
				configs[i] = ScaleConfig{CorrRadius: -1}
			}

			preds, err := m.Forward(ctx, f0, f1, configs, false)
			if err != nil {
				t.Fatalf("Forward fehlgeschlagen: %v", err)
			}

			if len(preds) != tc.wantPreds {
				t.Fatalf("Anzahl Vorhersagen = %d, erwartet %d", len(preds), tc.wantPreds)
			}

			// Jede Vorhersage liegt in voller Aufloesung vor
			want := []int{1, 2, 8, 8}
			for i, p := range preds {
				if diff := cmp.Diff(want, p.Shape()); diff != "" {
					t.Errorf("Vorhersage %d Shape (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestForwardResidualAccumulation(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	prop := &recordingPropagator{}
	m := New(ctx,
		WithNumScales(2),
		WithUpsampleFactor(2),
		WithFeatureChannels(4),
		WithMatcher(constantMatcher{value: 2}),
		WithWarper(identityWarper{}),
		WithPropagator(prop),
	)

	f0, f1 := testFeatures(ctx, 2, 1, 4, 4, 4)
	configs := []ScaleConfig{{CorrRadius: -1}, {CorrRadius: 1}}

	if _, err := m.Forward(ctx, f0, f1, configs, false); err != nil {
		t.Fatalf("Forward fehlgeschlagen: %v", err)
	}

	if len(prop.flows) != 2 {
		t.Fatalf("Propagator-Aufrufe = %d, erwartet 2", len(prop.flows))
	}

	// Skala 0: Vorhersage 2; Skala 1: bilinear verdoppelt (4) plus Residual 2
	for i, v := range prop.flows[0] {
		if v != 2 {
			t.Fatalf("Skala 0 Flow[%d] = %f, erwartet 2", i, v)
		}
	}
	for i, v := range prop.flows[1] {
		if v != 6 {
			t.Fatalf("Skala 1 Flow[%d] = %f, erwartet 6", i, v)
		}
	}
}

func TestForwardBidirectionalDoublesBatch(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	m := New(ctx, WithUpsampleFactor(2), WithFeatureChannels(4))

	f0 := []ml.Tensor{ctx.Arange(0, 16, 1, ml.DTypeF32).Reshape(ctx, 1, 4, 2, 2)}
	f1 := []ml.Tensor{ctx.Arange(16, 32, 1, ml.DTypeF32).Reshape(ctx, 1, 4, 2, 2)}

	preds, err := m.Forward(ctx, f0, f1, []ScaleConfig{{CorrRadius: -1}}, true)
	if err != nil {
		t.Fatalf("Forward fehlgeschlagen: %v", err)
	}

	final := preds[len(preds)-1]
	want := []int{2, 2, 4, 4}
	if diff := cmp.Diff(want, final.Shape()); diff != "" {
		t.Errorf("Finale Shape (-want +got):\n%s", diff)
	}
}

func TestForwardIsIdempotent(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	m := New(ctx, WithUpsampleFactor(2), WithFeatureChannels(4))

	f0 := []ml.Tensor{ctx.Arange(0, 16, 1, ml.DTypeF32).Scale(ctx, 0.1).Reshape(ctx, 1, 4, 2, 2)}
	f1 := []ml.Tensor{ctx.Arange(8, 24, 1, ml.DTypeF32).Scale(ctx, 0.1).Reshape(ctx, 1, 4, 2, 2)}
	configs := []ScaleConfig{{CorrRadius: -1}}

	first, err := m.Forward(ctx, f0, f1, configs, false)
	if err != nil {
		t.Fatalf("Forward fehlgeschlagen: %v", err)
	}
	second, err := m.Forward(ctx, f0, f1, configs, false)
	if err != nil {
		t.Fatalf("Zweiter Forward fehlgeschlagen: %v", err)
	}

	for i := range first {
		if diff := cmp.Diff(first[i].Floats(), second[i].Floats()); diff != "" {
			t.Errorf("Vorhersage %d nicht deterministisch (-first +second):\n%s", i, diff)
		}
	}
}

func TestEstimateFlowRequiresExtractor(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	m := New(ctx, WithFeatureChannels(4))

	img := ctx.Zeros(ml.DTypeF32, 1, 3, 16, 16)
	_, err := m.EstimateFlow(ctx, img, img, []ScaleConfig{{CorrRadius: -1}}, false)
	if !errors.Is(err, ErrNoExtractor) {
		t.Errorf("Fehler = %v, erwartet ErrNoExtractor", err)
	}
}

func TestEstimateFlowWithPatchExtractor(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	extractor := &PatchExtractor{PatchSize: 4, NumScales: 1}
	m := New(ctx,
		WithUpsampleFactor(4),
		WithFeatureChannels(extractor.Channels()),
		WithExtractor(extractor),
	)

	img0 := ctx.Arange(0, 3*16*16, 1, ml.DTypeF32).Scale(ctx, 1.0/768).Reshape(ctx, 1, 3, 16, 16)
	img1 := img0.Duplicate(ctx)

	preds, err := m.EstimateFlow(ctx, img0, img1, []ScaleConfig{{CorrRadius: -1}}, false)
	if err != nil {
		t.Fatalf("EstimateFlow fehlgeschlagen: %v", err)
	}

	final := preds[len(preds)-1]
	want := []int{1, 2, 16, 16}
	if diff := cmp.Diff(want, final.Shape()); diff != "" {
		t.Errorf("Finale Shape (-want +got):\n%s", diff)
	}
}
