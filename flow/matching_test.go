// matching_test.go - Tests fuer globales und lokales Korrelations-Matching
package flow

import (
	"math"
	"testing"

	"github.com/7blacky7/flowmatch/ml"
)

// oneHotFeatures baut Feature-Maps mit Einheitsvektoren pro Position:
// Position p bekommt den um shift Positionen versetzten Basisvektor mit
// Betrag magnitude, so dass die Korrelation scharf lokalisiert ist.
func oneHotFeatures(ctx ml.Context, h, w, shift int, magnitude float32) ml.Tensor {
	hw := h * w
	data := make([]float32, hw*hw) // (1, hw Kanaele, h, w)
	for p := 0; p < hw; p++ {
		src := p - shift
		if src >= 0 && src < hw {
			data[src*hw+p] = magnitude
		}
	}
	return ctx.FromFloats(data, 1, hw, h, w)
}

func TestGlobalCorrelationIdentity(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	f := oneHotFeatures(ctx, 2, 2, 0, 10)

	flow := globalCorrelationSoftmax(ctx, f, f, false).Floats()

	// Jede Position matcht sich selbst: Flow verschwindet
	for i, v := range flow {
		if math.Abs(float64(v)) > 1e-4 {
			t.Errorf("Flow[%d] = %f, erwartet 0", i, v)
		}
	}
}

func TestGlobalCorrelationShift(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	// feature1 traegt die Basisvektoren eine Position weiter rechts
	f0 := oneHotFeatures(ctx, 1, 3, 0, 10)
	f1 := oneHotFeatures(ctx, 1, 3, 1, 10)

	flow := globalCorrelationSoftmax(ctx, f0, f1, false).Floats()

	// Positionen 0 und 1 matchen ihren rechten Nachbarn; Position 2 hat
	// keinen Partner und bleibt aussen vor
	for _, x := range []int{0, 1} {
		u, v := flow[x], flow[3+x]
		if math.Abs(float64(u-1)) > 1e-4 {
			t.Errorf("u[%d] = %f, erwartet 1", x, u)
		}
		if math.Abs(float64(v)) > 1e-4 {
			t.Errorf("v[%d] = %f, erwartet 0", x, v)
		}
	}
}

func TestGlobalCorrelationBidirectional(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	f0 := oneHotFeatures(ctx, 1, 3, 0, 10)
	f1 := oneHotFeatures(ctx, 1, 3, 1, 10)

	flow := globalCorrelationSoftmax(ctx, f0, f1, true)

	if flow.Dim(0) != 2 {
		t.Fatalf("Batch = %d, erwartet 2 (vorwaerts und rueckwaerts)", flow.Dim(0))
	}

	data := flow.Floats()
	fwd := data[:6]
	bwd := data[6:]

	// Rueckrichtung matcht den linken Nachbarn
	if math.Abs(float64(fwd[0]-1)) > 1e-4 {
		t.Errorf("vorwaerts u[0] = %f, erwartet 1", fwd[0])
	}
	for _, x := range []int{1, 2} {
		if math.Abs(float64(bwd[x]+1)) > 1e-4 {
			t.Errorf("rueckwaerts u[%d] = %f, erwartet -1", x, bwd[x])
		}
	}
}

func TestLocalCorrelationShift(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	f0 := oneHotFeatures(ctx, 1, 3, 0, 10)
	f1 := oneHotFeatures(ctx, 1, 3, 1, 10)

	flow := localCorrelationSoftmax(ctx, f0, f1, 1).Floats()

	for _, x := range []int{0, 1} {
		u, v := flow[x], flow[3+x]
		if math.Abs(float64(u-1)) > 1e-4 {
			t.Errorf("u[%d] = %f, erwartet 1", x, u)
		}
		if math.Abs(float64(v)) > 1e-4 {
			t.Errorf("v[%d] = %f, erwartet 0", x, v)
		}
	}
}

func TestLocalCorrelationStaysInWindow(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	f0 := ctx.Arange(0, 32, 1, ml.DTypeF32).Scale(ctx, 0.05).Reshape(ctx, 1, 2, 4, 4)
	f1 := ctx.Arange(8, 40, 1, ml.DTypeF32).Scale(ctx, 0.05).Reshape(ctx, 1, 2, 4, 4)

	radius := 1
	flow := localCorrelationSoftmax(ctx, f0, f1, radius).Floats()

	// Der Erwartungswert ueber ein Fenster mit Radius r liegt in [-r, r]
	for i, v := range flow {
		if float64(v) > float64(radius)+1e-5 || float64(v) < -float64(radius)-1e-5 {
			t.Errorf("Flow[%d] = %f liegt ausserhalb des Fensters [-%d, %d]", i, v, radius, radius)
		}
	}
}
