// geometry_test.go - Tests fuer Koordinaten-Gitter und Backward-Warping
package flow

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/flowmatch/ml"
)

func TestCoordsGrid(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	grid := coordsGrid(ctx, 1, 2, 3)

	want := []float32{
		0, 1, 2, // x Zeile 0
		0, 1, 2, // x Zeile 1
		0, 0, 0, // y Zeile 0
		1, 1, 1, // y Zeile 1
	}
	if diff := cmp.Diff(want, grid.Floats()); diff != "" {
		t.Errorf("Gitter (-want +got):\n%s", diff)
	}
}

func TestBackwardWarpZeroFlowIsIdentity(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	feature := ctx.Arange(0, 24, 1, ml.DTypeF32).Reshape(ctx, 1, 2, 3, 4)
	flow := ctx.Zeros(ml.DTypeF32, 1, 2, 3, 4)

	warped := backwardWarp(ctx, feature, flow)

	if diff := cmp.Diff(feature.Floats(), warped.Floats()); diff != "" {
		t.Errorf("Warp mit Null-Flow (-want +got):\n%s", diff)
	}
}

func TestBackwardWarpIntegerShift(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	feature := ctx.FromFloats([]float32{10, 20, 30, 40}, 1, 1, 1, 4)

	// Versatz +1 in x: Position x liest Quelle x+1
	flowData := []float32{1, 1, 1, 1, 0, 0, 0, 0}
	flow := ctx.FromFloats(flowData, 1, 2, 1, 4)

	warped := backwardWarp(ctx, feature, flow).Floats()

	// Letzte Position liest ausserhalb und liefert 0
	want := []float32{20, 30, 40, 0}
	if diff := cmp.Diff(want, warped); diff != "" {
		t.Errorf("Warp (-want +got):\n%s", diff)
	}
}

func TestBackwardWarpHalfPixel(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	feature := ctx.FromFloats([]float32{0, 10}, 1, 1, 1, 2)

	flowData := []float32{0.5, 0, 0, 0}
	flow := ctx.FromFloats(flowData, 1, 2, 1, 2)

	warped := backwardWarp(ctx, feature, flow).Floats()

	// Bilinear zwischen 0 und 10
	if warped[0] != 5 {
		t.Errorf("Halb-Pixel-Wert = %f, erwartet 5", warped[0])
	}
}
