// geometry.go - Koordinaten-Gitter und Backward-Warping
// Enthaelt: coordsGrid, backwardWarp sowie den Standard-Warper
package flow

import (
	"github.com/7blacky7/flowmatch/ml"
)

// coordsGrid erstellt ein Pixel-Koordinaten-Gitter (b, 2, h, w).
// Kanal 0 enthaelt x-, Kanal 1 y-Koordinaten.
func coordsGrid(ctx ml.Context, b, h, w int) ml.Tensor {
	data := make([]float32, b*2*h*w)
	for bi := 0; bi < b; bi++ {
		base := bi * 2 * h * w
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[base+y*w+x] = float32(x)
				data[base+h*w+y*w+x] = float32(y)
			}
		}
	}
	return ctx.FromFloats(data, b, 2, h, w)
}

// backwardWarp sampelt feature an den um flow verschobenen Koordinaten.
// Jede Position (x, y) liest feature bilinear an (x+dx, y+dy); ausserhalb
// liegende Positionen liefern 0.
func backwardWarp(ctx ml.Context, feature, flow ml.Tensor) ml.Tensor {
	grid := coordsGrid(ctx, flow.Dim(0), flow.Dim(2), flow.Dim(3))
	return feature.GridSample(ctx, grid.Add(ctx, flow))
}

// flowWarper ist der Standard-Warper des Modells.
type flowWarper struct{}

func (flowWarper) Warp(ctx ml.Context, feature, flow ml.Tensor) ml.Tensor {
	return backwardWarp(ctx, feature, flow)
}
