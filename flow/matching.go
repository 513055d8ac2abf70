// matching.go - Korrelations-Matching mit Softmax-Erwartungswert
// Enthaelt: globalCorrelationSoftmax, localCorrelationSoftmax sowie den
// Standard-Matcher des Modells
package flow

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/7blacky7/flowmatch/ml"
)

// globalCorrelationSoftmax vergleicht jede Position von feature0 mit allen
// Positionen von feature1 und bildet den Softmax-Erwartungswert der
// Korrespondenz-Koordinaten. Das Ergebnis ist ein Flow-Feld (b, 2, h, w);
// mit bidir wird zusaetzlich die Rueckrichtung ueber das transponierte
// Korrelationsvolumen berechnet und batchweise angehaengt (2b, 2, h, w).
func globalCorrelationSoftmax(ctx ml.Context, feature0, feature1 ml.Tensor, bidir bool) ml.Tensor {
	b, c := feature0.Dim(0), feature0.Dim(1)
	h, w := feature0.Dim(2), feature0.Dim(3)

	f0 := feature0.Reshape(ctx, b, c, h*w).Permute(ctx, 0, 2, 1) // (b, hw, c)
	f1 := feature1.Reshape(ctx, b, c, h*w)                       // (b, c, hw)

	corr := f0.Matmul(ctx, f1).Scale(ctx, 1/math.Sqrt(float64(c))) // (b, hw, hw)
	if bidir {
		corr = corr.Concat(ctx, corr.Permute(ctx, 0, 2, 1), 0)
		b *= 2
	}

	prob := corr.Softmax(ctx, -1)

	grid := coordsGrid(ctx, 1, h, w).Reshape(ctx, 1, 2, h*w).Permute(ctx, 0, 2, 1) // (1, hw, 2)
	correspondence := prob.Matmul(ctx, grid)                                       // (b, hw, 2)

	flow := correspondence.Sub(ctx, grid)
	return flow.Permute(ctx, 0, 2, 1).Reshape(ctx, b, 2, h, w)
}

// localCorrelationSoftmax vergleicht jede Position von feature0 mit einem
// (2r+1)^2-Fenster um dieselbe Position in feature1. Kandidaten ausserhalb
// des Bildes werden vor dem Softmax auf -Inf maskiert. Das Ergebnis ist der
// erwartete Versatz innerhalb des Fensters, also ein Residual-Flow.
func localCorrelationSoftmax(ctx ml.Context, feature0, feature1 ml.Tensor, radius int) ml.Tensor {
	b, c := feature0.Dim(0), feature0.Dim(1)
	h, w := feature0.Dim(2), feature0.Dim(3)

	k := 2*radius + 1
	k2 := k * k
	negInf := math32.Inf(-1)

	// Kandidaten-Koordinaten, Offsets und Maske sind datenunabhaengig und
	// werden hostseitig aufgebaut.
	coords := make([]float32, 2*k2*h*w) // (1, 2, k2, hw)
	mask := make([]float32, k2*h*w)     // (1, k2, hw)
	offs := make([]float32, 2*k2)       // (2, k2, 1)

	for t := 0; t < k2; t++ {
		dy := t/k - radius
		dx := t%k - radius
		offs[t] = float32(dx)
		offs[k2+t] = float32(dy)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				cx, cy := x+dx, y+dy
				coords[t*h*w+y*w+x] = float32(cx)
				coords[(k2+t)*h*w+y*w+x] = float32(cy)
				if cx < 0 || cx >= w || cy < 0 || cy >= h {
					mask[t*h*w+y*w+x] = negInf
				}
			}
		}
	}

	coordsT := ctx.FromFloats(coords, 1, 2, k2, h*w)
	if b > 1 {
		one := coordsT
		for i := 1; i < b; i++ {
			coordsT = coordsT.Concat(ctx, one, 0)
		}
	}

	sampled := feature1.GridSample(ctx, coordsT) // (b, c, k2, hw)

	f0 := feature0.Reshape(ctx, b, c, 1, h*w)
	corr := f0.Mul(ctx, sampled).Sum(ctx, 1, false).Scale(ctx, 1/math.Sqrt(float64(c))) // (b, k2, hw)
	corr = corr.Add(ctx, ctx.FromFloats(mask, k2, h*w))

	prob := corr.Softmax(ctx, 1)

	flow := prob.Reshape(ctx, b, 1, k2, h*w).
		Mul(ctx, ctx.FromFloats(offs, 2, k2, 1)).
		Sum(ctx, 2, false) // (b, 2, hw)

	return flow.Reshape(ctx, b, 2, h, w)
}

// correlationMatcher ist der Standard-Matcher des Modells.
type correlationMatcher struct{}

func (correlationMatcher) Global(ctx ml.Context, feature0, feature1 ml.Tensor, bidir bool) ml.Tensor {
	return globalCorrelationSoftmax(ctx, feature0, feature1, bidir)
}

func (correlationMatcher) Local(ctx ml.Context, feature0, feature1 ml.Tensor, radius int) ml.Tensor {
	return localCorrelationSoftmax(ctx, feature0, feature1, radius)
}
