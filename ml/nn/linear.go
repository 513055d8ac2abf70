// linear.go - Linear-Layer
// Dieses Modul definiert den voll verbundenen Layer ueber der letzten Achse.
package nn

import (
	"github.com/7blacky7/flowmatch/ml"
)

// Linear wendet eine affine Transformation auf die letzte Achse an.
// Weight hat die Form (out, in), Bias die Form (out).
type Linear struct {
	Weight ml.Tensor `state:"weight"`
	Bias   ml.Tensor `state:"bias"`
}

// NewLinear erstellt einen Linear-Layer mit Null-Gewichten.
func NewLinear(ctx ml.Context, in, out int, bias bool) *Linear {
	l := &Linear{Weight: ctx.Zeros(ml.DTypeF32, out, in)}
	if bias {
		l.Bias = ctx.Zeros(ml.DTypeF32, out)
	}
	return l
}

// Forward berechnet t @ Weight^T + Bias.
func (l *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	t = t.Matmul(ctx, l.Weight.Permute(ctx, 1, 0))
	if l.Bias != nil {
		t = t.Add(ctx, l.Bias)
	}
	return t
}
