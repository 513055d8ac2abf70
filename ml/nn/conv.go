// conv.go - Faltungs-Layer
// Dieses Modul definiert den 2D-Faltungs-Layer ueber (N, C, H, W)-Tensoren.
package nn

import (
	"github.com/7blacky7/flowmatch/ml"
)

// Conv2D faltet (N, IC, H, W)-Eingaben mit Weight (OC, IC, KH, KW).
// Bias hat die Form (OC) und wird auf jede Ausgabe-Ebene addiert.
type Conv2D struct {
	Weight ml.Tensor `state:"weight"`
	Bias   ml.Tensor `state:"bias"`
}

// NewConv2D erstellt einen Faltungs-Layer mit Null-Gewichten.
func NewConv2D(ctx ml.Context, in, out, kernel int, bias bool) *Conv2D {
	c := &Conv2D{Weight: ctx.Zeros(ml.DTypeF32, out, in, kernel, kernel)}
	if bias {
		c.Bias = ctx.Zeros(ml.DTypeF32, out)
	}
	return c
}

// Forward faltet t mit den gegebenen Strides und Paddings.
func (c *Conv2D) Forward(ctx ml.Context, t ml.Tensor, s0, s1, p0, p1 int) ml.Tensor {
	t = t.Conv2D(ctx, c.Weight, s0, s1, p0, p1)
	if c.Bias != nil {
		t = t.Add(ctx, c.Bias.Reshape(ctx, c.Bias.Dim(0), 1, 1))
	}
	return t
}
