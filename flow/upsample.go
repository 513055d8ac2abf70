// upsample.go - Flow-Upsampling
// Enthaelt: upsampleBilinear und den gelernten ConvexUpsampler
package flow

import (
	"github.com/7blacky7/flowmatch/ml"
	"github.com/7blacky7/flowmatch/ml/nn"
)

// upsampleBilinear skaliert ein Flow-Feld bilinear um factor und
// multipliziert die Versatzwerte mit factor, da Versaetze in Pixeln der
// eigenen Aufloesung gemessen werden.
func upsampleBilinear(ctx ml.Context, flow ml.Tensor, factor int) ml.Tensor {
	dims := [4]int{flow.Dim(0), flow.Dim(1), flow.Dim(2) * factor, flow.Dim(3) * factor}
	return flow.Interpolate(ctx, dims, ml.SamplingModeBilinear).Scale(ctx, float64(factor))
}

// ConvexUpsampler skaliert ein Flow-Feld um einen ganzzahligen Faktor mit
// inhaltsabhaengigen Gewichten: jedes Sub-Pixel ist eine Konvexkombination
// der 3x3-Nachbarschaft des groben Flows. Das erhaelt scharfe
// Bewegungsgrenzen, die bilineares Upsampling verschmieren wuerde.
type ConvexUpsampler struct {
	Conv1 *nn.Conv2D `state:"0"`
	Conv2 *nn.Conv2D `state:"2"`

	factor int
}

func newConvexUpsampler(ctx ml.Context, channels, factor int) *ConvexUpsampler {
	return &ConvexUpsampler{
		Conv1:  nn.NewConv2D(ctx, 2+channels, 256, 3, true),
		Conv2:  nn.NewConv2D(ctx, 256, factor*factor*9, 1, true),
		factor: factor,
	}
}

// Forward berechnet das konvexe Upsampling von flow mit feature als
// Inhalts-Hinweis. Die Maske summiert sich ueber die 9 Taps zu 1 (Softmax),
// das Ergebnis liegt also immer in der konvexen Huelle der Nachbarwerte.
func (u *ConvexUpsampler) Forward(ctx ml.Context, flow, feature ml.Tensor) ml.Tensor {
	b := flow.Dim(0)
	h, w := flow.Dim(2), flow.Dim(3)
	k := u.factor

	concat := flow.Concat(ctx, feature, 1)
	mask := u.Conv2.Forward(ctx, u.Conv1.Forward(ctx, concat, 1, 1, 1, 1).RELU(ctx), 1, 1, 0, 0)
	mask = mask.Reshape(ctx, b, 1, 9, k, k, h, w).Softmax(ctx, 2)

	// Versatz vor dem Entfalten auf das feine Gitter skalieren
	up := flow.Scale(ctx, float64(k)).Unfold(ctx, 3, 1, 1) // (b, 2*9, h*w)
	up = up.Reshape(ctx, b, 2, 9, 1, 1, h, w)

	up = mask.Mul(ctx, up).Sum(ctx, 2, false)  // (b, 2, k, k, h, w)
	up = up.Permute(ctx, 0, 1, 4, 2, 5, 3)     // (b, 2, h, k, w, k)
	return up.Reshape(ctx, b, 2, k*h, k*w)
}
