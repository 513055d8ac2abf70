// attention.go - Flow-Propagation mit Feature-Self-Attention
// Enthaelt: FlowAttention (global und lokales Fenster)
package flow

import (
	"math"

	"github.com/7blacky7/flowmatch/ml"
	"github.com/7blacky7/flowmatch/ml/nn"
)

// FlowAttention glaettet ein Flow-Feld anhand der Feature-Aehnlichkeit:
// jede Position aggregiert Flow-Werte gewichtet mit der Attention ihrer
// Features statt mit rein raeumlicher Naehe.
type FlowAttention struct {
	QProj *nn.Linear `state:"q_proj"`
	KProj *nn.Linear `state:"k_proj"`
}

func newFlowAttention(ctx ml.Context, channels int) *FlowAttention {
	return &FlowAttention{
		QProj: nn.NewLinear(ctx, channels, channels, true),
		KProj: nn.NewLinear(ctx, channels, channels, true),
	}
}

// Propagate verfeinert flow anhand von feature. Mit localWindow attendiert
// jede Position nur auf ein (2r+1)^2-Fenster um sich selbst, sonst global.
// Ausgabe-Aufloesung und Kanalzahl (2) entsprechen der Eingabe.
func (a *FlowAttention) Propagate(ctx ml.Context, feature, flow ml.Tensor, localWindow bool, radius int) ml.Tensor {
	if localWindow && radius > 0 {
		return a.propagateLocalWindow(ctx, feature, flow, radius)
	}

	b, c := feature.Dim(0), feature.Dim(1)
	h, w := feature.Dim(2), feature.Dim(3)

	fFlat := feature.Reshape(ctx, b, c, h*w).Permute(ctx, 0, 2, 1) // (b, hw, c)
	query := a.QProj.Forward(ctx, fFlat)
	key := a.KProj.Forward(ctx, fFlat)

	scores := query.Matmul(ctx, key.Permute(ctx, 0, 2, 1)).Scale(ctx, 1/math.Sqrt(float64(c)))
	prob := scores.Softmax(ctx, -1) // (b, hw, hw)

	value := flow.Reshape(ctx, b, 2, h*w).Permute(ctx, 0, 2, 1) // (b, hw, 2)
	out := prob.Matmul(ctx, value)

	return out.Permute(ctx, 0, 2, 1).Reshape(ctx, b, 2, h, w)
}

// propagateLocalWindow beschraenkt die Attention auf ein k x k Fenster.
// Rand-Positionen sehen dabei genullte Taps aus dem Zero-Padding, wie im
// Unfold-basierten Fenster-Matching ueblich.
func (a *FlowAttention) propagateLocalWindow(ctx ml.Context, feature, flow ml.Tensor, radius int) ml.Tensor {
	b, c := feature.Dim(0), feature.Dim(1)
	h, w := feature.Dim(2), feature.Dim(3)

	k := 2*radius + 1
	k2 := k * k

	fFlat := feature.Reshape(ctx, b, c, h*w).Permute(ctx, 0, 2, 1) // (b, hw, c)

	query := a.QProj.Forward(ctx, fFlat).
		Permute(ctx, 0, 2, 1).
		Reshape(ctx, b, c, 1, h*w)

	keyMap := a.KProj.Forward(ctx, fFlat).
		Permute(ctx, 0, 2, 1).
		Reshape(ctx, b, c, h, w)
	keyWin := keyMap.Unfold(ctx, k, 1, radius).Reshape(ctx, b, c, k2, h*w)

	scores := query.Mul(ctx, keyWin).
		Sum(ctx, 1, false).
		Scale(ctx, 1/math.Sqrt(float64(c))) // (b, k2, hw)
	prob := scores.Softmax(ctx, 1)

	valueWin := flow.Unfold(ctx, k, 1, radius).Reshape(ctx, b, 2, k2, h*w)

	out := valueWin.Mul(ctx, prob.Reshape(ctx, b, 1, k2, h*w)).Sum(ctx, 2, false) // (b, 2, hw)
	return out.Reshape(ctx, b, 2, h, w)
}
