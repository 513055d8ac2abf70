// Package flow schaetzt dichten optischen Fluss zwischen einem Bildpaar
// durch iteratives coarse-to-fine Refinement: Korrelations-Matching,
// Residual-Akkumulation, Attention-Propagation und gelerntes konvexes
// Upsampling auf volle Aufloesung.
//
// Verwendung:
//
//	model := flow.New(ctx,
//	    flow.WithNumScales(2),
//	    flow.WithFeatureChannels(128),
//	)
//
//	preds, err := model.Forward(ctx, feature0List, feature1List, []flow.ScaleConfig{
//	    {AttnSplits: 2, CorrRadius: -1, PropRadius: 0},
//	    {AttnSplits: 8, CorrRadius: 4, PropRadius: 1},
//	}, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	final := preds[len(preds)-1] // (N, 2, H, W) in Pixeln
package flow

import (
	"errors"

	"github.com/7blacky7/flowmatch/ml"
)

// Fehler-Definitionen
var (
	ErrScaleConfig   = errors.New("flow: scale config length does not match number of scales")
	ErrFeatureScales = errors.New("flow: feature lists shorter than number of scales")
	ErrNoExtractor   = errors.New("flow: model has no feature extractor")
	ErrCheckpoint    = errors.New("flow: checkpoint contains no matching weights")
)

// ============================================================================
// Kollaborateure
// ============================================================================

// FeatureExtractor bildet ein Bildpaar auf Feature-Pyramiden ab, grob nach
// fein geordnet. Beide Listen muessen mindestens numScales Eintraege haben.
type FeatureExtractor interface {
	Extract(ctx ml.Context, img0, img1 ml.Tensor) ([]ml.Tensor, []ml.Tensor, error)
}

// Transformer verfeinert beide Feature-Maps vor dem Matching, etwa durch
// Cross-Attention mit attnSplits Fenstern. Optional.
type Transformer interface {
	Enhance(ctx ml.Context, feature0, feature1 ml.Tensor, attnSplits int) (ml.Tensor, ml.Tensor)
}

// CorrelationMatcher erzeugt aus zwei Feature-Maps eine Flow-Vorhersage in
// der Aufloesung der Eingaben, Kanalzahl 2.
type CorrelationMatcher interface {
	Global(ctx ml.Context, feature0, feature1 ml.Tensor, bidir bool) ml.Tensor
	Local(ctx ml.Context, feature0, feature1 ml.Tensor, radius int) ml.Tensor
}

// Warper sampelt eine Feature-Map an den um flow verschobenen Koordinaten.
type Warper interface {
	Warp(ctx ml.Context, feature, flow ml.Tensor) ml.Tensor
}

// Propagator verfeinert ein Flow-Feld anhand einer Feature-Map, global oder
// innerhalb eines lokalen Fensters mit Radius radius.
type Propagator interface {
	Propagate(ctx ml.Context, feature, flow ml.Tensor, localWindow bool, radius int) ml.Tensor
}
