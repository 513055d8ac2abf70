// backbone.go - Feature-Extraktion fuer EstimateFlow
// Enthaelt: PatchExtractor, einen parameterfreien Pyramiden-Extraktor
//
// Die Backbone-Internas (CNN/ViT) sind bewusst hinter FeatureExtractor
// gekapselt; PatchExtractor liefert rohe Patch-Features, die fuer
// Korrelations-Matching ohne gelernte Gewichte brauchbar sind.
package flow

import (
	"fmt"

	"github.com/7blacky7/flowmatch/ml"
)

// PatchExtractor zerlegt beide Bilder in nicht ueberlappende p x p Patches
// und verwendet die rohen Pixelwerte als Feature-Vektoren (D = 3*p*p).
// Fuer jede groebere Skala wird das Bild vorher bilinear halbiert, die
// Kanalzahl bleibt damit ueber alle Skalen konstant.
type PatchExtractor struct {
	PatchSize int
	NumScales int
}

// Channels gibt die Feature-Kanalzahl D des Extraktors zurueck.
func (e *PatchExtractor) Channels() int {
	return 3 * e.PatchSize * e.PatchSize
}

// Extract erstellt die Feature-Pyramiden beider Bilder, grob nach fein.
func (e *PatchExtractor) Extract(ctx ml.Context, img0, img1 ml.Tensor) ([]ml.Tensor, []ml.Tensor, error) {
	feature0 := make([]ml.Tensor, e.NumScales)
	feature1 := make([]ml.Tensor, e.NumScales)

	for s := 0; s < e.NumScales; s++ {
		down := 1 << (e.NumScales - 1 - s)

		var err error
		if feature0[s], err = e.extractScale(ctx, img0, down); err != nil {
			return nil, nil, err
		}
		if feature1[s], err = e.extractScale(ctx, img1, down); err != nil {
			return nil, nil, err
		}
	}

	return feature0, feature1, nil
}

func (e *PatchExtractor) extractScale(ctx ml.Context, img ml.Tensor, down int) (ml.Tensor, error) {
	n, c := img.Dim(0), img.Dim(1)
	h, w := img.Dim(2), img.Dim(3)

	p := e.PatchSize
	if h%(down*p) != 0 || w%(down*p) != 0 {
		return nil, fmt.Errorf("flow: image %dx%d not divisible by %d", w, h, down*p)
	}

	if down > 1 {
		img = img.Interpolate(ctx, [4]int{n, c, h / down, w / down}, ml.SamplingModeBilinear)
		h, w = h/down, w/down
	}

	// Nicht ueberlappende Patches: Unfold mit Stride = Kernel
	feature := img.Unfold(ctx, p, p, 0) // (n, c*p*p, (h/p)*(w/p))
	return feature.Reshape(ctx, n, c*p*p, h/p, w/p), nil
}
