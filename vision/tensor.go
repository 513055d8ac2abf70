// MODUL: tensor
// ZWECK: Konvertierung dekodierter Bilder in Modell-Eingabe-Tensoren
// INPUT: ImageInput Strukturen, ml.Context
// OUTPUT: (N, 3, H, W) float32-Tensoren im Wertebereich [0, 1]
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml (intern)
// HINWEISE: Channel-First Layout (CHW), Alpha-Kanal wird verworfen

package vision

import (
	"fmt"

	"github.com/7blacky7/flowmatch/ml"
)

// PixelsCHW liest die RGB-Werte eines Bildes als float32-Slice im CHW
// Layout, skaliert auf [0, 1]
func PixelsCHW(img *ImageInput) []float32 {
	bounds := img.Image.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	size := h * w

	result := make([]float32, size*3)

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := extractRGB(img, x, y)
			result[idx] = r
			result[size+idx] = g
			result[2*size+idx] = b
			idx++
		}
	}

	return result
}

// extractRGB holt RGB-Werte als float32 im Bereich [0,1]
func extractRGB(img *ImageInput, x, y int) (float32, float32, float32) {
	c := img.Image.At(x, y)
	r, g, b, _ := c.RGBA()
	// RGBA gibt 16-bit Werte zurueck, auf 8-bit konvertieren
	return float32(r>>8) / 255.0, float32(g>>8) / 255.0, float32(b>>8) / 255.0
}

// ToTensor stapelt ein oder mehrere gleich grosse Bilder zu einem
// (N, 3, H, W) Tensor
func ToTensor(ctx ml.Context, imgs ...*ImageInput) (ml.Tensor, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("vision: keine bilder uebergeben")
	}

	h, w := imgs[0].Height, imgs[0].Width
	data := make([]float32, 0, len(imgs)*3*h*w)

	for _, img := range imgs {
		if img.Height != h || img.Width != w {
			return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
				img.Width, img.Height, w, h)
		}
		data = append(data, PixelsCHW(img)...)
	}

	return ctx.FromFloats(data, len(imgs), 3, h, w), nil
}

// Dimensions gibt die Bild-Dimensionen als (H, W, C) zurueck
func (img *ImageInput) Dimensions() (int, int, int) {
	return img.Height, img.Width, 3
}
