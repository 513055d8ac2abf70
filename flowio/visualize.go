// MODUL: visualize
// ZWECK: Einfaerben von Flow-Feldern fuer die visuelle Kontrolle
// INPUT: (N, 2, H, W) Flow-Tensoren
// OUTPUT: RGBA-Bilder nach dem Middlebury-Farbrad
// NEBENEFFEKTE: Dateisystem-Zugriff bei WritePNG
// ABHAENGIGKEITEN: ml (intern), image/png
// HINWEISE: Farbton kodiert die Richtung, Saettigung die Laenge; die
//           Laenge wird auf das Maximum des Feldes normiert

package flowio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/7blacky7/flowmatch/ml"
)

// Farbrad-Segmente: Uebergaenge zwischen den sechs Grundtoenen
var wheelSegments = []struct {
	count    int
	from, to [3]float64
}{
	{15, [3]float64{255, 0, 0}, [3]float64{255, 255, 0}}, // Rot -> Gelb
	{6, [3]float64{255, 255, 0}, [3]float64{0, 255, 0}},  // Gelb -> Gruen
	{4, [3]float64{0, 255, 0}, [3]float64{0, 255, 255}},  // Gruen -> Cyan
	{11, [3]float64{0, 255, 255}, [3]float64{0, 0, 255}}, // Cyan -> Blau
	{13, [3]float64{0, 0, 255}, [3]float64{255, 0, 255}}, // Blau -> Magenta
	{6, [3]float64{255, 0, 255}, [3]float64{255, 0, 0}},  // Magenta -> Rot
}

var colorwheel = makeColorwheel()

func makeColorwheel() [][3]float64 {
	var wheel [][3]float64
	for _, seg := range wheelSegments {
		for i := 0; i < seg.count; i++ {
			t := float64(i) / float64(seg.count)
			wheel = append(wheel, [3]float64{
				seg.from[0] + t*(seg.to[0]-seg.from[0]),
				seg.from[1] + t*(seg.to[1]-seg.from[1]),
				seg.from[2] + t*(seg.to[2]-seg.from[2]),
			})
		}
	}
	return wheel
}

// flowColor bildet einen normierten Versatz (u, v in [-1, 1]) auf eine
// Farbe des Rades ab
func flowColor(u, v float64) color.RGBA {
	rad := math.Sqrt(u*u + v*v)
	angle := math.Atan2(-v, -u) / math.Pi

	n := float64(len(colorwheel))
	fk := (angle + 1) / 2 * (n - 1)
	k0 := int(fk)
	k1 := (k0 + 1) % len(colorwheel)
	f := fk - float64(k0)

	var rgb [3]float64
	for i := 0; i < 3; i++ {
		c := (colorwheel[k0][i] + f*(colorwheel[k1][i]-colorwheel[k0][i])) / 255
		if rad <= 1 {
			// Je kuerzer der Versatz, desto heller
			c = 1 - rad*(1-c)
		} else {
			c *= 0.75
		}
		rgb[i] = c
	}

	return color.RGBA{
		R: uint8(rgb[0] * 255),
		G: uint8(rgb[1] * 255),
		B: uint8(rgb[2] * 255),
		A: 255,
	}
}

// Visualize faerbt das erste Flow-Feld eines Batches ein.
func Visualize(flow ml.Tensor) (*image.RGBA, error) {
	shape := flow.Shape()
	if len(shape) != 4 || shape[1] != 2 {
		return nil, fmt.Errorf("%w: %v", ErrBadShape, shape)
	}

	h, w := shape[2], shape[3]
	size := h * w
	data := flow.Floats()

	// Auf die maximale Versatz-Laenge des Feldes normieren
	var maxRad float64
	for i := 0; i < size; i++ {
		u, v := float64(data[i]), float64(data[size+i])
		if rad := math.Sqrt(u*u + v*v); rad > maxRad {
			maxRad = rad
		}
	}
	if maxRad == 0 {
		maxRad = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			u := float64(data[i]) / maxRad
			v := float64(data[size+i]) / maxRad
			img.SetRGBA(x, y, flowColor(u, v))
		}
	}

	return img, nil
}

// WritePNG speichert die Visualisierung eines Flow-Feldes als PNG.
func WritePNG(path string, flow ml.Tensor) error {
	img, err := Visualize(flow)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("flowio: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("flowio: png schreiben: %w", err)
	}
	return f.Close()
}
