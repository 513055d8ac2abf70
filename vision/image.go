// MODUL: image
// ZWECK: Laden und Vorbereiten von Bildpaaren fuer die Flow-Schaetzung
// INPUT: Dateipfade, Bytes oder io.Reader
// OUTPUT: ImageInput Strukturen mit dekodiertem Bild
// NEBENEFFEKTE: Dateisystem-Lesezugriff bei LoadImage/LoadPair
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern), image/jpeg, image/png
// HINWEISE: Alle Bilder werden als RGBA konvertiert; beide Bilder eines
//           Paares muessen dieselbe Groesse haben

package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	// Standard-Decoder registrieren
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrSizeMismatch wird zurueckgegeben wenn die Bilder eines Paares
// unterschiedliche Groessen haben
var ErrSizeMismatch = errors.New("bilder eines paares haben unterschiedliche groessen")

// ImageInput enthaelt ein dekodiertes Bild mit Metadaten
type ImageInput struct {
	Image  *image.RGBA
	Width  int
	Height int
	Format ImageFormat
}

// LoadImage laedt ein Bild von einem Dateipfad
func LoadImage(path string) (*ImageInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("datei lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// LoadImageFromBytes dekodiert ein Bild aus Byte-Daten
func LoadImageFromBytes(data []byte) (*ImageInput, error) {
	format := DetectFormat(data)
	if format == FormatUnknown {
		return nil, ErrUnknownFormat
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("bild dekodieren fehlgeschlagen: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()

	return &ImageInput{
		Image:  rgba,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
	}, nil
}

// DecodeImage dekodiert ein Bild aus einem io.Reader
func DecodeImage(reader io.Reader) (*ImageInput, error) {
	// Erst Daten puffern fuer Format-Erkennung
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("daten lesen fehlgeschlagen: %w", err)
	}
	return LoadImageFromBytes(data)
}

// LoadPair laedt beide Bilder eines Flusspaares und prueft, dass sie
// dieselbe Groesse haben
func LoadPair(path0, path1 string) (*ImageInput, *ImageInput, error) {
	img0, err := LoadImage(path0)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path0, err)
	}

	img1, err := LoadImage(path1)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path1, err)
	}

	if img0.Width != img1.Width || img0.Height != img1.Height {
		return nil, nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
			img0.Width, img0.Height, img1.Width, img1.Height)
	}

	return img0, img1, nil
}

// toRGBA konvertiert ein beliebiges image.Image zu *image.RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// ResizeImage skaliert ein Bild bilinear auf die angegebene Groesse
func ResizeImage(img *ImageInput, width, height int) (*ImageInput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ungueltige groesse: %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img.Image, img.Image.Bounds(), draw.Over, nil)

	return &ImageInput{
		Image:  dst,
		Width:  width,
		Height: height,
		Format: img.Format,
	}, nil
}

// ResizeToMultiple skaliert ein Bild auf die naechstgelegene Groesse, deren
// Breite und Hoehe Vielfache von multiple sind. Die Flow-Pyramide verlangt
// Eingaben, die durch Patch-Groesse mal groebsten Downsampling-Faktor
// teilbar sind.
func ResizeToMultiple(img *ImageInput, multiple int) (*ImageInput, error) {
	if multiple <= 0 {
		return nil, fmt.Errorf("ungueltiges vielfaches: %d", multiple)
	}

	w := roundToMultiple(img.Width, multiple)
	h := roundToMultiple(img.Height, multiple)

	if w == img.Width && h == img.Height {
		return img, nil
	}
	return ResizeImage(img, w, h)
}

// roundToMultiple rundet n auf das naechste positive Vielfache von m
func roundToMultiple(n, m int) int {
	r := (n + m/2) / m * m
	if r < m {
		r = m
	}
	return r
}
