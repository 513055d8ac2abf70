// MODUL: vision_test
// ZWECK: Tests fuer Laden, Skalieren und Tensor-Konvertierung
// INPUT: Synthetische Bilder
// OUTPUT: Testresultate
// NEBENEFFEKTE: Temporaere Dateien bei LoadPair-Tests
// ABHAENGIGKEITEN: testing, image, image/png
// HINWEISE: Testet CHW-Layout, Batch-Stapelung und Format-Erkennung

package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/7blacky7/flowmatch/ml"
	_ "github.com/7blacky7/flowmatch/ml/backend/cpu"
)

// createTestImage erzeugt ein einfarbiges Testbild
func createTestImage(w, h int, c color.Color) *ImageInput {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}
	return &ImageInput{
		Image:  rgba,
		Width:  w,
		Height: h,
		Format: FormatPNG,
	}
}

func newTestContext(t *testing.T) ml.Context {
	t.Helper()

	backend, err := ml.NewBackend("cpu", ml.BackendParams{NumThreads: 1})
	if err != nil {
		t.Fatalf("Backend erstellen fehlgeschlagen: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	return backend.NewContext()
}

func TestPixelsCHW(t *testing.T) {
	// Rotes 2x2 Bild
	img := createTestImage(2, 2, color.RGBA{255, 0, 0, 255})
	pixels := PixelsCHW(img)

	if len(pixels) != 12 {
		t.Fatalf("Pixel-Anzahl = %d, erwartet 12", len(pixels))
	}

	// CHW: erst alle R-Werte, dann G, dann B
	for i := 0; i < 4; i++ {
		if pixels[i] != 1.0 {
			t.Errorf("R-Kanal[%d] = %f, erwartet 1.0", i, pixels[i])
		}
		if pixels[4+i] != 0.0 {
			t.Errorf("G-Kanal[%d] = %f, erwartet 0.0", i, pixels[4+i])
		}
		if pixels[8+i] != 0.0 {
			t.Errorf("B-Kanal[%d] = %f, erwartet 0.0", i, pixels[8+i])
		}
	}
}

func TestToTensorStacking(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	img0 := createTestImage(4, 2, color.RGBA{255, 255, 255, 255})
	img1 := createTestImage(4, 2, color.RGBA{0, 0, 0, 255})

	tensor, err := ToTensor(ctx, img0, img1)
	if err != nil {
		t.Fatalf("ToTensor fehlgeschlagen: %v", err)
	}

	want := []int{2, 3, 2, 4}
	shape := tensor.Shape()
	for i, d := range want {
		if shape[i] != d {
			t.Fatalf("Shape = %v, erwartet %v", shape, want)
		}
	}

	data := tensor.Floats()
	if data[0] != 1.0 {
		t.Errorf("Batch 0 Wert = %f, erwartet 1.0", data[0])
	}
	if data[24] != 0.0 {
		t.Errorf("Batch 1 Wert = %f, erwartet 0.0", data[24])
	}
}

func TestToTensorSizeMismatch(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.Close()

	img0 := createTestImage(4, 4, color.White)
	img1 := createTestImage(2, 2, color.White)

	if _, err := ToTensor(ctx, img0, img1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Fehler = %v, erwartet ErrSizeMismatch", err)
	}
}

func TestResizeToMultiple(t *testing.T) {
	img := createTestImage(100, 50, color.White)

	resized, err := ResizeToMultiple(img, 32)
	if err != nil {
		t.Fatalf("ResizeToMultiple fehlgeschlagen: %v", err)
	}

	if resized.Width != 96 || resized.Height != 64 {
		t.Errorf("Groesse = %dx%d, erwartet 96x64", resized.Width, resized.Height)
	}
}

func TestResizeToMultipleNoop(t *testing.T) {
	img := createTestImage(64, 32, color.White)

	resized, err := ResizeToMultiple(img, 32)
	if err != nil {
		t.Fatalf("ResizeToMultiple fehlgeschlagen: %v", err)
	}

	if resized != img {
		t.Error("Bild mit passender Groesse sollte unveraendert zurueckgegeben werden")
	}
}

func TestDetectFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("PNG kodieren fehlgeschlagen: %v", err)
	}

	if format := DetectFormat(buf.Bytes()); format != FormatPNG {
		t.Errorf("Format = %s, erwartet png", format)
	}

	if format := DetectFormat([]byte{0x00, 0x01}); format != FormatUnknown {
		t.Errorf("Format = %s, erwartet unknown", format)
	}
}

func TestLoadPairSizeMismatch(t *testing.T) {
	dir := t.TempDir()

	writePNG := func(name string, w, h int) string {
		path := filepath.Join(dir, name)
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
			t.Fatalf("PNG kodieren fehlgeschlagen: %v", err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("Datei schreiben fehlgeschlagen: %v", err)
		}
		return path
	}

	path0 := writePNG("frame0.png", 8, 8)
	path1 := writePNG("frame1.png", 4, 4)

	if _, _, err := LoadPair(path0, path1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Fehler = %v, erwartet ErrSizeMismatch", err)
	}
}

func TestLoadPair(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"frame0.png", "frame1.png"} {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6))); err != nil {
			t.Fatalf("PNG kodieren fehlgeschlagen: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
			t.Fatalf("Datei schreiben fehlgeschlagen: %v", err)
		}
	}

	img0, img1, err := LoadPair(filepath.Join(dir, "frame0.png"), filepath.Join(dir, "frame1.png"))
	if err != nil {
		t.Fatalf("LoadPair fehlgeschlagen: %v", err)
	}

	if img0.Width != 8 || img0.Height != 6 || img1.Width != 8 || img1.Height != 6 {
		t.Errorf("Groessen = %dx%d / %dx%d, erwartet 8x6", img0.Width, img0.Height, img1.Width, img1.Height)
	}
}
