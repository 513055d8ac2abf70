// MODUL: flo
// ZWECK: Lesen und Schreiben von Flow-Feldern im Middlebury .flo Format
// INPUT: io.Reader/io.Writer oder Dateipfade, (N, 2, H, W) Tensoren
// OUTPUT: Flow-Tensoren bzw. serialisierte .flo Dateien
// NEBENEFFEKTE: Dateisystem-Zugriff bei ReadFile/WriteFile
// ABHAENGIGKEITEN: ml (intern), encoding/binary
// HINWEISE: Format: 4 Byte Magic (float32 202021.25, ASCII "PIEH"),
//           int32 Breite, int32 Hoehe, dann zeilenweise (u, v) Paare
//           als float32, alles little-endian

package flowio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/7blacky7/flowmatch/ml"
)

// floMagic ist der Sanity-Check-Wert am Dateianfang; als Bytes gelesen
// ergibt er "PIEH"
const floMagic float32 = 202021.25

// Groessen-Limit gegen korrupte Header
const maxDimension = 1 << 16

// Fehler-Definitionen
var (
	ErrBadMagic  = errors.New("flowio: datei beginnt nicht mit PIEH magic")
	ErrBadHeader = errors.New("flowio: ungueltige dimensionen im header")
	ErrBadShape  = errors.New("flowio: tensor hat nicht die form (1, 2, H, W)")
)

// Read dekodiert ein Flow-Feld und gibt es als (1, 2, H, W) Tensor zurueck.
func Read(ctx ml.Context, r io.Reader) (ml.Tensor, error) {
	var magic float32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("flowio: header lesen: %w", err)
	}
	if magic != floMagic {
		return nil, ErrBadMagic
	}

	var w, h int32
	if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("flowio: header lesen: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("flowio: header lesen: %w", err)
	}
	if w <= 0 || h <= 0 || w > maxDimension || h > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadHeader, w, h)
	}

	// Datei speichert interleaved (u, v) pro Pixel
	interleaved := make([]float32, int(w)*int(h)*2)
	if err := binary.Read(r, binary.LittleEndian, interleaved); err != nil {
		return nil, fmt.Errorf("flowio: daten lesen: %w", err)
	}

	// In Kanal-Ebenen umsortieren: erst alle u, dann alle v
	size := int(w) * int(h)
	data := make([]float32, 2*size)
	for i := 0; i < size; i++ {
		data[i] = interleaved[2*i]
		data[size+i] = interleaved[2*i+1]
	}

	return ctx.FromFloats(data, 1, 2, int(h), int(w)), nil
}

// ReadFile laedt eine .flo Datei.
func ReadFile(ctx ml.Context, path string) (ml.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flowio: %w", err)
	}
	defer f.Close()

	return Read(ctx, bufio.NewReader(f))
}

// Write serialisiert ein (1, 2, H, W) Flow-Feld im .flo Format.
func Write(w io.Writer, flow ml.Tensor) error {
	shape := flow.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 2 {
		return fmt.Errorf("%w: %v", ErrBadShape, shape)
	}

	h, width := shape[2], shape[3]
	data := flow.Floats()
	size := h * width

	if err := binary.Write(w, binary.LittleEndian, floMagic); err != nil {
		return fmt.Errorf("flowio: header schreiben: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(width)); err != nil {
		return fmt.Errorf("flowio: header schreiben: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(h)); err != nil {
		return fmt.Errorf("flowio: header schreiben: %w", err)
	}

	interleaved := make([]float32, 2*size)
	for i := 0; i < size; i++ {
		interleaved[2*i] = data[i]
		interleaved[2*i+1] = data[size+i]
	}

	if err := binary.Write(w, binary.LittleEndian, interleaved); err != nil {
		return fmt.Errorf("flowio: daten schreiben: %w", err)
	}
	return nil
}

// WriteFile speichert ein Flow-Feld als .flo Datei.
func WriteFile(path string, flow ml.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("flowio: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := Write(bw, flow); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flowio: %w", err)
	}
	return f.Close()
}

// EndpointError berechnet den mittleren euklidischen Abstand zwischen zwei
// Flow-Feldern gleicher Form (average endpoint error).
func EndpointError(pred, truth ml.Tensor) (float64, error) {
	ps, ts := pred.Shape(), truth.Shape()
	if len(ps) != 4 || len(ts) != 4 || ps[1] != 2 || ts[1] != 2 {
		return 0, fmt.Errorf("%w: %v vs %v", ErrBadShape, ps, ts)
	}
	for i := range ps {
		if ps[i] != ts[i] {
			return 0, fmt.Errorf("flowio: formen %v und %v stimmen nicht ueberein", ps, ts)
		}
	}

	p, g := pred.Floats(), truth.Floats()
	size := ps[2] * ps[3]

	var sum float64
	for n := 0; n < ps[0]; n++ {
		base := n * 2 * size
		for i := 0; i < size; i++ {
			du := float64(p[base+i] - g[base+i])
			dv := float64(p[base+size+i] - g[base+size+i])
			sum += math.Sqrt(du*du + dv*dv)
		}
	}

	return sum / float64(ps[0]*size), nil
}
