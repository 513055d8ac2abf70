// tensor.go - Tensor-Grundstruktur des CPU-Backends
// Enthaelt: Tensor-Struktur, Shape-Zugriff, Datenkonvertierung (F32/F16)
package cpu

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/x448/float16"

	"github.com/7blacky7/flowmatch/ml"
)

// Tensor ist ein zusammenhaengender row-major float32-Tensor.
// DTypeF16 betrifft nur die Byte-Repraesentation (Bytes/Cast); gerechnet
// wird immer in float32.
type Tensor struct {
	data  []float32
	shape []int
	dtype ml.DType
}

func newTensor(dtype ml.DType, shape []int) *Tensor {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic("cpu: negative dimension")
		}
		n *= d
	}

	return &Tensor{
		data:  make([]float32, n),
		shape: slices.Clone(shape),
		dtype: dtype,
	}
}

// Dim gibt die Groesse der Dimension n zurueck.
func (t *Tensor) Dim(n int) int {
	return t.shape[n]
}

// Stride gibt den Element-Stride der Dimension n zurueck.
func (t *Tensor) Stride(n int) int {
	s := 1
	for i := n + 1; i < len(t.shape); i++ {
		s *= t.shape[i]
	}
	return s
}

// Shape gibt eine Kopie der Tensor-Form zurueck.
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

// DType gibt den Datentyp zurueck.
func (t *Tensor) DType() ml.DType {
	return t.dtype
}

// Cast konvertiert den Tensor in den gegebenen Datentyp.
// F16 rundet dabei jeden Wert auf die naechste half-precision Zahl.
func (t *Tensor) Cast(ctx ml.Context, dtype ml.DType) ml.Tensor {
	out := newTensor(dtype, t.shape)
	if dtype == ml.DTypeF16 {
		for i, v := range t.data {
			out.data[i] = float16.Fromfloat32(v).Float32()
		}
	} else {
		copy(out.data, t.data)
	}
	return out
}

// Floats gibt eine Kopie der Tensor-Daten als float32-Slice zurueck.
func (t *Tensor) Floats() []float32 {
	return slices.Clone(t.data)
}

// Bytes serialisiert die Tensor-Daten little-endian im Datentyp des Tensors.
func (t *Tensor) Bytes() []byte {
	switch t.dtype {
	case ml.DTypeF16:
		bts := make([]byte, 2*len(t.data))
		for i, v := range t.data {
			binary.LittleEndian.PutUint16(bts[2*i:], float16.Fromfloat32(v).Bits())
		}
		return bts
	default:
		bts := make([]byte, 4*len(t.data))
		for i, v := range t.data {
			binary.LittleEndian.PutUint32(bts[4*i:], math.Float32bits(v))
		}
		return bts
	}
}
