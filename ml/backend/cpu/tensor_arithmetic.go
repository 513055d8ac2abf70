// tensor_arithmetic.go - Elementweise Arithmetik mit Broadcasting
// Enthaelt: Add, Sub, Mul, Div, Scale, Sum, Mean sowie die Broadcast-Mechanik
package cpu

import (
	"fmt"

	"github.com/7blacky7/flowmatch/ml"
)

// broadcastShape bestimmt die Ergebnis-Form zweier Operanden nach den
// ueblichen NumPy-Regeln (rechtsbuendige Ausrichtung, 1 dehnt sich).
func broadcastShape(a, b []int) []int {
	n := max(len(a), len(b))
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i >= n-len(a) {
			da = a[i-(n-len(a))]
		}
		if i >= n-len(b) {
			db = b[i-(n-len(b))]
		}

		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			panic(fmt.Sprintf("cpu: cannot broadcast shapes %v and %v", a, b))
		}
	}
	return out
}

// broadcastStrides liefert pro Ergebnis-Dimension den Element-Stride des
// Operanden, 0 fuer gedehnte Dimensionen.
func broadcastStrides(shape, out []int) []int {
	strides := make([]int, len(out))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		oi := i + len(out) - len(shape)
		if shape[i] != 1 {
			strides[oi] = stride
		}
		stride *= shape[i]
	}
	return strides
}

// binaryOp wendet f elementweise mit Broadcasting an.
func binaryOp(a, b *Tensor, f func(x, y float32) float32) *Tensor {
	shape := broadcastShape(a.shape, b.shape)
	out := newTensor(ml.DTypeF32, shape)
	if len(out.data) == 0 {
		return out
	}

	as := broadcastStrides(a.shape, shape)
	bs := broadcastStrides(b.shape, shape)

	// Odometer-Iteration ueber alle Ergebnis-Indizes
	idx := make([]int, len(shape))
	var ai, bi int
	for i := range out.data {
		out.data[i] = f(a.data[ai], b.data[bi])

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			ai += as[d]
			bi += bs[d]
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
			ai -= as[d] * shape[d]
			bi -= bs[d] * shape[d]
		}
	}
	return out
}

// Add addiert elementweise.
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return binaryOp(t, t2.(*Tensor), func(x, y float32) float32 { return x + y })
}

// Sub subtrahiert elementweise.
func (t *Tensor) Sub(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return binaryOp(t, t2.(*Tensor), func(x, y float32) float32 { return x - y })
}

// Mul multipliziert elementweise.
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return binaryOp(t, t2.(*Tensor), func(x, y float32) float32 { return x * y })
}

// Div dividiert elementweise.
func (t *Tensor) Div(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return binaryOp(t, t2.(*Tensor), func(x, y float32) float32 { return x / y })
}

// Scale multipliziert den Tensor mit einem Skalar.
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	out := newTensor(ml.DTypeF32, t.shape)
	f := float32(s)
	for i, v := range t.data {
		out.data[i] = v * f
	}
	return out
}

// normAxis normalisiert negative Achsen-Indizes.
func normAxis(axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Sprintf("cpu: axis %d out of range for rank %d", axis, rank))
	}
	return axis
}

// axisSpans zerlegt die Form in (outer, n, inner) um die gegebene Achse.
func (t *Tensor) axisSpans(axis int) (outer, n, inner int) {
	outer, n, inner = 1, t.shape[axis], 1
	for _, d := range t.shape[:axis] {
		outer *= d
	}
	for _, d := range t.shape[axis+1:] {
		inner *= d
	}
	return outer, n, inner
}

// reduce faltet die gegebene Achse mit f zusammen.
func (t *Tensor) reduce(axis int, keepDims bool, f func(acc, v float32) float32, init float32) *Tensor {
	axis = normAxis(axis, len(t.shape))
	outer, n, inner := t.axisSpans(axis)

	shape := slices0(t.shape, axis, keepDims)
	out := newTensor(ml.DTypeF32, shape)

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			acc := init
			for i := 0; i < n; i++ {
				acc = f(acc, t.data[(o*n+i)*inner+in])
			}
			out.data[o*inner+in] = acc
		}
	}
	return out
}

func slices0(shape []int, axis int, keepDims bool) []int {
	out := make([]int, 0, len(shape))
	for i, d := range shape {
		if i == axis {
			if keepDims {
				out = append(out, 1)
			}
			continue
		}
		out = append(out, d)
	}
	return out
}

// Sum summiert entlang der gegebenen Achse.
func (t *Tensor) Sum(ctx ml.Context, axis int, keepDims bool) ml.Tensor {
	return t.reduce(axis, keepDims, func(acc, v float32) float32 { return acc + v }, 0)
}

// Mean mittelt entlang der gegebenen Achse.
func (t *Tensor) Mean(ctx ml.Context, axis int, keepDims bool) ml.Tensor {
	axis = normAxis(axis, len(t.shape))
	n := t.shape[axis]
	sum := t.reduce(axis, keepDims, func(acc, v float32) float32 { return acc + v }, 0)
	for i := range sum.data {
		sum.data[i] /= float32(n)
	}
	return sum
}
