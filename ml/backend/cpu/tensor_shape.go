// tensor_shape.go - Shape-Operationen fuer Tensoren
// Enthaelt: Reshape, Permute, Contiguous, Concat, Chunk, Slice, Duplicate, Detach
package cpu

import (
	"fmt"
	"slices"

	"github.com/7blacky7/flowmatch/ml"
)

// inferShape ersetzt ein einzelnes -1 durch die passende Dimension.
func (t *Tensor) inferShape(shape []int) []int {
	shape = slices.Clone(shape)
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				panic("cpu: only one dimension may be -1")
			}
			infer = i
		} else {
			known *= d
		}
	}

	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			panic(fmt.Sprintf("cpu: cannot infer shape %v for %d elements", shape, len(t.data)))
		}
		shape[infer] = len(t.data) / known
	}
	return shape
}

// Reshape aendert die Form des Tensors; ein -1 wird abgeleitet.
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	shape = t.inferShape(shape)

	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(t.data) {
		panic(fmt.Sprintf("cpu: cannot reshape %v to %v", t.shape, shape))
	}

	out := newTensor(t.dtype, shape)
	copy(out.data, t.data)
	return out
}

// Permute permutiert die Dimensionen des Tensors.
// Erwartet die neue Reihenfolge der Dimensionen: out.Dim(i) == in.Dim(order[i]).
func (t *Tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	if len(order) != len(t.shape) {
		panic("cpu: invalid number of dimensions for permute")
	}

	shape := make([]int, len(order))
	strides := make([]int, len(order))
	for i, o := range order {
		shape[i] = t.shape[o]
		strides[i] = t.Stride(o)
	}

	out := newTensor(t.dtype, shape)
	if len(out.data) == 0 {
		return out
	}

	idx := make([]int, len(shape))
	var si int
	for i := range out.data {
		out.data[i] = t.data[si]

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			si += strides[d]
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
			si -= strides[d] * shape[d]
		}
	}
	return out
}

// Contiguous ist im CPU-Backend ein No-Op: jede Operation materialisiert
// ihr Ergebnis bereits zusammenhaengend.
func (t *Tensor) Contiguous(ctx ml.Context) ml.Tensor {
	return t
}

// Concat haengt t2 entlang der gegebenen Achse an.
func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, axis int) ml.Tensor {
	o := t2.(*Tensor)
	axis = normAxis(axis, len(t.shape))
	if len(o.shape) != len(t.shape) {
		panic("cpu: concat rank mismatch")
	}
	for i := range t.shape {
		if i != axis && t.shape[i] != o.shape[i] {
			panic(fmt.Sprintf("cpu: concat shape mismatch %v vs %v on axis %d", t.shape, o.shape, axis))
		}
	}

	shape := slices.Clone(t.shape)
	shape[axis] += o.shape[axis]
	out := newTensor(ml.DTypeF32, shape)

	outer, _, inner := t.axisSpans(axis)
	na, nb := t.shape[axis], o.shape[axis]
	for i := 0; i < outer; i++ {
		copy(out.data[i*(na+nb)*inner:], t.data[i*na*inner:(i+1)*na*inner])
		copy(out.data[(i*(na+nb)+na)*inner:], o.data[i*nb*inner:(i+1)*nb*inner])
	}
	return out
}

// Slice kopiert den Bereich [low, high) entlang der gegebenen Achse.
func (t *Tensor) Slice(ctx ml.Context, axis, low, high int) ml.Tensor {
	axis = normAxis(axis, len(t.shape))
	if low < 0 || high > t.shape[axis] || low > high {
		panic(fmt.Sprintf("cpu: slice [%d:%d) out of range for axis %d of %v", low, high, axis, t.shape))
	}

	shape := slices.Clone(t.shape)
	shape[axis] = high - low
	out := newTensor(t.dtype, shape)

	outer, n, inner := t.axisSpans(axis)
	for i := 0; i < outer; i++ {
		copy(out.data[i*(high-low)*inner:], t.data[(i*n+low)*inner:(i*n+high)*inner])
	}
	return out
}

// Chunk teilt den Tensor entlang der Achse in n gleich grosse Teile.
func (t *Tensor) Chunk(ctx ml.Context, axis, n int) []ml.Tensor {
	axis = normAxis(axis, len(t.shape))
	if t.shape[axis]%n != 0 {
		panic(fmt.Sprintf("cpu: axis %d of %v not divisible into %d chunks", axis, t.shape, n))
	}

	size := t.shape[axis] / n
	out := make([]ml.Tensor, n)
	for i := range out {
		out[i] = t.Slice(ctx, axis, i*size, (i+1)*size)
	}
	return out
}

// Duplicate erstellt eine tiefe Kopie des Tensors.
func (t *Tensor) Duplicate(ctx ml.Context) ml.Tensor {
	out := newTensor(t.dtype, t.shape)
	copy(out.data, t.data)
	return out
}

// Detach erstellt eine tiefe Kopie ohne gemeinsamen Speicher.
// Im forward-only Backend ist das die stop-gradient Grenze.
func (t *Tensor) Detach(ctx ml.Context) ml.Tensor {
	return t.Duplicate(ctx)
}
