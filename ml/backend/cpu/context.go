// context.go - Compute-Kontext des CPU-Backends
// Enthaelt: Empty, Zeros, FromFloats, Arange, Forward, Compute, Close
package cpu

import (
	"github.com/7blacky7/flowmatch/ml"
)

// Context fuehrt Tensor-Operationen eager aus.
type Context struct {
	threads int
}

// Empty erstellt einen uninitialisierten Tensor der gegebenen Form.
// Da Go Slices nullt, ist Empty identisch zu Zeros.
func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	return c.Zeros(dtype, shape...)
}

// Zeros erstellt einen Null-Tensor der gegebenen Form.
func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	return newTensor(dtype, shape)
}

// FromFloats erstellt einen Tensor aus einem float32-Slice.
func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	t := newTensor(ml.DTypeF32, shape)
	if len(s) != len(t.data) {
		panic("cpu: data length does not match shape")
	}

	copy(t.data, s)
	return t
}

// Arange erstellt einen 1D-Tensor mit Werten in [start, stop) mit Schrittweite step.
func (c *Context) Arange(start, stop, step float32, dtype ml.DType) ml.Tensor {
	if step <= 0 {
		panic("cpu: arange step must be positive")
	}

	var data []float32
	for v := start; v < stop; v += step {
		data = append(data, v)
	}

	t := newTensor(dtype, []int{len(data)})
	copy(t.data, data)
	return t
}

// Forward ist im eager Backend ein No-Op.
func (c *Context) Forward(...ml.Tensor) ml.Context {
	return c
}

// Compute ist im eager Backend ein No-Op: alle Tensoren sind bereits materialisiert.
func (c *Context) Compute(...ml.Tensor) {}

// Close gibt den Kontext frei.
func (c *Context) Close() {}
