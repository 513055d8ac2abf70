// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und Compute-Kontexte.
//
// Shapes sind row-major im NumPy-Stil: das letzte Element von Shape() ist die
// innerste Dimension. Bildartige Tensoren verwenden das Layout (N, C, H, W).
package ml

// Context represents an execution context for tensor operations.
type Context interface {
	Empty(dtype DType, shape ...int) Tensor
	Zeros(dtype DType, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor

	// Arange creates a 1D tensor with values in [start, stop) increased by step.
	Arange(start, stop, step float32, dtype DType) Tensor

	// Forward schedules tensors for computation. Eager backends return
	// immediately; graph backends record the dependency.
	Forward(...Tensor) Context

	// Compute materializes the given tensors. Eager backends treat this
	// as a no-op since every operation is materialized on call.
	Compute(...Tensor)

	Close()
}

// Tensor represents a multi-dimensional array with various operations.
//
// Operations never mutate their receiver; each returns a new tensor owned by
// the context that produced it. Shape violations are programming errors and
// panic rather than returning an error (see the package documentation on
// unrecoverable numeric failures).
type Tensor interface {
	Dim(n int) int
	Stride(n int) int

	Shape() []int
	DType() DType
	Cast(ctx Context, dtype DType) Tensor

	Bytes() []byte
	Floats() []float32

	Add(ctx Context, t2 Tensor) Tensor
	Sub(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor
	Div(ctx Context, t2 Tensor) Tensor
	Scale(ctx Context, s float64) Tensor

	// Matmul multiplies batched matrices: (..., M, K) x (..., K, N) -> (..., M, N).
	// Leading batch dimensions must match or be 1 (broadcast).
	Matmul(ctx Context, t2 Tensor) Tensor

	// Softmax normalizes along the given axis. Negative axes count from the back.
	Softmax(ctx Context, axis int) Tensor

	Sum(ctx Context, axis int, keepDims bool) Tensor
	Mean(ctx Context, axis int, keepDims bool) Tensor

	RELU(ctx Context) Tensor
	GELU(ctx Context) Tensor

	// Conv2D applies a 2D convolution with weight (OC, IC, KH, KW) to the
	// receiver (N, IC, H, W) using the given strides and paddings.
	Conv2D(ctx Context, weight Tensor, s0, s1, p0, p1 int) Tensor

	// Unfold extracts sliding k x k blocks from (N, C, H, W) into
	// (N, C*k*k, L) with the given stride and zero padding, matching the
	// usual im2col layout (channel-major, then kernel row, then kernel column).
	Unfold(ctx Context, k, stride, pad int) Tensor

	// GridSample bilinearly samples the receiver (N, C, H, W) at absolute
	// pixel coordinates coords (N, 2, Ho, Wo), channel 0 = x, channel 1 = y.
	// Samples outside the input are zero.
	GridSample(ctx Context, coords Tensor) Tensor

	// Interpolate resizes (N, C, H, W) to the target dims (N, C, Ho, Wo).
	// Bilinear resizing aligns the corner samples of input and output.
	Interpolate(ctx Context, dims [4]int, samplingMode SamplingMode) Tensor

	Reshape(ctx Context, shape ...int) Tensor
	Permute(ctx Context, order ...int) Tensor
	Contiguous(ctx Context) Tensor

	Concat(ctx Context, t2 Tensor, axis int) Tensor
	Chunk(ctx Context, axis, n int) []Tensor
	Slice(ctx Context, axis, low, high int) Tensor

	Duplicate(ctx Context) Tensor

	// Detach returns a fresh copy that shares no storage with the receiver.
	// In a forward-only engine this is the stop-gradient barrier: values
	// flowing through a detached tensor are snapshots, never views.
	Detach(ctx Context) Tensor
}
