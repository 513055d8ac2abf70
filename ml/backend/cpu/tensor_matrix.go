// tensor_matrix.go - Batched Matrix-Multiplikation
// Enthaelt: Matmul ueber gonum blas32, parallelisiert ueber die Batch-Dimensionen
package cpu

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/7blacky7/flowmatch/ml"
)

// Matmul multipliziert batched Matrizen: (..., M, K) x (..., K, N) -> (..., M, N).
// Batch-Dimensionen werden nach den Broadcast-Regeln ausgerichtet.
func (t *Tensor) Matmul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	a, b := t, t2.(*Tensor)
	if len(a.shape) < 2 || len(b.shape) < 2 {
		panic("cpu: matmul requires rank >= 2")
	}

	m, k := a.shape[len(a.shape)-2], a.shape[len(a.shape)-1]
	k2, n := b.shape[len(b.shape)-2], b.shape[len(b.shape)-1]
	if k != k2 {
		panic(fmt.Sprintf("cpu: matmul inner dimensions disagree: %v x %v", a.shape, b.shape))
	}

	batchShape := broadcastShape(a.shape[:len(a.shape)-2], b.shape[:len(b.shape)-2])
	batch := 1
	for _, d := range batchShape {
		batch *= d
	}

	outShape := append(append([]int{}, batchShape...), m, n)
	out := newTensor(ml.DTypeF32, outShape)

	aStrides := broadcastStrides(a.shape[:len(a.shape)-2], batchShape)
	bStrides := broadcastStrides(b.shape[:len(b.shape)-2], batchShape)

	// Batch-Offsets hostseitig aufzaehlen, Gemm pro Batch parallel
	aOff := make([]int, batch)
	bOff := make([]int, batch)
	idx := make([]int, len(batchShape))
	var ai, bi int
	for i := 0; i < batch; i++ {
		aOff[i], bOff[i] = ai*m*k, bi*k*n

		for d := len(batchShape) - 1; d >= 0; d-- {
			idx[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if idx[d] < batchShape[d] {
				break
			}
			idx[d] = 0
			ai -= aStrides[d] * batchShape[d]
			bi -= bStrides[d] * batchShape[d]
		}
	}

	var g errgroup.Group
	if c, ok := ctx.(*Context); ok && c.threads > 0 {
		g.SetLimit(c.threads)
	}

	for i := 0; i < batch; i++ {
		i := i
		g.Go(func() error {
			am := blas32.General{Rows: m, Cols: k, Stride: k, Data: a.data[aOff[i] : aOff[i]+m*k]}
			bm := blas32.General{Rows: k, Cols: n, Stride: n, Data: b.data[bOff[i] : bOff[i]+k*n]}
			cm := blas32.General{Rows: m, Cols: n, Stride: n, Data: out.data[i*m*n : (i+1)*m*n]}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, am, bm, 0, cm)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return out
}
