// tensor_nn.go - Neuronale Netzwerk Operationen
// Enthaelt: Softmax, Aktivierungen (RELU, GELU), Conv2D, Unfold, GridSample, Interpolate
package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/7blacky7/flowmatch/ml"
)

// Softmax normalisiert numerisch stabil entlang der gegebenen Achse.
func (t *Tensor) Softmax(ctx ml.Context, axis int) ml.Tensor {
	axis = normAxis(axis, len(t.shape))
	outer, n, inner := t.axisSpans(axis)

	out := newTensor(ml.DTypeF32, t.shape)
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			maxv := float32(math32.Inf(-1))
			for i := 0; i < n; i++ {
				if v := t.data[(o*n+i)*inner+in]; v > maxv {
					maxv = v
				}
			}

			var sum float32
			for i := 0; i < n; i++ {
				e := math32.Exp(t.data[(o*n+i)*inner+in] - maxv)
				out.data[(o*n+i)*inner+in] = e
				sum += e
			}

			for i := 0; i < n; i++ {
				out.data[(o*n+i)*inner+in] /= sum
			}
		}
	}
	return out
}

// RELU setzt negative Werte auf 0.
func (t *Tensor) RELU(ctx ml.Context) ml.Tensor {
	out := newTensor(ml.DTypeF32, t.shape)
	for i, v := range t.data {
		if v > 0 {
			out.data[i] = v
		}
	}
	return out
}

// GELU berechnet die exakte Gaussian Error Linear Unit.
func (t *Tensor) GELU(ctx ml.Context) ml.Tensor {
	out := newTensor(ml.DTypeF32, t.shape)
	for i, v := range t.data {
		out.data[i] = 0.5 * v * (1 + math32.Erf(v/math32.Sqrt2))
	}
	return out
}

// im2col extrahiert sliding Bloecke aus einer (C, H, W)-Ebene in das
// Layout (C*kh*kw, OH*OW): Kanal-major, dann Kernel-Zeile, dann Kernel-Spalte.
func im2col(src []float32, c, h, w, kh, kw, sh, sw, ph, pw int) ([]float32, int, int) {
	oh := (h+2*ph-kh)/sh + 1
	ow := (w+2*pw-kw)/sw + 1
	l := oh * ow

	cols := make([]float32, c*kh*kw*l)
	for ci := 0; ci < c; ci++ {
		for ki := 0; ki < kh; ki++ {
			for kj := 0; kj < kw; kj++ {
				row := ((ci*kh+ki)*kw + kj) * l
				for oy := 0; oy < oh; oy++ {
					y := oy*sh - ph + ki
					for ox := 0; ox < ow; ox++ {
						x := ox*sw - pw + kj
						if y >= 0 && y < h && x >= 0 && x < w {
							cols[row+oy*ow+ox] = src[(ci*h+y)*w+x]
						}
					}
				}
			}
		}
	}
	return cols, oh, ow
}

// Conv2D faltet (N, IC, H, W) mit weight (OC, IC, KH, KW) via im2col + Gemm.
func (t *Tensor) Conv2D(ctx ml.Context, weight ml.Tensor, s0, s1, p0, p1 int) ml.Tensor {
	wt := weight.(*Tensor)
	if len(t.shape) != 4 || len(wt.shape) != 4 {
		panic("cpu: conv2d requires rank 4 input and weight")
	}

	n, ic, h, w := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	oc, kh, kw := wt.shape[0], wt.shape[2], wt.shape[3]
	if wt.shape[1] != ic {
		panic(fmt.Sprintf("cpu: conv2d channel mismatch: input %d, weight %d", ic, wt.shape[1]))
	}

	oh := (h+2*p0-kh)/s0 + 1
	ow := (w+2*p1-kw)/s1 + 1
	out := newTensor(ml.DTypeF32, []int{n, oc, oh, ow})

	ck := ic * kh * kw
	wm := blas32.General{Rows: oc, Cols: ck, Stride: ck, Data: wt.data}

	var g errgroup.Group
	if c, ok := ctx.(*Context); ok && c.threads > 0 {
		g.SetLimit(c.threads)
	}

	for b := 0; b < n; b++ {
		b := b
		g.Go(func() error {
			cols, _, _ := im2col(t.data[b*ic*h*w:(b+1)*ic*h*w], ic, h, w, kh, kw, s0, s1, p0, p1)
			cm := blas32.General{Rows: ck, Cols: oh * ow, Stride: oh * ow, Data: cols}
			om := blas32.General{Rows: oc, Cols: oh * ow, Stride: oh * ow, Data: out.data[b*oc*oh*ow : (b+1)*oc*oh*ow]}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, wm, cm, 0, om)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return out
}

// Unfold extrahiert sliding k x k Bloecke aus (N, C, H, W) nach (N, C*k*k, L).
func (t *Tensor) Unfold(ctx ml.Context, k, stride, pad int) ml.Tensor {
	if len(t.shape) != 4 {
		panic("cpu: unfold requires rank 4 input")
	}

	n, c, h, w := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	oh := (h+2*pad-k)/stride + 1
	ow := (w+2*pad-k)/stride + 1

	out := newTensor(ml.DTypeF32, []int{n, c * k * k, oh * ow})
	for b := 0; b < n; b++ {
		cols, _, _ := im2col(t.data[b*c*h*w:(b+1)*c*h*w], c, h, w, k, k, stride, stride, pad, pad)
		copy(out.data[b*len(cols):], cols)
	}
	return out
}

// GridSample sampelt (N, C, H, W) bilinear an absoluten Pixel-Koordinaten
// coords (N, 2, Ho, Wo); Kanal 0 = x, Kanal 1 = y. Ausserhalb liegende
// Nachbarn tragen 0 bei (zero padding).
func (t *Tensor) GridSample(ctx ml.Context, coords ml.Tensor) ml.Tensor {
	ct := coords.(*Tensor)
	if len(t.shape) != 4 || len(ct.shape) != 4 || ct.shape[1] != 2 {
		panic("cpu: grid sample requires (N,C,H,W) input and (N,2,Ho,Wo) coords")
	}
	if ct.shape[0] != t.shape[0] {
		panic("cpu: grid sample batch mismatch")
	}

	n, c, h, w := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	oh, ow := ct.shape[2], ct.shape[3]

	out := newTensor(ml.DTypeF32, []int{n, c, oh, ow})
	for b := 0; b < n; b++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				x := ct.data[((b*2+0)*oh+oy)*ow+ox]
				y := ct.data[((b*2+1)*oh+oy)*ow+ox]

				x0 := math32.Floor(x)
				y0 := math32.Floor(y)
				wx := x - x0
				wy := y - y0

				for ci := 0; ci < c; ci++ {
					var v float32
					for _, s := range [4]struct {
						dy, dx int
						w      float32
					}{
						{0, 0, (1 - wy) * (1 - wx)},
						{0, 1, (1 - wy) * wx},
						{1, 0, wy * (1 - wx)},
						{1, 1, wy * wx},
					} {
						yy, xx := int(y0)+s.dy, int(x0)+s.dx
						if yy >= 0 && yy < h && xx >= 0 && xx < w {
							v += s.w * t.data[((b*c+ci)*h+yy)*w+xx]
						}
					}
					out.data[((b*c+ci)*oh+oy)*ow+ox] = v
				}
			}
		}
	}
	return out
}

// Interpolate skaliert (N, C, H, W) auf die Zielform dims.
// Bilinear richtet die Eckpunkte von Ein- und Ausgabe aufeinander aus.
func (t *Tensor) Interpolate(ctx ml.Context, dims [4]int, samplingMode ml.SamplingMode) ml.Tensor {
	if len(t.shape) != 4 {
		panic("cpu: interpolate requires rank 4 input")
	}
	if dims[0] != t.shape[0] || dims[1] != t.shape[1] {
		panic("cpu: interpolate cannot change batch or channel dimensions")
	}

	n, c, h, w := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	oh, ow := dims[2], dims[3]

	out := newTensor(ml.DTypeF32, []int{n, c, oh, ow})

	scale := func(out, in int) float32 {
		if out <= 1 {
			return 0
		}
		return float32(in-1) / float32(out-1)
	}
	sy, sx := scale(oh, h), scale(ow, w)

	for b := 0; b < n; b++ {
		for ci := 0; ci < c; ci++ {
			plane := t.data[(b*c+ci)*h*w:]
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					var v float32
					switch samplingMode {
					case ml.SamplingModeBilinear:
						y, x := float32(oy)*sy, float32(ox)*sx
						y0, x0 := int(math32.Floor(y)), int(math32.Floor(x))
						y1, x1 := min(y0+1, h-1), min(x0+1, w-1)
						wy, wx := y-float32(y0), x-float32(x0)

						v = (1-wy)*(1-wx)*plane[y0*w+x0] +
							(1-wy)*wx*plane[y0*w+x1] +
							wy*(1-wx)*plane[y1*w+x0] +
							wy*wx*plane[y1*w+x1]
					default:
						y := min(h-1, oy*h/oh)
						x := min(w-1, ox*w/ow)
						v = plane[y*w+x]
					}
					out.data[((b*c+ci)*oh+oy)*ow+ox] = v
				}
			}
		}
	}
	return out
}
