package influence

import (
	"math"
	"sync"
)

// Blurrer diffuses a raw raster into dst. Both buffers are row-major with
// chans interleaved values per cell. Implementations must be finished with
// dst before returning and must keep every value in [0,1].
type Blurrer interface {
	Blur(dst, src []float64, cols, rows, chans int)
}

// Gaussian is a separable, truncated Gaussian kernel. Weights sum to 1, so a
// single written cell spreads its mass over at most (2*radius+1)^2 cells and
// anything farther away stays exactly 0.
type Gaussian struct {
	radius  int
	weights []float64
	workers int
}

// NewGaussian builds a kernel of the given radius (in cells). workers > 1
// splits each pass into row bands processed concurrently.
func NewGaussian(radius int, sigma float64, workers int) *Gaussian {
	if radius < 0 {
		radius = 0
	}
	if sigma <= 0 {
		sigma = math.Max(float64(radius)/2, 0.5)
	}
	if workers < 1 {
		workers = 1
	}
	w := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		w[i+radius] = v
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}
	return &Gaussian{radius: radius, weights: w, workers: workers}
}

// Radius is the kernel half-width in cells.
func (g *Gaussian) Radius() int { return g.radius }

func (g *Gaussian) Blur(dst, src []float64, cols, rows, chans int) {
	tmp := make([]float64, len(src))
	g.bands(rows, func(r0, r1 int) { g.horizontal(tmp, src, cols, chans, r0, r1) })
	g.bands(rows, func(r0, r1 int) { g.vertical(dst, tmp, cols, rows, chans, r0, r1) })
}

// bands runs fn over [0,rows) split into contiguous row ranges and waits for
// all of them.
func (g *Gaussian) bands(rows int, fn func(r0, r1 int)) {
	n := g.workers
	if n > rows {
		n = rows
	}
	if n <= 1 {
		fn(0, rows)
		return
	}
	step := (rows + n - 1) / n
	var wg sync.WaitGroup
	for r0 := 0; r0 < rows; r0 += step {
		r1 := min(r0+step, rows)
		wg.Add(1)
		go func(r0, r1 int) {
			defer wg.Done()
			fn(r0, r1)
		}(r0, r1)
	}
	wg.Wait()
}

func (g *Gaussian) horizontal(dst, src []float64, cols, chans, r0, r1 int) {
	for row := r0; row < r1; row++ {
		base := row * cols
		for col := 0; col < cols; col++ {
			out := (base + col) * chans
			for ch := 0; ch < chans; ch++ {
				dst[out+ch] = 0
			}
			for k := -g.radius; k <= g.radius; k++ {
				c := col + k
				if c < 0 || c >= cols {
					continue
				}
				w := g.weights[k+g.radius]
				in := (base + c) * chans
				for ch := 0; ch < chans; ch++ {
					dst[out+ch] += w * src[in+ch]
				}
			}
		}
	}
}

func (g *Gaussian) vertical(dst, src []float64, cols, rows, chans, r0, r1 int) {
	for row := r0; row < r1; row++ {
		for col := 0; col < cols; col++ {
			out := (row*cols + col) * chans
			for ch := 0; ch < chans; ch++ {
				dst[out+ch] = 0
			}
			for k := -g.radius; k <= g.radius; k++ {
				r := row + k
				if r < 0 || r >= rows {
					continue
				}
				w := g.weights[k+g.radius]
				in := (r*cols + col) * chans
				for ch := 0; ch < chans; ch++ {
					dst[out+ch] += w * src[in+ch]
				}
			}
			for ch := 0; ch < chans; ch++ {
				dst[out+ch] = clamp01(dst[out+ch])
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
