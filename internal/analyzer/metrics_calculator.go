package analyzer

import (
	"context"
	"image"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Metrics holds per-image colour averages, each normalized to 0..1
type Metrics struct {
	AvgLuminance  float64
	AvgSaturation float64
	AvgR          float64
	AvgG          float64
	AvgB          float64
}

// metricsCalculator computes image statistics in horizontal strips and
// reduces them with gonum
type metricsCalculator struct {
	slicePool sync.Pool
	workers   int
}

// NewMetricsCalculator creates a calculator using one strip per CPU
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
		workers: runtime.NumCPU(),
	}
}

type stripSums struct {
	lum, sat, r, g, b float64
	pixels            int
}

// CalculateBasicMetrics computes average luminance, saturation and channel levels
func (mc *metricsCalculator) CalculateBasicMetrics(ctx context.Context, img image.Image) (Metrics, error) {
	bounds := img.Bounds()
	height := bounds.Dy()
	if bounds.Empty() {
		return Metrics{}, nil
	}

	strips := min(mc.workers, height)
	rowsPerStrip := (height + strips - 1) / strips
	sums := make([]stripSums, strips)

	g, ctx := errgroup.WithContext(ctx)
	for i := range strips {
		startY := bounds.Min.Y + i*rowsPerStrip
		endY := min(startY+rowsPerStrip, bounds.Max.Y)
		g.Go(func() error {
			var s stripSums
			for y := startY; y < endY; y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					rVal, gVal, bVal, _ := img.At(x, y).RGBA()
					rf := float64(rVal) / 65535.0
					gf := float64(gVal) / 65535.0
					bf := float64(bVal) / 65535.0

					sat, val := saturationValue(rf, gf, bf)
					s.sat += sat
					s.lum += val
					s.r += rf
					s.g += gf
					s.b += bf
					s.pixels++
				}
			}
			sums[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Metrics{}, err
	}

	var total stripSums
	for _, s := range sums {
		total.lum += s.lum
		total.sat += s.sat
		total.r += s.r
		total.g += s.g
		total.b += s.b
		total.pixels += s.pixels
	}
	if total.pixels == 0 {
		return Metrics{}, nil
	}

	n := float64(total.pixels)
	return Metrics{
		AvgLuminance:  total.lum / n,
		AvgSaturation: total.sat / n,
		AvgR:          total.r / n,
		AvgG:          total.g / n,
		AvgB:          total.b / n,
	}, nil
}

// CalculateLaplacianVariance returns the variance of the 4-neighbour
// Laplacian; sharp images score high, blurred ones near zero
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, top+bottom+left+right-4*center)
		}
	}

	return stat.Variance(data, nil)
}

// CalculateBrightness returns the mean grey level (0..255)
func (mc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Empty() {
		return 0
	}

	rows := make([]float64, 0, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		var sum float64
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
		rows = append(rows, sum/float64(b.Dx()))
	}
	return stat.Mean(rows, nil)
}

// saturationValue returns the HSV saturation and value of a normalized colour
func saturationValue(r, g, b float64) (s, v float64) {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	if hi == 0 {
		return 0, 0
	}
	return (hi - lo) / hi, hi
}
