package analyzer

import (
	"context"
	"image"

	"go-capture-inspector/pkg/models"
)

// Analyzer analyzes one image buffer. Implementations must be safe for
// concurrent use: a batch calls Analyze once per image in parallel.
type Analyzer interface {
	Analyze(ctx context.Context, img image.Image) (models.AnalysisResult, error)
}

// Pinger is implemented by analyzers that can report, before a batch,
// whether they are reachable at all
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsCalculator handles image metrics computation
type MetricsCalculator interface {
	CalculateBasicMetrics(ctx context.Context, img image.Image) (Metrics, error)
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateBrightness(gray *image.Gray) float64
}
