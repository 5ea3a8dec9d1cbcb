package analyzer

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"time"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/pkg/models"

	"github.com/google/uuid"
)

// LocalAnalyzerName identifies results produced in-process
const LocalAnalyzerName = "local-quality"

// QualityAnalyzer scores captures for blur, exposure, saturation and
// white balance without leaving the process
type QualityAnalyzer struct {
	options           Options
	metricsCalculator MetricsCalculator
	now               func() time.Time
}

// NewQualityAnalyzer creates a local analyzer with the given thresholds
func NewQualityAnalyzer(options Options) *QualityAnalyzer {
	return &QualityAnalyzer{
		options:           options,
		metricsCalculator: NewMetricsCalculator(),
		now:               time.Now,
	}
}

// Options returns the thresholds in use
func (qa *QualityAnalyzer) Options() Options {
	return qa.options
}

// Analyze computes metrics for img and flags every threshold it crosses
func (qa *QualityAnalyzer) Analyze(ctx context.Context, img image.Image) (models.AnalysisResult, error) {
	start := qa.now()
	if img == nil || img.Bounds().Empty() {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("image has no pixels", nil)
	}

	m, err := qa.metricsCalculator.CalculateBasicMetrics(ctx, img)
	if err != nil {
		return models.AnalysisResult{}, apperrors.NewAnalysisFailureError("analysis interrupted", err)
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)

	result := models.AnalysisResult{
		ID:        uuid.NewString(),
		Analyzer:  LocalAnalyzerName,
		Timestamp: start,
		Metrics: models.ImageMetrics{
			Width:          bounds.Dx(),
			Height:         bounds.Dy(),
			LaplacianVar:   qa.metricsCalculator.CalculateLaplacianVariance(gray),
			AvgLuminance:   m.AvgLuminance,
			AvgSaturation:  m.AvgSaturation,
			ChannelBalance: [3]float64{m.AvgR, m.AvgG, m.AvgB},
			Brightness:     qa.metricsCalculator.CalculateBrightness(gray),
		},
	}

	qa.assess(&result)
	result.ProcessingTimeSec = qa.now().Sub(start).Seconds()
	return result, nil
}

// assess sets the quality flags and issue messages from the metrics
func (qa *QualityAnalyzer) assess(result *models.AnalysisResult) {
	opts := qa.options
	m := result.Metrics
	q := &result.Quality

	q.Blurry = m.LaplacianVar <= opts.BlurThreshold
	q.Overexposed = m.AvgLuminance > opts.OverexposureThreshold
	q.Oversaturated = m.AvgSaturation > opts.OversaturationThreshold
	if !opts.SkipWhiteBalance {
		q.IncorrectWB = hasWhiteBalanceIssue(m.ChannelBalance, opts.WhiteBalanceThreshold)
	}
	q.IsTooDark = m.Brightness < opts.DarkThreshold
	q.IsTooBright = m.Brightness > opts.BrightThreshold
	q.IsLowResolution = m.Width < opts.MinWidth || m.Height < opts.MinHeight

	var issues []string
	if q.Blurry {
		issues = append(issues, fmt.Sprintf("image is blurry (laplacian variance %.1f <= %.1f)", m.LaplacianVar, opts.BlurThreshold))
	}
	if q.Overexposed {
		issues = append(issues, fmt.Sprintf("image is overexposed (luminance %.2f > %.2f)", m.AvgLuminance, opts.OverexposureThreshold))
	}
	if q.Oversaturated {
		issues = append(issues, fmt.Sprintf("image is oversaturated (saturation %.2f > %.2f)", m.AvgSaturation, opts.OversaturationThreshold))
	}
	if q.IncorrectWB {
		issues = append(issues, "image has incorrect white balance")
	}
	if q.IsTooDark {
		issues = append(issues, fmt.Sprintf("image is too dark (brightness %.0f)", m.Brightness))
	}
	if q.IsTooBright {
		issues = append(issues, fmt.Sprintf("image is too bright (brightness %.0f)", m.Brightness))
	}
	if q.IsLowResolution {
		issues = append(issues, fmt.Sprintf("resolution %dx%d is below %dx%d", m.Width, m.Height, opts.MinWidth, opts.MinHeight))
	}

	result.Errors = issues
	q.IsValid = len(issues) == 0
}

// hasWhiteBalanceIssue checks whether any channel strays from the others
func hasWhiteBalanceIssue(balance [3]float64, threshold float64) bool {
	r, g, b := balance[0], balance[1], balance[2]
	maxDiff := math.Max(math.Abs(r-g), math.Max(math.Abs(r-b), math.Abs(g-b)))
	return maxDiff > threshold
}

var _ Analyzer = (*QualityAnalyzer)(nil)
