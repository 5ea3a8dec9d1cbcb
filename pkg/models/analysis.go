package models

import "time"

// AnalysisResult is the outcome of analyzing one captured image.
// Local and remote analyzers produce the same shape, so results can be
// archived and listed without knowing which analyzer ran.
type AnalysisResult struct {
	ID                string    `json:"id"`
	ImageID           string    `json:"image_id"`
	BatchID           string    `json:"batch_id,omitempty"`
	Analyzer          string    `json:"analyzer"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`

	Quality Quality      `json:"quality"`
	Metrics ImageMetrics `json:"metrics"`

	// Human-readable quality issues; empty when Quality.IsValid
	Errors []string `json:"errors,omitempty"`
}

// Quality represents image quality assessment
type Quality struct {
	Overexposed     bool `json:"overexposed"`
	Oversaturated   bool `json:"oversaturated"`
	IncorrectWB     bool `json:"incorrect_white_balance"`
	Blurry          bool `json:"blurry"`
	IsTooDark       bool `json:"is_too_dark,omitempty"`
	IsTooBright     bool `json:"is_too_bright,omitempty"`
	IsLowResolution bool `json:"is_low_resolution,omitempty"`
	IsValid         bool `json:"is_valid"`
}

// ImageMetrics represents image analysis metrics
type ImageMetrics struct {
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	LaplacianVar   float64    `json:"laplacian_variance"`
	AvgLuminance   float64    `json:"average_luminance"`
	AvgSaturation  float64    `json:"average_saturation"`
	ChannelBalance [3]float64 `json:"channel_balance"`
	Brightness     float64    `json:"brightness"`
}

// BatchRecord is the archived summary of one dispatch
type BatchRecord struct {
	BatchID     string           `json:"batch_id"`
	StartedAt   time.Time        `json:"started_at"`
	BatchFailed bool             `json:"batch_failed"`
	Outcomes    []OutcomeSummary `json:"outcomes"`
}

// OutcomeSummary is a tagged success/failure for one image of a batch
type OutcomeSummary struct {
	SourceImageID string          `json:"source_image_id"`
	Result        *AnalysisResult `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Succeeded reports whether the outcome carries a result
func (o OutcomeSummary) Succeeded() bool {
	return o.Result != nil && o.Error == ""
}
