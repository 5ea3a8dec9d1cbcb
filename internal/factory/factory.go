package factory

import (
	"context"
	"fmt"

	"go-capture-inspector/internal/analyzer"
	"go-capture-inspector/internal/camera"
	"go-capture-inspector/internal/config"
	"go-capture-inspector/internal/storage"
	"go-capture-inspector/pkg/imagecodec"
	"go-capture-inspector/pkg/validation"
)

// AnalyzerType represents different analysis collaborators
type AnalyzerType string

const (
	// LocalAnalyzer runs the quality checks in process
	LocalAnalyzer AnalyzerType = "local"
	// RemoteAnalyzer posts images to an analysis service
	RemoteAnalyzer AnalyzerType = "remote"
)

// CameraType represents different camera feeds
type CameraType string

const (
	// StaticCamera synthesizes frames, for demos and tests
	StaticCamera CameraType = "static"
	// HTTPCamera pulls frames from a snapshot endpoint
	HTTPCamera CameraType = "http"
)

// SinkType represents different result consumers
type SinkType string

const (
	// MemorySink keeps results in process only
	MemorySink SinkType = "memory"
	// AzureSink also archives results to Azure Blob Storage
	AzureSink SinkType = "azure"
)

// Static frames use a 720p landscape feed
const (
	staticFrameWidth  = 1280
	staticFrameHeight = 720
)

// AnalyzerFactory creates image analyzers
type AnalyzerFactory interface {
	CreateAnalyzer(analyzerType AnalyzerType) (analyzer.Analyzer, error)
}

// CameraFactory creates camera devices
type CameraFactory interface {
	CreateCamera(cameraType CameraType) (camera.Device, error)
}

// SinkFactory creates result sinks. The in-memory history is always part of
// the returned sink so results can be listed back.
type SinkFactory interface {
	CreateSink(ctx context.Context, sinkType SinkType, history *storage.MemorySink) (storage.ResultSink, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	cfg *config.Config
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config) AnalyzerFactory {
	return &analyzerFactory{cfg: cfg}
}

// CreateAnalyzer creates an analyzer based on the specified type
func (f *analyzerFactory) CreateAnalyzer(analyzerType AnalyzerType) (analyzer.Analyzer, error) {
	switch analyzerType {
	case LocalAnalyzer:
		return analyzer.NewQualityAnalyzer(localOptions(f.cfg)), nil
	case RemoteAnalyzer:
		if err := endpointValidator(f.cfg).ValidateEndpointURL(f.cfg.AnalyzerURL); err != nil {
			return nil, err
		}
		remote, err := analyzer.NewRemoteAnalyzer(f.cfg.AnalyzerURL, f.cfg.AnalysisTimeout, imagecodec.JPEG)
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unsupported analyzer type: %s", analyzerType)
	}
}

// localOptions starts from the configured profile and applies any
// individual overrides
func localOptions(cfg *config.Config) analyzer.Options {
	opts := analyzer.DefaultOptions()
	if cfg.AnalyzerProfile == "strict" {
		opts = analyzer.StrictOptions()
	}
	if cfg.BlurThreshold > 0 || cfg.OverexposureThreshold > 0 || cfg.OversaturationThreshold > 0 {
		opts = opts.WithCustomThresholds(
			orDefault(cfg.BlurThreshold, opts.BlurThreshold),
			orDefault(cfg.OverexposureThreshold, opts.OverexposureThreshold),
			orDefault(cfg.OversaturationThreshold, opts.OversaturationThreshold),
		)
	}
	if cfg.MinImageWidth > 0 || cfg.MinImageHeight > 0 {
		opts = opts.WithMinResolution(
			orDefault(cfg.MinImageWidth, opts.MinWidth),
			orDefault(cfg.MinImageHeight, opts.MinHeight),
		)
	}
	if cfg.SkipWhiteBalance {
		opts = opts.WithoutWhiteBalance()
	}
	return opts
}

func orDefault[T int | float64](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// endpointValidator restricts collaborator URLs to the configured hosts
func endpointValidator(cfg *config.Config) *validation.URLValidator {
	return validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.AllowedHosts)
}

// cameraFactory implements CameraFactory
type cameraFactory struct {
	cfg *config.Config
}

// NewCameraFactory creates a new camera factory
func NewCameraFactory(cfg *config.Config) CameraFactory {
	return &cameraFactory{cfg: cfg}
}

// CreateCamera creates a camera device based on the specified type
func (f *cameraFactory) CreateCamera(cameraType CameraType) (camera.Device, error) {
	switch cameraType {
	case StaticCamera:
		return camera.NewStaticDevice(staticFrameWidth, staticFrameHeight), nil
	case HTTPCamera:
		if err := endpointValidator(f.cfg).ValidateEndpointURL(f.cfg.CameraURL); err != nil {
			return nil, err
		}
		device, err := camera.NewHTTPDevice(f.cfg.CameraURL, f.cfg.RequestTimeout)
		if err != nil {
			return nil, err
		}
		return device, nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cameraType)
	}
}

// sinkFactory implements SinkFactory
type sinkFactory struct {
	cfg *config.Config
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config) SinkFactory {
	return &sinkFactory{cfg: cfg}
}

// CreateSink creates a result sink based on the specified type
func (f *sinkFactory) CreateSink(ctx context.Context, sinkType SinkType, history *storage.MemorySink) (storage.ResultSink, error) {
	switch sinkType {
	case MemorySink:
		return history, nil
	case AzureSink:
		azure, err := storage.NewAzureResultSink(ctx, f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		return storage.TeeSink{history, azure}, nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", sinkType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	CameraFactory   CameraFactory
	SinkFactory     SinkFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(cfg),
		CameraFactory:   NewCameraFactory(cfg),
		SinkFactory:     NewSinkFactory(cfg),
	}
}
