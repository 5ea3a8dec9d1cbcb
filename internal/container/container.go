package container

import (
	"context"
	"fmt"
	"net/http"

	"go-capture-inspector/internal/analyzer"
	"go-capture-inspector/internal/camera"
	"go-capture-inspector/internal/config"
	"go-capture-inspector/internal/crop"
	"go-capture-inspector/internal/dispatch"
	"go-capture-inspector/internal/factory"
	"go-capture-inspector/internal/logger"
	"go-capture-inspector/internal/observer"
	"go-capture-inspector/internal/repository"
	"go-capture-inspector/internal/service"
	"go-capture-inspector/internal/storage"
	"go-capture-inspector/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	registry *prometheus.Registry
	analyzer analyzer.Analyzer
	session  service.CaptureSession
	handler  http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observer.NewMetricsObserver(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	events.Subscribe(metrics)

	components := factory.NewComponentFactory(cfg)

	imageAnalyzer, err := components.AnalyzerFactory.CreateAnalyzer(factory.AnalyzerType(cfg.Analyzer))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	device, err := components.CameraFactory.CreateCamera(factory.CameraType(cfg.CameraSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create camera: %w", err)
	}
	history := storage.NewMemorySink(cfg.HistoryLimit)
	sink, err := components.SinkFactory.CreateSink(ctx, factory.SinkType(cfg.ResultSink), history)
	if err != nil {
		return nil, fmt.Errorf("failed to create result sink: %w", err)
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithLimit(cfg.DispatchConcurrency),
		dispatch.WithTaskTimeout(cfg.AnalysisTimeout),
		dispatch.WithEvents(events),
	}
	if pinger, ok := imageAnalyzer.(analyzer.Pinger); ok {
		dispatchOpts = append(dispatchOpts, dispatch.WithPreflight(pinger.Ping))
	}

	images := repository.NewImageStore(repository.WithEvents(events))
	session := service.NewCaptureSession(
		images,
		camera.NewController(device, camera.ParseFacing(cfg.CameraFacing), events),
		crop.NewCropper(images, crop.NewTransform(cfg.MinCropSize)),
		dispatch.NewDispatcher(dispatchOpts...),
		imageAnalyzer,
		sink,
		history,
	)

	handler := transport.NewHandler(
		session,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		metrics,
		cfg,
	)

	logger.WithFields(logrus.Fields{
		"camera":      cfg.CameraSource,
		"analyzer":    cfg.Analyzer,
		"sink":        cfg.ResultSink,
		"concurrency": cfg.DispatchConcurrency,
	}).Info("Container initialized")

	return &Container{
		config:   cfg,
		registry: registry,
		analyzer: imageAnalyzer,
		session:  session,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Session returns the capture session
func (c *Container) Session() service.CaptureSession {
	return c.session
}

// Registry returns the Prometheus registry the metrics observer reports to
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Close releases the camera and any analyzer connections
func (c *Container) Close() error {
	err := c.session.Close()
	if closer, ok := c.analyzer.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
