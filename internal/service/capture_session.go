package service

import (
	"context"
	"image"
	"io"
	"slices"
	"sync"

	"go-capture-inspector/internal/analyzer"
	"go-capture-inspector/internal/camera"
	"go-capture-inspector/internal/crop"
	"go-capture-inspector/internal/dispatch"
	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/internal/logger"
	"go-capture-inspector/internal/repository"
	"go-capture-inspector/internal/storage"
	"go-capture-inspector/pkg/imagecodec"
	"go-capture-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

// CameraStatus describes the capture controller
type CameraStatus struct {
	State  camera.State
	Cause  string
	Facing camera.Facing
}

// CaptureSession is the single owner of the captured images and the camera.
// Every operation is serialized, so the store, the cropper and the
// controller are never touched by two callers at once.
type CaptureSession interface {
	CameraStatus() CameraStatus
	StartCamera(ctx context.Context) error
	StopCamera() error
	RetryCamera(ctx context.Context) error

	Snapshot(ctx context.Context) (repository.CapturedImage, error)
	// CaptureOnce snapshots the active feed, or briefly acquires the
	// camera for a single frame and releases it again when it is not running
	CaptureOnce(ctx context.Context) (repository.CapturedImage, error)
	Upload(ctx context.Context, r io.Reader) (repository.CapturedImage, error)

	Images() []repository.CapturedImage
	Image(id string) (repository.CapturedImage, error)
	LastImage() (repository.CapturedImage, error)
	ToggleSelection(id string) (repository.CapturedImage, error)
	SetSelectionAll(selected bool)
	Delete(id string)
	DeleteSelected() int
	Crop(id string, req crop.Request, display crop.Size) (repository.CapturedImage, image.Rectangle, error)

	// AnalyzeSelected dispatches the selected images and forwards the
	// successful results to the result sink
	AnalyzeSelected(ctx context.Context) (dispatch.BatchReport, error)
	History() []models.AnalysisResult

	Close() error
}

// captureSession implements CaptureSession
type captureSession struct {
	mu         sync.Mutex
	images     repository.ImageRepository
	camera     *camera.Controller
	cropper    *crop.Cropper
	dispatcher *dispatch.Dispatcher
	analyzer   analyzer.Analyzer
	sink       storage.ResultSink
	history    storage.HistoryReader
}

// NewCaptureSession creates a session over already wired components
func NewCaptureSession(
	images repository.ImageRepository,
	controller *camera.Controller,
	cropper *crop.Cropper,
	dispatcher *dispatch.Dispatcher,
	imageAnalyzer analyzer.Analyzer,
	sink storage.ResultSink,
	history storage.HistoryReader,
) CaptureSession {
	return &captureSession{
		images:     images,
		camera:     controller,
		cropper:    cropper,
		dispatcher: dispatcher,
		analyzer:   imageAnalyzer,
		sink:       sink,
		history:    history,
	}
}

// CameraStatus returns the controller's state
func (s *captureSession) CameraStatus() CameraStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CameraStatus{
		State:  s.camera.State(),
		Cause:  s.camera.Cause(),
		Facing: s.camera.Facing(),
	}
}

// StartCamera acquires the feed
func (s *captureSession) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.Start(ctx)
}

// StopCamera releases the feed
func (s *captureSession) StopCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.Stop()
}

// RetryCamera re-attempts acquisition after a failure
func (s *captureSession) RetryCamera(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.Retry(ctx)
}

// Snapshot captures a frame and stores it as a new selected image
func (s *captureSession) Snapshot(ctx context.Context) (repository.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.camera.Snapshot(ctx)
	if err != nil {
		return repository.CapturedImage{}, err
	}
	return s.images.Get(s.images.Add(frame))
}

// CaptureOnce captures one frame whether or not the camera is running
func (s *captureSession) CaptureOnce(ctx context.Context) (repository.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.camera.State() == camera.StateActive {
		frame, err := s.camera.Snapshot(ctx)
		if err != nil {
			return repository.CapturedImage{}, err
		}
		return s.images.Get(s.images.Add(frame))
	}

	var frame image.Image
	err := s.camera.Run(ctx, func(ctx context.Context, c *camera.Controller) error {
		var err error
		frame, err = c.Snapshot(ctx)
		return err
	})
	if err != nil {
		return repository.CapturedImage{}, err
	}
	return s.images.Get(s.images.Add(frame))
}

// Upload decodes an image file and stores it as a new selected image
func (s *captureSession) Upload(ctx context.Context, r io.Reader) (repository.CapturedImage, error) {
	img, format, err := imagecodec.Decode(r)
	if err != nil {
		return repository.CapturedImage{}, apperrors.NewValidationError("unsupported image upload", err)
	}
	if err := ctx.Err(); err != nil {
		return repository.CapturedImage{}, apperrors.NewInternalError("upload cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.images.Get(s.images.Add(img))
	if err == nil {
		logger.WithFields(logrus.Fields{
			"image_id": stored.ID,
			"format":   format,
		}).Debug("Image uploaded")
	}
	return stored, err
}

// Images lists every image in insertion order
func (s *captureSession) Images() []repository.CapturedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(s.images.All())
}

// Image returns one image
func (s *captureSession) Image(id string) (repository.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.Get(id)
}

// LastImage returns the most recently added image
func (s *captureSession) LastImage() (repository.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images.Last()
	if !ok {
		return repository.CapturedImage{}, apperrors.NewNotFoundError("no images captured", nil)
	}
	return img, nil
}

// ToggleSelection flips an image's selection and returns it
func (s *captureSession) ToggleSelection(id string) (repository.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.images.ToggleSelection(id); err != nil {
		return repository.CapturedImage{}, err
	}
	return s.images.Get(id)
}

// SetSelectionAll selects or deselects everything
func (s *captureSession) SetSelectionAll(selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images.SetSelectionAll(selected)
}

// Delete removes one image; unknown ids are ignored
func (s *captureSession) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images.Remove(id)
}

// DeleteSelected removes every selected image
func (s *captureSession) DeleteSelected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.RemoveWhere(func(img repository.CapturedImage) bool { return img.Selected })
}

// Crop replaces an image's buffer with the selected region
func (s *captureSession) Crop(id string, req crop.Request, display crop.Size) (repository.CapturedImage, image.Rectangle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rect, err := s.cropper.Apply(id, req, display)
	if err != nil {
		return repository.CapturedImage{}, image.Rectangle{}, err
	}
	img, err := s.images.Get(id)
	return img, rect, err
}

// AnalyzeSelected dispatches the images selected at call time. Selected
// yields a snapshot, so the lock is released while the batch runs and
// capture and selection stay usable. Dispatched buffers are immutable.
func (s *captureSession) AnalyzeSelected(ctx context.Context) (dispatch.BatchReport, error) {
	s.mu.Lock()
	selected := s.images.Selected()
	s.mu.Unlock()

	report, err := s.dispatcher.DispatchSeq(ctx, selected, s.analyzer.Analyze)
	if report.BatchID == "" {
		return report, err
	}

	// Results outlive the request that produced them
	sinkCtx := context.WithoutCancel(ctx)
	log := logger.WithField("batch_id", report.BatchID)
	if successes := report.Successes(); len(successes) > 0 {
		if serr := s.sink.StoreResults(sinkCtx, successes); serr != nil {
			log.WithError(serr).Error("Failed to store analysis results")
		}
	}
	if serr := s.sink.StoreBatch(sinkCtx, report.Record()); serr != nil {
		log.WithError(serr).Error("Failed to store batch record")
	}
	return report, err
}

// History lists stored results in arrival order
func (s *captureSession) History() []models.AnalysisResult {
	if s.history == nil {
		return []models.AnalysisResult{}
	}
	return s.history.History()
}

// Close releases the camera feed
func (s *captureSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.Close()
}
