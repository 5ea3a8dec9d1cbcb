// Package dispatch runs one analysis per image concurrently and collects
// every outcome, successful or not, into a report ordered like the request.
package dispatch

import (
	"context"
	"fmt"
	"image"
	"iter"
	"slices"
	"time"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/internal/logger"
	"go-capture-inspector/internal/observer"
	"go-capture-inspector/internal/repository"
	"go-capture-inspector/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AnalyzeFunc analyzes one image buffer
type AnalyzeFunc func(ctx context.Context, buffer image.Image) (models.AnalysisResult, error)

// Preflight reports whether the analysis collaborator can be reached at
// all. A failing preflight fails the whole batch before any image is tried.
type Preflight func(ctx context.Context) error

// Outcome is the tagged success or failure of one image. Exactly one of
// Result and Err is set.
type Outcome struct {
	SourceImageID string
	Result        *models.AnalysisResult
	Err           error
	Duration      time.Duration
}

// Succeeded reports whether the outcome carries a result
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// BatchReport holds one outcome per dispatched image, in request order
type BatchReport struct {
	BatchID     string
	StartedAt   time.Time
	Outcomes    []Outcome
	BatchFailed bool
}

// Successes returns the successful results in request order
func (r BatchReport) Successes() []models.AnalysisResult {
	results := make([]models.AnalysisResult, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			results = append(results, *o.Result)
		}
	}
	return results
}

// Failures returns the failed outcomes in request order
func (r BatchReport) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Record converts the report into its archived form
func (r BatchReport) Record() models.BatchRecord {
	record := models.BatchRecord{
		BatchID:     r.BatchID,
		StartedAt:   r.StartedAt,
		BatchFailed: r.BatchFailed,
		Outcomes:    make([]models.OutcomeSummary, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		summary := models.OutcomeSummary{SourceImageID: o.SourceImageID, Result: o.Result}
		if o.Err != nil {
			summary.Error = o.Err.Error()
		}
		record.Outcomes = append(record.Outcomes, summary)
	}
	return record
}

// Dispatcher fans a batch out to concurrent analyses
type Dispatcher struct {
	limit       int
	taskTimeout time.Duration
	preflight   Preflight
	events      observer.Subject
	newID       func() string
	now         func() time.Time
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLimit caps the number of analyses in flight; n <= 0 means no cap
func WithLimit(n int) Option {
	return func(d *Dispatcher) {
		d.limit = n
	}
}

// WithTaskTimeout bounds each analysis; zero means no bound
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.taskTimeout = timeout
	}
}

// WithPreflight sets the check run before any image is dispatched
func WithPreflight(p Preflight) Option {
	return func(d *Dispatcher) {
		d.preflight = p
	}
}

// WithEvents publishes batch and per-image events to events
func WithEvents(events observer.Subject) Option {
	return func(d *Dispatcher) {
		if events != nil {
			d.events = events
		}
	}
}

// WithBatchIDGenerator overrides how batch ids are minted
func WithBatchIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) {
		d.newID = gen
	}
}

// NewDispatcher creates a dispatcher with no concurrency cap
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		events: observer.Nop{},
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchSeq collects images and dispatches them
func (d *Dispatcher) DispatchSeq(ctx context.Context, images iter.Seq[repository.CapturedImage], analyze AnalyzeFunc) (BatchReport, error) {
	return d.Dispatch(ctx, slices.Collect(images), analyze)
}

// Dispatch analyzes every image and waits for all of them to settle.
//
// An empty batch returns at once without calling analyze. One image's
// failure never stops the others; it is recorded in that image's Outcome.
// The returned error is non-nil only when the batch could not be attempted,
// in which case the report has BatchFailed set and no outcomes. Once the
// preflight passes, cancelling ctx no longer stops the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, images []repository.CapturedImage, analyze AnalyzeFunc) (BatchReport, error) {
	if len(images) == 0 {
		return BatchReport{Outcomes: []Outcome{}}, nil
	}

	report := BatchReport{
		BatchID:   d.newID(),
		StartedAt: d.now(),
	}
	log := logger.WithFields(logrus.Fields{
		"batch_id": report.BatchID,
		"images":   len(images),
	})

	if err := d.checkPreflight(ctx); err != nil {
		report.BatchFailed = true
		report.Outcomes = []Outcome{}
		log.WithError(err).Error("Batch could not be dispatched")
		d.events.NotifyObservers(ctx, observer.Event{
			EventType:    observer.BatchFailed,
			BatchID:      report.BatchID,
			ErrorMessage: err.Error(),
		})
		return report, apperrors.NewBatchDispatchFailureError("batch could not be dispatched", err)
	}

	log.Info("Dispatching batch")
	d.events.NotifyObservers(ctx, observer.Event{
		EventType: observer.BatchStarted,
		BatchID:   report.BatchID,
		Success:   true,
		Metadata:  map[string]interface{}{"images": len(images)},
	})

	taskCtx := context.WithoutCancel(ctx)
	outcomes := make([]Outcome, len(images))

	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}
	for i, img := range images {
		g.Go(func() error {
			outcomes[i] = d.run(taskCtx, report.BatchID, img, analyze)
			return nil
		})
	}
	// Tasks record failures in their outcome and always return nil
	_ = g.Wait()

	report.Outcomes = outcomes
	failed := 0
	for _, o := range outcomes {
		d.publishOutcome(ctx, report.BatchID, o)
		if !o.Succeeded() {
			failed++
		}
	}

	log.WithFields(logrus.Fields{
		"succeeded": len(outcomes) - failed,
		"failed":    failed,
		"duration":  d.now().Sub(report.StartedAt).String(),
	}).Info("Batch settled")
	d.events.NotifyObservers(ctx, observer.Event{
		EventType:      observer.BatchCompleted,
		BatchID:        report.BatchID,
		ProcessingTime: d.now().Sub(report.StartedAt),
		Success:        failed == 0,
		Metadata: map[string]interface{}{
			"succeeded": len(outcomes) - failed,
			"failed":    failed,
		},
	})
	return report, nil
}

func (d *Dispatcher) checkPreflight(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.preflight == nil {
		return nil
	}
	return d.preflight(ctx)
}

// run analyzes one image, converting a panic into a failed outcome
func (d *Dispatcher) run(ctx context.Context, batchID string, img repository.CapturedImage, analyze AnalyzeFunc) (outcome Outcome) {
	outcome.SourceImageID = img.ID
	start := time.Now()
	defer func() {
		outcome.Duration = time.Since(start)
		if r := recover(); r != nil {
			outcome.Result = nil
			outcome.Err = apperrors.NewAnalysisFailureError(fmt.Sprintf("analysis panicked: %v", r), nil)
		}
	}()

	if d.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.taskTimeout)
		defer cancel()
	}

	result, err := analyze(ctx, img.Buffer)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeAnalysisFailure) {
			err = apperrors.NewAnalysisFailureError("analysis failed", err)
		}
		outcome.Err = err
		return outcome
	}
	result.ImageID = img.ID
	result.BatchID = batchID
	outcome.Result = &result
	return outcome
}

func (d *Dispatcher) publishOutcome(ctx context.Context, batchID string, o Outcome) {
	event := observer.Event{
		EventType:      observer.AnalysisCompleted,
		ImageID:        o.SourceImageID,
		BatchID:        batchID,
		ProcessingTime: o.Duration,
		Success:        o.Succeeded(),
	}
	if !o.Succeeded() {
		event.EventType = observer.AnalysisFailed
		event.ErrorMessage = o.Err.Error()
		logger.WithFields(logrus.Fields{
			"batch_id": batchID,
			"image_id": o.SourceImageID,
		}).WithError(o.Err).Warn("Image analysis failed")
	}
	d.events.NotifyObservers(ctx, event)
}
