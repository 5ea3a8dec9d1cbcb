package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is a change notification emitted by the capture core
type Event struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	ImageID        string                 `json:"image_id,omitempty"`
	BatchID        string                 `json:"batch_id,omitempty"`
	State          string                 `json:"state,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time,omitempty"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of event
type EventType string

const (
	// ImageAdded when a new image enters the store
	ImageAdded EventType = "image_added"
	// ImageRemoved when an image is deleted from the store
	ImageRemoved EventType = "image_removed"
	// SelectionChanged when one or more selection flags change
	SelectionChanged EventType = "selection_changed"
	// BufferReplaced when an image's pixels are replaced by a crop
	BufferReplaced EventType = "buffer_replaced"
	// CameraStateChanged when the capture controller transitions
	CameraStateChanged EventType = "camera_state_changed"
	// BatchStarted when a dispatch begins
	BatchStarted EventType = "batch_started"
	// BatchCompleted when every image of a batch has settled
	BatchCompleted EventType = "batch_completed"
	// BatchFailed when a batch could not be attempted
	BatchFailed EventType = "batch_failed"
	// AnalysisCompleted when a single image analysis succeeds
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when a single image analysis fails
	AnalysisFailed EventType = "analysis_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event Event)
}

// ObserverFunc adapts a plain function to the Observer interface
type ObserverFunc struct {
	Name string
	Fn   func(ctx context.Context, event Event)
}

// OnEvent calls the wrapped function
func (f ObserverFunc) OnEvent(ctx context.Context, event Event) {
	f.Fn(ctx, event)
}

// GetObserverName returns the observer name
func (f ObserverFunc) GetObserverName() string {
	return f.Name
}

// LoggingObserver logs events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"success":    event.Success,
	}
	if event.ImageID != "" {
		fields["image_id"] = event.ImageID
	}
	if event.BatchID != "" {
		fields["batch_id"] = event.BatchID
	}
	if event.State != "" {
		fields["state"] = event.State
	}
	if event.ProcessingTime > 0 {
		fields["processing_time"] = event.ProcessingTime
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ImageAdded, ImageRemoved, SelectionChanged, BufferReplaced:
		entry.Debug("Image store changed")
	case CameraStateChanged:
		if event.ErrorMessage != "" {
			entry.Warn("Camera state changed")
		} else {
			entry.Info("Camera state changed")
		}
	case BatchStarted:
		entry.Info("Batch dispatch started")
	case BatchCompleted:
		entry.Info("Batch dispatch completed")
	case BatchFailed:
		entry.Error("Batch dispatch failed")
	case AnalysisCompleted:
		entry.Debug("Image analysis completed")
	case AnalysisFailed:
		entry.Warn("Image analysis failed")
	default:
		entry.Info("Event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface. Observers are notified
// synchronously and in subscription order so that state reads made inside a
// callback see the mutation that triggered it.
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	now       func() time.Time
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		now:       time.Now,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// Nop is a Subject that drops every event
type Nop struct{}

func (Nop) Subscribe(Observer)                      {}
func (Nop) Unsubscribe(Observer)                    {}
func (Nop) NotifyObservers(context.Context, Event) {}
