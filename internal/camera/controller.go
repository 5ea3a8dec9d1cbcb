package camera

import (
	"context"
	"errors"
	"fmt"
	"image"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/internal/logger"
	"go-capture-inspector/internal/observer"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Controller
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateError  State = "error"
)

// Controller owns a camera feed and takes snapshots from it.
//
// Idle -> Active on Start, Active -> Error when the feed is lost,
// Error -> Active on Retry, and any state -> Idle on Stop or Close.
// The feed is held only while Active. Like the image store, a Controller
// is confined to one owner and does no locking.
type Controller struct {
	device Device
	facing Facing
	events observer.Subject

	state  State
	handle *FeedHandle
	cause  error
}

// NewController creates an idle controller for the device
func NewController(device Device, facing Facing, events observer.Subject) *Controller {
	if events == nil {
		events = observer.Nop{}
	}
	return &Controller{
		device: device,
		facing: facing,
		events: events,
		state:  StateIdle,
	}
}

// State returns the current state
func (c *Controller) State() State {
	return c.state
}

// Facing returns the preferred camera direction
func (c *Controller) Facing() Facing {
	return c.facing
}

// Cause returns the human-readable reason for the Error state, or ""
func (c *Controller) Cause() string {
	if c.cause == nil {
		return ""
	}
	return c.cause.Error()
}

// Start acquires the feed. It is a no-op when already Active.
func (c *Controller) Start(ctx context.Context) error {
	if c.state == StateActive {
		return nil
	}
	return c.acquire(ctx)
}

// Retry re-attempts acquisition after a failure
func (c *Controller) Retry(ctx context.Context) error {
	if c.state == StateActive {
		return nil
	}
	return c.acquire(ctx)
}

// Stop releases the feed and returns to Idle
func (c *Controller) Stop() error {
	err := c.release()
	c.cause = nil
	c.transition(StateIdle)
	return err
}

// Close releases any held feed. It is safe to call on every exit path.
func (c *Controller) Close() error {
	if c.state == StateIdle && c.handle == nil {
		return nil
	}
	return c.Stop()
}

// FeedLost moves an Active controller to Error and releases the feed
func (c *Controller) FeedLost(cause error) {
	if c.state != StateActive {
		return
	}
	if err := c.release(); err != nil {
		logger.WithError(err).Warn("Failed to release lost camera feed")
	}
	c.fail(apperrors.NewAcquisitionUnavailableError("camera feed lost", cause))
}

// Snapshot captures the current frame at the feed's native resolution
func (c *Controller) Snapshot(ctx context.Context) (image.Image, error) {
	if c.state != StateActive || c.handle == nil {
		return nil, apperrors.NewNotActiveError(
			fmt.Sprintf("snapshot requires an active camera (state: %s)", c.state), nil)
	}

	frame, err := c.device.SampleFrame(ctx, *c.handle)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewInternalError("snapshot cancelled", err)
		}
		c.FeedLost(err)
		return nil, c.cause
	}
	return frame, nil
}

// Run starts the camera, runs fn, and releases the feed however fn exits
func (c *Controller) Run(ctx context.Context, fn func(ctx context.Context, c *Controller) error) (err error) {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, c)
}

func (c *Controller) acquire(ctx context.Context) error {
	handle, err := c.device.Acquire(ctx, c.facing)
	if err != nil {
		c.fail(classifyAcquireError(err))
		return c.cause
	}
	c.handle = &handle
	c.cause = nil
	c.transition(StateActive)
	return nil
}

func (c *Controller) release() error {
	if c.handle == nil {
		return nil
	}
	handle := *c.handle
	c.handle = nil
	if err := c.device.Release(handle); err != nil {
		return apperrors.NewInternalError("failed to release camera feed", err)
	}
	return nil
}

func (c *Controller) fail(cause error) {
	c.cause = cause
	c.transition(StateError)
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to

	logger.WithFields(logrus.Fields{
		"from":   from,
		"state":  to,
		"facing": c.facing,
	}).Debug("Camera transition")

	c.events.NotifyObservers(context.Background(), observer.Event{
		EventType:    observer.CameraStateChanged,
		State:        string(to),
		Success:      c.cause == nil,
		ErrorMessage: c.Cause(),
		Metadata:     map[string]interface{}{"from": string(from)},
	})
}

func classifyAcquireError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ErrPermissionDenied) {
		return apperrors.NewAcquisitionDeniedError("camera access denied", err)
	}
	return apperrors.NewAcquisitionUnavailableError("camera unavailable", err)
}
