package camera

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrPermissionDenied indicates the device refused access to its feed
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceBusy indicates the device is held by another consumer
	ErrDeviceBusy = errors.New("camera device busy")

	// ErrNoDevice indicates no device matched the request or it is unreachable
	ErrNoDevice = errors.New("camera device unavailable")

	// ErrFeedReleased indicates a handle was used after release
	ErrFeedReleased = errors.New("camera feed released")
)

// Facing is the preferred camera direction
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// ParseFacing maps a config value to a Facing, defaulting to the rear camera
func ParseFacing(s string) Facing {
	if Facing(s) == FacingUser {
		return FacingUser
	}
	return FacingEnvironment
}

// FeedHandle identifies an acquired feed. It is opaque to the controller.
type FeedHandle struct {
	ID     string
	Facing Facing
}

// Acquirer grants and revokes access to a camera feed
type Acquirer interface {
	Acquire(ctx context.Context, facing Facing) (FeedHandle, error)
	Release(handle FeedHandle) error
}

// FrameSampler reads the current frame of a feed at native resolution
type FrameSampler interface {
	SampleFrame(ctx context.Context, handle FeedHandle) (image.Image, error)
}

// Device is a camera that can be acquired and sampled
type Device interface {
	Acquirer
	FrameSampler
}
