package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/google/uuid"
)

// StaticDevice is an in-process camera that renders a test pattern, or
// replays a fixed frame, at a fixed native resolution.
type StaticDevice struct {
	mu         sync.Mutex
	resolution image.Point
	frame      image.Image
	acquireErr error
	sampleErr  error
	held       map[string]bool
	frames     int
}

// NewStaticDevice creates a device producing test patterns of the given size
func NewStaticDevice(width, height int) *StaticDevice {
	return &StaticDevice{
		resolution: image.Pt(width, height),
		held:       make(map[string]bool),
	}
}

// SetFrame makes every subsequent sample return img
func (d *StaticDevice) SetFrame(img image.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = img
}

// FailAcquire makes Acquire return err until cleared with nil
func (d *StaticDevice) FailAcquire(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireErr = err
}

// FailSample makes SampleFrame return err until cleared with nil
func (d *StaticDevice) FailSample(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sampleErr = err
}

// Held reports how many feeds are currently acquired
func (d *StaticDevice) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held)
}

// Acquire grants a new feed handle
func (d *StaticDevice) Acquire(ctx context.Context, facing Facing) (FeedHandle, error) {
	if err := ctx.Err(); err != nil {
		return FeedHandle{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		return FeedHandle{}, d.acquireErr
	}
	h := FeedHandle{ID: uuid.NewString(), Facing: facing}
	d.held[h.ID] = true
	return h, nil
}

// Release frees a feed handle
func (d *StaticDevice) Release(handle FeedHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.held[handle.ID] {
		return fmt.Errorf("release %s: %w", handle.ID, ErrFeedReleased)
	}
	delete(d.held, handle.ID)
	return nil
}

// SampleFrame returns the configured frame or a fresh test pattern
func (d *StaticDevice) SampleFrame(ctx context.Context, handle FeedHandle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.held[handle.ID] {
		return nil, ErrFeedReleased
	}
	if d.sampleErr != nil {
		return nil, d.sampleErr
	}
	d.frames++
	if d.frame != nil {
		return d.frame, nil
	}
	return testPattern(d.resolution, d.frames), nil
}

// testPattern draws vertical colour bars shifted by the frame number
func testPattern(size image.Point, frame int) image.Image {
	bars := []color.RGBA{
		{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
		{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255}, {0, 0, 0, 255},
	}
	img := image.NewRGBA(image.Rectangle{Max: size})
	barWidth := size.X / len(bars)
	if barWidth == 0 {
		barWidth = 1
	}
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			img.SetRGBA(x, y, bars[(x/barWidth+frame)%len(bars)])
		}
	}
	return img
}
