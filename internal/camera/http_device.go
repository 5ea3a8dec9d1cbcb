package camera

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go-capture-inspector/pkg/imagecodec"
	"go-capture-inspector/pkg/validation"

	"github.com/google/uuid"
)

// Frames larger than these limits are rejected before being decoded in full
const (
	DefaultMaxFrameBytes  = 32 << 20
	DefaultMaxFramePixels = 50_000_000
)

// HTTPDevice treats a network camera's still-image endpoint as a feed.
// Acquire checks the endpoint answers; each sample fetches one full-resolution frame.
type HTTPDevice struct {
	snapshotURL    string
	client         *http.Client
	maxFrameBytes  int64
	maxFramePixels int

	mu   sync.Mutex
	held map[string]bool
}

// NewHTTPDevice creates a device for an IP camera snapshot URL
func NewHTTPDevice(snapshotURL string, timeout time.Duration) (*HTTPDevice, error) {
	if err := validation.NewURLValidator().ValidateEndpointURL(snapshotURL); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:           4,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPDevice{
		snapshotURL: snapshotURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxFrameBytes:  DefaultMaxFrameBytes,
		maxFramePixels: DefaultMaxFramePixels,
		held:           make(map[string]bool),
	}, nil
}

// Acquire fetches one frame and grants a handle if it answers with a frame
func (d *HTTPDevice) Acquire(ctx context.Context, facing Facing) (FeedHandle, error) {
	if _, err := d.fetch(ctx, facing); err != nil {
		return FeedHandle{}, err
	}

	h := FeedHandle{ID: uuid.NewString(), Facing: facing}
	d.mu.Lock()
	d.held[h.ID] = true
	d.mu.Unlock()
	return h, nil
}

// Release forgets the handle; the camera holds no per-client session
func (d *HTTPDevice) Release(handle FeedHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.held[handle.ID] {
		return fmt.Errorf("release %s: %w", handle.ID, ErrFeedReleased)
	}
	delete(d.held, handle.ID)
	return nil
}

// SampleFrame fetches and decodes the current frame
func (d *HTTPDevice) SampleFrame(ctx context.Context, handle FeedHandle) (image.Image, error) {
	d.mu.Lock()
	held := d.held[handle.ID]
	d.mu.Unlock()
	if !held {
		return nil, ErrFeedReleased
	}
	return d.fetch(ctx, handle.Facing)
}

func (d *HTTPDevice) fetch(ctx context.Context, facing Facing) (image.Image, error) {
	u, err := url.Parse(d.snapshotURL)
	if err != nil {
		return nil, fmt.Errorf("invalid camera URL: %w", err)
	}
	q := u.Query()
	q.Set("facing", string(facing))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid camera URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, */*")
	req.Header.Set("User-Agent", "Go-Capture-Inspector/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera request failed: %v: %w", err, ErrNoDevice)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("camera returned %d: %w", resp.StatusCode, ErrPermissionDenied)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusLocked ||
		resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("camera returned %d: %w", resp.StatusCode, ErrDeviceBusy)
	default:
		return nil, fmt.Errorf("camera returned %d: %w", resp.StatusCode, ErrNoDevice)
	}

	img, _, err := imagecodec.DecodeLimited(resp.Body, d.maxFrameBytes, d.maxFramePixels)
	if err != nil {
		return nil, fmt.Errorf("camera frame: %w: %w", err, ErrNoDevice)
	}
	return img, nil
}
