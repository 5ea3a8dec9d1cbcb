// Package crop converts an on-screen crop selection into native pixel space
// and cuts the matching sub-image out of a captured frame.
package crop

import (
	"fmt"
	"image"
	"math"

	apperrors "go-capture-inspector/internal/errors"

	"github.com/disintegration/imaging"
)

// DefaultMinNativeSize is the smallest accepted crop edge, in native pixels.
const DefaultMinNativeSize = 50

// Point is a position in display coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the rendered size of an image element
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Request is a drag selection. Start and End may be any two opposite corners.
type Request struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// DisplayRect is the normalized selection in display coordinates
type DisplayRect struct {
	X, Y, W, H float64
}

// Transform holds the crop policy
type Transform struct {
	MinSize int
}

// NewTransform returns a transform with the given minimum native edge.
// Non-positive values fall back to DefaultMinNativeSize.
func NewTransform(minSize int) Transform {
	if minSize <= 0 {
		minSize = DefaultMinNativeSize
	}
	return Transform{MinSize: minSize}
}

// ComputeCrop maps a selection to native pixel space using the default policy
func ComputeCrop(req Request, display Size, native image.Point) (image.Rectangle, error) {
	return NewTransform(DefaultMinNativeSize).ComputeCrop(req, display, native)
}

// Normalize orders the corners and clamps them to the display bounds
func (r Request) Normalize(display Size) DisplayRect {
	x1, x2 := clamp(r.Start.X, 0, display.W), clamp(r.End.X, 0, display.W)
	y1, y2 := clamp(r.Start.Y, 0, display.H), clamp(r.End.Y, 0, display.H)
	return DisplayRect{
		X: math.Min(x1, x2),
		Y: math.Min(y1, y2),
		W: math.Abs(x2 - x1),
		H: math.Abs(y2 - y1),
	}
}

// ComputeCrop maps a selection made on an image displayed at display size
// onto the image's native pixel grid. The scale is taken from the widths
// only; the display is assumed to keep the native aspect ratio.
func (t Transform) ComputeCrop(req Request, display Size, native image.Point) (image.Rectangle, error) {
	if display.W <= 0 || display.H <= 0 {
		return image.Rectangle{}, apperrors.NewValidationError(
			fmt.Sprintf("display size must be positive (got %gx%g)", display.W, display.H), nil)
	}
	if native.X <= 0 || native.Y <= 0 {
		return image.Rectangle{}, apperrors.NewValidationError(
			fmt.Sprintf("native size must be positive (got %dx%d)", native.X, native.Y), nil)
	}

	sel := req.Normalize(display)
	scale := float64(native.X) / display.W
	nw, nh := float64(native.X), float64(native.Y)

	// The minimum applies to the unrounded native extent
	fx0, fx1 := clamp(sel.X*scale, 0, nw), clamp((sel.X+sel.W)*scale, 0, nw)
	fy0, fy1 := clamp(sel.Y*scale, 0, nh), clamp((sel.Y+sel.H)*scale, 0, nh)
	if w, h := fx1-fx0, fy1-fy0; w < float64(t.MinSize) || h < float64(t.MinSize) {
		return image.Rectangle{}, apperrors.NewSelectionTooSmallError(
			fmt.Sprintf("selection is %.1fx%.1f native pixels, minimum is %d", w, h, t.MinSize), nil)
	}

	rect := image.Rect(
		int(math.Round(fx0)), int(math.Round(fy0)),
		int(math.Round(fx1)), int(math.Round(fy1)),
	).Intersect(image.Rect(0, 0, native.X, native.Y))
	return rect, nil
}

// ApplyCrop renders the pixels inside rect, given relative to the image's
// top-left corner, into a new image whose bounds start at the origin.
func ApplyCrop(buffer image.Image, rect image.Rectangle) image.Image {
	origin := buffer.Bounds().Min
	return imaging.Crop(buffer, rect.Add(origin))
}

// NativeSize returns the pixel dimensions of an image
func NativeSize(buffer image.Image) image.Point {
	return buffer.Bounds().Size()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
