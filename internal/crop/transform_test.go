package crop

import (
	"image"
	"image/color"
	"testing"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createGradientImage creates an opaque image where every pixel is distinct enough to detect shifts
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), uint8((x + y) % 256), 255})
		}
	}
	return img
}

func assertSamePixels(t *testing.T, want, got image.Image, offset image.Point) {
	t.Helper()
	gb := got.Bounds()
	for y := gb.Min.Y; y < gb.Max.Y; y++ {
		for x := gb.Min.X; x < gb.Max.X; x++ {
			wr, wg, wb, wa := want.At(x-gb.Min.X+offset.X, y-gb.Min.Y+offset.Y).RGBA()
			gr, gg, gbl, ga := got.At(x, y).RGBA()
			if wr != gr || wg != gg || wb != gbl || wa != ga {
				t.Fatalf("pixel mismatch at (%d,%d)", x, y)
			}
		}
	}
}

func TestNormalize_OrdersAndClamps(t *testing.T) {
	display := Size{W: 400, H: 300}

	tests := []struct {
		name string
		req  Request
		want DisplayRect
	}{
		{"top-left to bottom-right", Request{Point{10, 20}, Point{110, 70}}, DisplayRect{10, 20, 100, 50}},
		{"bottom-right to top-left", Request{Point{110, 70}, Point{10, 20}}, DisplayRect{10, 20, 100, 50}},
		{"anti-diagonal", Request{Point{110, 20}, Point{10, 70}}, DisplayRect{10, 20, 100, 50}},
		{"outside bounds", Request{Point{-50, -10}, Point{500, 999}}, DisplayRect{0, 0, 400, 300}},
		{"zero area", Request{Point{30, 30}, Point{30, 30}}, DisplayRect{30, 30, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Normalize(display))
		})
	}
}

func TestComputeCrop_ScalesByWidth(t *testing.T) {
	rect, err := ComputeCrop(
		Request{Start: Point{110, 70}, End: Point{10, 20}},
		Size{W: 400, H: 300},
		image.Pt(800, 600),
	)

	require.NoError(t, err)
	assert.Equal(t, image.Rect(20, 40, 220, 140), rect)
}

func TestComputeCrop_FullFrame(t *testing.T) {
	rect, err := ComputeCrop(
		Request{Start: Point{-5, -5}, End: Point{1000, 1000}},
		Size{W: 320, H: 240},
		image.Pt(1280, 960),
	)

	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1280, 960), rect)
}

func TestComputeCrop_SelectionTooSmall(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		display Size
		native  image.Point
	}{
		{"narrow", Request{Point{0, 0}, Point{20, 100}}, Size{W: 400, H: 300}, image.Pt(800, 600)}, // 40 native wide
		{"short", Request{Point{0, 0}, Point{100, 24}}, Size{W: 400, H: 300}, image.Pt(800, 600)},  // 48 native high
		{"zero area", Request{Point{50, 50}, Point{50, 50}}, Size{W: 400, H: 300}, image.Pt(800, 600)},
		{"outside the image", Request{Point{500, 500}, Point{600, 600}}, Size{W: 400, H: 300}, image.Pt(800, 600)},
		{"sub-pixel width rounds up", Request{Point{0.4, 0}, Point{49.6, 80}}, Size{W: 100, H: 100}, image.Pt(100, 100)},   // 49.2 native
		{"sub-pixel width after scaling", Request{Point{0, 0}, Point{24.8, 80}}, Size{W: 100, H: 100}, image.Pt(200, 200)}, // 49.6 native
		{"sub-pixel height", Request{Point{0, 10.3}, Point{80, 60}}, Size{W: 100, H: 100}, image.Pt(100, 100)},              // 49.7 native
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect, err := ComputeCrop(tt.req, tt.display, tt.native)
			require.Error(t, err, "accepted %v", rect)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSelectionTooSmall), "got %v", err)
		})
	}
}

func TestComputeCrop_SubPixelAtMinimumIsAccepted(t *testing.T) {
	rect, err := ComputeCrop(Request{Point{0.5, 0}, Point{50.5, 60}}, Size{W: 100, H: 100}, image.Pt(100, 100))

	require.NoError(t, err)
	assert.Equal(t, 50, rect.Dx())
	assert.Equal(t, 60, rect.Dy())
}

func TestComputeCrop_ExactlyMinimumIsAccepted(t *testing.T) {
	rect, err := ComputeCrop(Request{Point{0, 0}, Point{25, 25}}, Size{W: 400, H: 300}, image.Pt(800, 600))

	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 50), rect)
}

func TestComputeCrop_CustomMinimum(t *testing.T) {
	tr := NewTransform(10)
	_, err := tr.ComputeCrop(Request{Point{0, 0}, Point{10, 10}}, Size{W: 400, H: 300}, image.Pt(800, 600))
	assert.NoError(t, err)

	assert.Equal(t, DefaultMinNativeSize, NewTransform(0).MinSize)
}

func TestComputeCrop_InvalidSizes(t *testing.T) {
	req := Request{Point{0, 0}, Point{100, 100}}

	_, err := ComputeCrop(req, Size{W: 0, H: 300}, image.Pt(800, 600))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = ComputeCrop(req, Size{W: 400, H: 300}, image.Pt(0, 0))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestApplyCrop_SubRegion(t *testing.T) {
	src := createGradientImage(200, 150)
	rect := image.Rect(30, 40, 130, 110)

	out := ApplyCrop(src, rect)

	assert.Equal(t, image.Rect(0, 0, 100, 70), out.Bounds())
	assertSamePixels(t, src, out, rect.Min)
}

func TestApplyCrop_FullFrameIsNoOp(t *testing.T) {
	src := createGradientImage(120, 90)
	rect, err := ComputeCrop(Request{Point{0, 0}, Point{60, 45}}, Size{W: 60, H: 45}, NativeSize(src))
	require.NoError(t, err)

	once := ApplyCrop(src, rect)
	twice := ApplyCrop(once, image.Rectangle{Max: NativeSize(once)})

	assert.Equal(t, src.Bounds(), once.Bounds())
	assertSamePixels(t, src, once, image.Point{})
	assertSamePixels(t, once, twice, image.Point{})
}

func TestApplyCrop_NonZeroOrigin(t *testing.T) {
	full := createGradientImage(200, 200)
	sub := full.SubImage(image.Rect(50, 50, 150, 150))

	out := ApplyCrop(sub, image.Rect(10, 10, 70, 70))

	assert.Equal(t, image.Rect(0, 0, 60, 60), out.Bounds())
	assertSamePixels(t, full, out, image.Pt(60, 60))
}

func TestCropper_ApplyReplacesBuffer(t *testing.T) {
	store := repository.NewImageStore()
	id := store.Add(createGradientImage(800, 600))
	cropper := NewCropper(store, NewTransform(DefaultMinNativeSize))

	rect, err := cropper.Apply(id, Request{Point{10, 20}, Point{110, 70}}, Size{W: 400, H: 300})

	require.NoError(t, err)
	assert.Equal(t, image.Rect(20, 40, 220, 140), rect)
	img, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Buffer.Bounds())
	assert.True(t, img.Selected)
	assert.Equal(t, 1, store.Len(), "crop replaces rather than adds")
}

func TestCropper_FailureLeavesStoreUntouched(t *testing.T) {
	store := repository.NewImageStore()
	original := createGradientImage(800, 600)
	id := store.Add(original)
	cropper := NewCropper(store, NewTransform(DefaultMinNativeSize))

	_, err := cropper.Apply(id, Request{Point{0, 0}, Point{10, 10}}, Size{W: 400, H: 300})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeSelectionTooSmall))

	img, _ := store.Get(id)
	assert.Same(t, original, img.Buffer)

	_, err = cropper.Apply("missing", Request{Point{0, 0}, Point{100, 100}}, Size{W: 400, H: 300})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
