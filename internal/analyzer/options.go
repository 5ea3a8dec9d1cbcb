package analyzer

// Options holds the thresholds of the local quality analyzer
type Options struct {
	// Laplacian variance at or below which an image is blurry
	BlurThreshold float64
	// Average HSV value (0..1) above which an image is overexposed
	OverexposureThreshold float64
	// Average HSV saturation (0..1) above which an image is oversaturated
	OversaturationThreshold float64
	// Largest tolerated difference between average channel levels (0..1)
	WhiteBalanceThreshold float64

	// Grey-level brightness bounds (0..255)
	DarkThreshold   float64
	BrightThreshold float64

	MinWidth  int
	MinHeight int

	SkipWhiteBalance bool
}

// DefaultOptions returns default analysis options
func DefaultOptions() Options {
	return Options{
		BlurThreshold:           100.0,
		OverexposureThreshold:   0.95,
		OversaturationThreshold: 0.9,
		WhiteBalanceThreshold:   0.1,
		DarkThreshold:           40,
		BrightThreshold:         235,
		MinWidth:                50,
		MinHeight:               50,
	}
}

// StrictOptions returns options for documents and labels, where small
// text must stay legible after cropping
func StrictOptions() Options {
	opts := DefaultOptions()
	opts.BlurThreshold = 300.0
	opts.OverexposureThreshold = 0.9
	opts.OversaturationThreshold = 0.85
	opts.DarkThreshold = 80
	opts.BrightThreshold = 220
	opts.MinWidth = 640
	opts.MinHeight = 480
	return opts
}

// WithCustomThresholds allows setting custom quality thresholds
func (opts Options) WithCustomThresholds(blur, overexposure, oversaturation float64) Options {
	opts.BlurThreshold = blur
	opts.OverexposureThreshold = overexposure
	opts.OversaturationThreshold = oversaturation
	return opts
}

// WithoutWhiteBalance disables the white balance check, e.g. for scenes
// lit by a single coloured source
func (opts Options) WithoutWhiteBalance() Options {
	opts.SkipWhiteBalance = true
	return opts
}

// WithMinResolution sets the smallest acceptable image size
func (opts Options) WithMinResolution(width, height int) Options {
	opts.MinWidth = width
	opts.MinHeight = height
	return opts
}
