// Package imagecodec decodes camera frames and uploads and encodes stored
// images for transport.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Format is an output encoding
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// Decode reads any registered image format (jpeg, png, gif, webp)
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ErrTooLarge reports an image over the byte or pixel limit of DecodeLimited
var ErrTooLarge = errors.New("image too large")

// DecodeLimited decodes at most maxBytes from r and refuses images whose
// header declares more than maxPixels pixels
func DecodeLimited(r io.Reader, maxBytes int64, maxPixels int) (image.Image, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes: %w", maxBytes, ErrTooLarge)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if cfg.Width > maxPixels/cfg.Height {
		return nil, "", fmt.Errorf("image is %dx%d, limit is %d pixels: %w", cfg.Width, cfg.Height, maxPixels, ErrTooLarge)
	}
	return Decode(bytes.NewReader(data))
}

// ParseFormat maps a query value such as "jpg" to a Format, defaulting to PNG
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpg", "jpeg":
		return JPEG
	default:
		return PNG
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode writes img in the given format
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(90))
	default:
		return imaging.Encode(w, img, imaging.PNG)
	}
}

// EncodeBytes encodes img into a new byte slice
func EncodeBytes(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
