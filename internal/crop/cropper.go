package crop

import (
	"image"

	"go-capture-inspector/internal/repository"
)

// Cropper applies crop selections to images held in a repository
type Cropper struct {
	images    repository.ImageRepository
	transform Transform
}

// NewCropper creates a cropper bound to an image repository
func NewCropper(images repository.ImageRepository, transform Transform) *Cropper {
	return &Cropper{images: images, transform: transform}
}

// Apply crops the image with the given id in place and returns the native
// rectangle that was kept. On any error the repository is left untouched.
func (c *Cropper) Apply(id string, req Request, display Size) (image.Rectangle, error) {
	img, err := c.images.Get(id)
	if err != nil {
		return image.Rectangle{}, err
	}

	rect, err := c.transform.ComputeCrop(req, display, NativeSize(img.Buffer))
	if err != nil {
		return image.Rectangle{}, err
	}

	if err := c.images.ReplaceBuffer(id, ApplyCrop(img.Buffer, rect)); err != nil {
		return image.Rectangle{}, err
	}
	return rect, nil
}
