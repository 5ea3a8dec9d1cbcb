package repository

import (
	"image"
	"iter"
	"time"
)

// CapturedImage is one photograph held by the store. Buffer is treated as
// immutable; a crop replaces it with a new image rather than editing pixels.
type CapturedImage struct {
	ID         string      `json:"id"`
	Buffer     image.Image `json:"-"`
	Selected   bool        `json:"selected"`
	CapturedAt time.Time   `json:"captured_at"`
}

// ImageRepository defines the operations on the ordered image collection
type ImageRepository interface {
	// Add appends a new selected image and returns its fresh id
	Add(buffer image.Image) string

	// Get returns the image with the given id
	Get(id string) (CapturedImage, error)

	// ToggleSelection flips the selected flag of an image
	ToggleSelection(id string) error

	// SetSelectionAll sets every image's selected flag
	SetSelectionAll(value bool)

	// Remove deletes an image; unknown ids are ignored
	Remove(id string)

	// RemoveWhere deletes every image matching the predicate and reports how many went
	RemoveWhere(predicate func(CapturedImage) bool) int

	// ReplaceBuffer swaps the pixels of an image, keeping its id and selection
	ReplaceBuffer(id string, buffer image.Image) error

	// All yields every image in insertion order, as of the call
	All() iter.Seq[CapturedImage]

	// Selected yields the selected images in insertion order, as of the call
	Selected() iter.Seq[CapturedImage]

	// SelectedIDs yields the ids of selected images in insertion order, as of the call
	SelectedIDs() iter.Seq[string]

	// Last returns the most recently added image still in the store
	Last() (CapturedImage, bool)

	// Len returns the number of stored images
	Len() int
}
