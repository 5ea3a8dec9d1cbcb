package repository

import (
	"context"
	"image"
	"iter"
	"slices"
	"time"

	apperrors "go-capture-inspector/internal/errors"
	"go-capture-inspector/internal/observer"

	"github.com/google/uuid"
)

// ImageStore is the in-memory, insertion-ordered image collection.
//
// The store is confined to a single owner: it does no locking and callers
// that share it across goroutines must serialize access themselves.
type ImageStore struct {
	images []CapturedImage
	events observer.Subject
	newID  func() string
	now    func() time.Time
}

// StoreOption customizes an ImageStore
type StoreOption func(*ImageStore)

// WithEvents routes change notifications to the given subject
func WithEvents(events observer.Subject) StoreOption {
	return func(s *ImageStore) {
		if events != nil {
			s.events = events
		}
	}
}

// WithIDGenerator overrides id generation; ids must never repeat
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *ImageStore) {
		s.newID = gen
	}
}

// NewImageStore creates an empty store
func NewImageStore(opts ...StoreOption) *ImageStore {
	s := &ImageStore{
		events: observer.Nop{},
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a new selected image and returns its id
func (s *ImageStore) Add(buffer image.Image) string {
	id := s.newID()
	s.images = append(s.images, CapturedImage{
		ID:         id,
		Buffer:     buffer,
		Selected:   true,
		CapturedAt: s.now(),
	})
	s.notify(observer.ImageAdded, id, nil)
	return id
}

// Get returns the image with the given id
func (s *ImageStore) Get(id string) (CapturedImage, error) {
	i := s.indexOf(id)
	if i < 0 {
		return CapturedImage{}, notFound(id)
	}
	return s.images[i], nil
}

// ToggleSelection flips the selected flag of an image
func (s *ImageStore) ToggleSelection(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return notFound(id)
	}
	s.images[i].Selected = !s.images[i].Selected
	s.notify(observer.SelectionChanged, id, map[string]interface{}{"selected": s.images[i].Selected})
	return nil
}

// SetSelectionAll sets every image's selected flag
func (s *ImageStore) SetSelectionAll(value bool) {
	for i := range s.images {
		s.images[i].Selected = value
	}
	s.notify(observer.SelectionChanged, "", map[string]interface{}{"selected": value, "count": len(s.images)})
}

// Remove deletes an image. Removing an unknown id is a no-op.
func (s *ImageStore) Remove(id string) {
	s.RemoveWhere(func(img CapturedImage) bool { return img.ID == id })
}

// RemoveWhere deletes every image matching the predicate
func (s *ImageStore) RemoveWhere(predicate func(CapturedImage) bool) int {
	var removed []string
	s.images = slices.DeleteFunc(s.images, func(img CapturedImage) bool {
		if predicate(img) {
			removed = append(removed, img.ID)
			return true
		}
		return false
	})
	for _, id := range removed {
		s.notify(observer.ImageRemoved, id, nil)
	}
	return len(removed)
}

// ReplaceBuffer swaps the pixels of an image, keeping its id and selection
func (s *ImageStore) ReplaceBuffer(id string, buffer image.Image) error {
	i := s.indexOf(id)
	if i < 0 {
		return notFound(id)
	}
	s.images[i].Buffer = buffer
	b := buffer.Bounds()
	s.notify(observer.BufferReplaced, id, map[string]interface{}{"width": b.Dx(), "height": b.Dy()})
	return nil
}

// All yields every image in insertion order as of the call. Later mutations
// do not affect a sequence that has already been produced.
func (s *ImageStore) All() iter.Seq[CapturedImage] {
	snapshot := slices.Clone(s.images)
	return func(yield func(CapturedImage) bool) {
		for _, img := range snapshot {
			if !yield(img) {
				return
			}
		}
	}
}

// Selected yields the selected images in insertion order as of the call
func (s *ImageStore) Selected() iter.Seq[CapturedImage] {
	all := s.All()
	return func(yield func(CapturedImage) bool) {
		for img := range all {
			if img.Selected && !yield(img) {
				return
			}
		}
	}
}

// SelectedIDs yields the ids of selected images in insertion order as of the call
func (s *ImageStore) SelectedIDs() iter.Seq[string] {
	selected := s.Selected()
	return func(yield func(string) bool) {
		for img := range selected {
			if !yield(img.ID) {
				return
			}
		}
	}
}

// Last returns the most recently added image still in the store
func (s *ImageStore) Last() (CapturedImage, bool) {
	if len(s.images) == 0 {
		return CapturedImage{}, false
	}
	return s.images[len(s.images)-1], true
}

// Len returns the number of stored images
func (s *ImageStore) Len() int {
	return len(s.images)
}

func (s *ImageStore) indexOf(id string) int {
	return slices.IndexFunc(s.images, func(img CapturedImage) bool { return img.ID == id })
}

func (s *ImageStore) notify(t observer.EventType, id string, meta map[string]interface{}) {
	s.events.NotifyObservers(context.Background(), observer.Event{
		EventType: t,
		ImageID:   id,
		Success:   true,
		Metadata:  meta,
	})
}

func notFound(id string) error {
	err := apperrors.NewNotFoundError("image not found", ErrImageNotFound)
	err.Details = id
	return err
}

var _ ImageRepository = (*ImageStore)(nil)
