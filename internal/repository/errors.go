package repository

import "errors"

var (
	// ErrImageNotFound indicates no live image carries the requested id
	ErrImageNotFound = errors.New("image not found")
)
