package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// CameraResponse describes the capture controller
type CameraResponse struct {
	State  string `json:"state"`
	Cause  string `json:"cause,omitempty"`
	Facing string `json:"facing"`
}

// ImageResponse describes one captured image without its pixels
type ImageResponse struct {
	ID         string    `json:"id"`
	Selected   bool      `json:"selected"`
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

// ImageListResponse lists captured images in insertion order
type ImageListResponse struct {
	Images        []ImageResponse `json:"images"`
	Count         int             `json:"count"`
	SelectedCount int             `json:"selected_count"`
}

// SelectionRequest sets the selection flag of every image
type SelectionRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

// Point is a position in display coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a rendered width and height in display coordinates
type Size struct {
	Width  float64 `json:"width" binding:"required,gt=0"`
	Height float64 `json:"height" binding:"required,gt=0"`
}

// CropRequest carries an on-screen selection and the size the image was rendered at
type CropRequest struct {
	Start   Point `json:"start"`
	End     Point `json:"end"`
	Display Size  `json:"display" binding:"required"`
}

// RectResponse is a rectangle in native pixels
type RectResponse struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropResponse reports the applied native crop
type CropResponse struct {
	Image ImageResponse `json:"image"`
	Rect  RectResponse  `json:"rect"`
}

// DeleteResponse reports how many images were removed
type DeleteResponse struct {
	Removed int `json:"removed"`
}

// BatchResponse is the report of one dispatch
type BatchResponse struct {
	BatchRecord
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// HistoryResponse lists successful results in arrival order
type HistoryResponse struct {
	Results []AnalysisResult `json:"results"`
	Count   int              `json:"count"`
}
