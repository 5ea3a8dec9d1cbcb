package storage

import (
	"context"

	"go-capture-inspector/pkg/models"
)

// ResultSink receives the output of every dispatched batch. The capture
// core never persists results itself; sinks are its downstream consumers.
type ResultSink interface {
	// StoreResults receives the successful results of a batch in request order
	StoreResults(ctx context.Context, results []models.AnalysisResult) error

	// StoreBatch receives the full report of a batch, failures included
	StoreBatch(ctx context.Context, record models.BatchRecord) error
}

// HistoryReader lists results previously stored
type HistoryReader interface {
	History() []models.AnalysisResult
}
