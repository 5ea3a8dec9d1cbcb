package storage

import (
	"context"
	"errors"

	"go-capture-inspector/pkg/models"
)

// TeeSink forwards to every sink, attempting all of them even when one fails
type TeeSink []ResultSink

// StoreResults forwards results to every sink
func (t TeeSink) StoreResults(ctx context.Context, results []models.AnalysisResult) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.StoreResults(ctx, results))
	}
	return errors.Join(errs...)
}

// StoreBatch forwards the record to every sink
func (t TeeSink) StoreBatch(ctx context.Context, record models.BatchRecord) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.StoreBatch(ctx, record))
	}
	return errors.Join(errs...)
}
