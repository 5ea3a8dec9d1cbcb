package storage

import (
	"context"
	"slices"
	"sync"

	"go-capture-inspector/pkg/models"
)

// MemorySink keeps results and batch records in process memory
type MemorySink struct {
	mu      sync.RWMutex
	results []models.AnalysisResult
	batches []models.BatchRecord
	limit   int
}

// NewMemorySink creates a sink keeping at most limit results; limit <= 0
// keeps everything
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

// StoreResults appends results, evicting the oldest beyond the limit
func (s *MemorySink) StoreResults(ctx context.Context, results []models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
	if s.limit > 0 && len(s.results) > s.limit {
		s.results = slices.Clone(s.results[len(s.results)-s.limit:])
	}
	return nil
}

// StoreBatch appends a batch record
func (s *MemorySink) StoreBatch(ctx context.Context, record models.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, record)
	return nil
}

// History returns stored results in arrival order
func (s *MemorySink) History() []models.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.results)
}

// Batches returns stored batch records in arrival order
func (s *MemorySink) Batches() []models.BatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.batches)
}

var (
	_ ResultSink    = (*MemorySink)(nil)
	_ HistoryReader = (*MemorySink)(nil)
)
