package transport

import (
	"errors"
	"testing"

	"go-capture-inspector/internal/dispatch"
	"go-capture-inspector/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchView_CountsOutcomes(t *testing.T) {
	report := dispatch.BatchReport{
		BatchID: "batch-1",
		Outcomes: []dispatch.Outcome{
			{SourceImageID: "a", Result: &models.AnalysisResult{ID: "r1", ImageID: "a"}},
			{SourceImageID: "b", Err: errors.New("analyzer timed out")},
			{SourceImageID: "c", Err: errors.New("analyzer rejected image")},
		},
	}

	resp := batchView(report)

	assert.Equal(t, 3, resp.Dispatched)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, "analyzer timed out", resp.Outcomes[1].Error)
}

func TestBatchView_Empty(t *testing.T) {
	resp := batchView(dispatch.BatchReport{Outcomes: []dispatch.Outcome{}})

	assert.Zero(t, resp.Dispatched)
	assert.Zero(t, resp.Failed)
	assert.NotNil(t, resp.Outcomes)
}
