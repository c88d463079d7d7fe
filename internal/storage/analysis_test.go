package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisResults(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	analysis := NewAnalysisStore(db)
	projectID := setupProject(t, db)

	err := analysis.SetAnalysisResult(ctx, projectID, "cycles", json.RawMessage(`{"count":0}`))
	require.NoError(t, err)

	// Overwrite under the same kind.
	err = analysis.SetAnalysisResult(ctx, projectID, "cycles", json.RawMessage(`{"count":2}`))
	require.NoError(t, err)

	result, err := analysis.GetAnalysisResult(ctx, projectID, "cycles")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2}`, string(result))

	_, err = analysis.GetAnalysisResult(ctx, projectID, "metrics")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, analysis.DeleteAnalysisResults(ctx, projectID))
	_, err = analysis.GetAnalysisResult(ctx, projectID, "cycles")
	assert.ErrorIs(t, err, ErrNotFound)
}
