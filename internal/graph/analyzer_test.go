package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calltrace/codegraph/internal/storage"
)

func TestAnalyzerCycles(t *testing.T) {
	a := NewAnalyzer(nil)
	ctx := context.Background()

	report, err := a.Cycles(ctx, triangleGraph(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CycleCount)
	assert.Equal(t, []string{"A", "B", "C"}, report.CyclicNodes)

	// Second call hits the memo and agrees.
	again, err := a.Cycles(ctx, triangleGraph(), 1)
	require.NoError(t, err)
	assert.Equal(t, report, again)

	clean, err := a.Cycles(ctx, chainGraph(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, clean.CycleCount)
}

func TestAnalyzerMetricsPersisted(t *testing.T) {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	projectID, err := storage.NewProjectStore(db).GetOrCreateProject(ctx, "/work/proj", "proj")
	require.NoError(t, err)
	store := storage.NewAnalysisStore(db)

	a := NewAnalyzer(store)
	m, err := a.Metrics(ctx, chainGraph(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NodeCount)

	// The result landed in the persistent store too.
	raw, err := store.GetAnalysisResult(ctx, projectID, KindMetrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"node_count":3`)

	require.NoError(t, a.Invalidate(ctx, projectID))
	_, err = store.GetAnalysisResult(ctx, projectID, KindMetrics)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFingerprintDistinguishesGraphs(t *testing.T) {
	chain := fingerprint(chainGraph(), KindMetrics)
	triangle := fingerprint(triangleGraph(), KindMetrics)
	assert.NotEqual(t, chain, triangle)

	// Same graph, same kind: stable.
	assert.Equal(t, chain, fingerprint(chainGraph(), KindMetrics))
	// Same graph, different kind: distinct.
	assert.NotEqual(t, chain, fingerprint(chainGraph(), KindCycles))
}
