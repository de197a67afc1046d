package econometrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBatchPreservesOrder(t *testing.T) {
	frame := buildSyntheticPanel(t, panelParams{entities: 5, periods: 16, noiseSD: 0.2, seed: 20})
	est := NewEstimator(Settings{Workers: 4}, discardLogger())

	broken := basicSpec()
	broken.Dependent = "missing_kpi"

	entries := []BatchEntry{
		{Name: "Main", Spec: basicSpec()},
		{Name: "Broken", Spec: broken},
		{Name: "Clustered", Spec: func() ModelSpec {
			s := basicSpec()
			s.SEType = SEClustered
			return s
		}()},
	}

	batch, failures := est.RunBatch(context.Background(), frame, entries)

	assert.NotEmpty(t, batch.RunID)
	assert.Equal(t, []string{"Main", "Broken", "Clustered"}, batch.Names)

	// One failure never aborts the rest.
	require.Len(t, failures, 1)
	assert.Equal(t, "Broken", failures[0].Name)
	assert.Contains(t, failures[0].Err.Error(), "missing_kpi")

	main, ok := batch.Get("Main")
	require.True(t, ok)
	assert.True(t, main.Converged)

	brokenModel, ok := batch.Get("Broken")
	require.True(t, ok)
	assert.False(t, brokenModel.Converged)
	assert.Contains(t, brokenModel.FailureReason, "missing_kpi")
	assert.Empty(t, brokenModel.Coefficients)

	clustered, ok := batch.Get("Clustered")
	require.True(t, ok)
	assert.True(t, clustered.Converged)

	ordered := batch.InOrder()
	require.Len(t, ordered, 3)
	assert.Same(t, main, ordered[0])
	assert.Same(t, brokenModel, ordered[1])
	assert.Same(t, clustered, ordered[2])
}

func TestRunBatchAllFailures(t *testing.T) {
	frame := buildSyntheticPanel(t, panelParams{entities: 3, periods: 8, noiseSD: 0.2, seed: 21})
	est := testEstimator()

	bad := basicSpec()
	bad.Regressors = []string{"nope"}

	entries := []BatchEntry{
		{Name: "First", Spec: bad},
		{Name: "Second", Spec: bad},
	}

	batch, failures := est.RunBatch(context.Background(), frame, entries)
	assert.Equal(t, []string{"First", "Second"}, batch.Names)
	assert.Len(t, failures, 2)
	for _, model := range batch.InOrder() {
		assert.False(t, model.Converged)
		assert.NotEmpty(t, model.FailureReason)
	}
}

func TestRunBatchEmpty(t *testing.T) {
	frame := buildSyntheticPanel(t, panelParams{entities: 3, periods: 8, noiseSD: 0.2, seed: 22})
	batch, failures := testEstimator().RunBatch(context.Background(), frame, nil)
	assert.Empty(t, batch.Names)
	assert.Empty(t, failures)
	assert.NotEmpty(t, batch.RunID)
}
