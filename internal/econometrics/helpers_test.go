package econometrics

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEstimator() *Estimator {
	return NewEstimator(DefaultSettings(), discardLogger())
}

// panelParams controls the synthetic panel generator used across tests
type panelParams struct {
	entities int
	periods  int
	noiseSD  float64
	errRho   float64 // AR(1) coefficient in the error process
	xRho     float64 // AR(1) coefficient in the x1 process
	hetero   bool    // entity-dependent error scale
	seed     int64
}

// buildSyntheticPanel generates a balanced quarterly panel following
// y = 2*x1 - x2 + entity effect + eps. Columns: y, x1, x2, year.
func buildSyntheticPanel(t *testing.T, p panelParams) *Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(p.seed))

	n := p.entities * p.periods
	entities := make([]string, 0, n)
	times := make([]int, 0, n)
	yCol := make([]float64, 0, n)
	x1Col := make([]float64, 0, n)
	x2Col := make([]float64, 0, n)
	yearCol := make([]float64, 0, n)

	for e := 0; e < p.entities; e++ {
		name := string(rune('A'+e%26)) + "BC"
		if e >= 26 {
			name = name + "X"
		}
		alpha := rng.NormFloat64() * 2

		scale := p.noiseSD
		if p.hetero && e >= p.entities/2 {
			scale = p.noiseSD * 30
		}

		x1, eps := rng.NormFloat64(), rng.NormFloat64()*scale
		for q := 0; q < p.periods; q++ {
			year := 2012 + q/4
			quarter := q%4 + 1

			x1 = p.xRho*x1 + rng.NormFloat64()
			x2 := rng.NormFloat64()
			eps = p.errRho*eps + rng.NormFloat64()*scale
			y := 2*x1 - x2 + alpha + eps

			entities = append(entities, name)
			times = append(times, year*10+quarter)
			yCol = append(yCol, y)
			x1Col = append(x1Col, x1)
			x2Col = append(x2Col, x2)
			yearCol = append(yearCol, float64(year))
		}
	}

	frame, err := NewFrame(entities, times, map[string][]float64{
		"y": yCol, "x1": x1Col, "x2": x2Col, "year": yearCol,
	})
	require.NoError(t, err)
	return frame
}

func basicSpec() ModelSpec {
	return ModelSpec{
		Dependent:    "y",
		Regressors:   []string{"x1", "x2"},
		FixedEffects: []FixedEffect{FEEntity},
		SEType:       SERobust,
	}
}
