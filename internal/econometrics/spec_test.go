package econometrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specTestFrame(t *testing.T) *Frame {
	t.Helper()
	frame, err := NewFrame(
		[]string{"JPM", "JPM", "BAC", "BAC"},
		[]int{20191, 20192, 20191, 20192},
		map[string][]float64{
			"roe":  {0.1, 0.2, 0.3, 0.4},
			"x1":   {1, 2, 3, 4},
			"x2":   {4, 3, 2, 1},
			"year": {2019, 2019, 2019, 2019},
		},
	)
	require.NoError(t, err)
	return frame
}

func TestModelSpecValidate(t *testing.T) {
	frame := specTestFrame(t)

	valid := ModelSpec{
		Dependent:    "roe",
		Regressors:   []string{"x1", "x2"},
		FixedEffects: []FixedEffect{FEEntity},
		SEType:       SERobust,
	}

	tests := []struct {
		name    string
		mutate  func(s *ModelSpec)
		wantErr string
	}{
		{name: "valid", mutate: func(s *ModelSpec) {}},
		{
			name:    "no dependent",
			mutate:  func(s *ModelSpec) { s.Dependent = "" },
			wantErr: "no dependent variable",
		},
		{
			name:    "no regressors",
			mutate:  func(s *ModelSpec) { s.Regressors = nil },
			wantErr: "no regressors",
		},
		{
			name:    "unknown dependent",
			mutate:  func(s *ModelSpec) { s.Dependent = "nim" },
			wantErr: `column "nim" not present`,
		},
		{
			name:    "unknown regressor",
			mutate:  func(s *ModelSpec) { s.Regressors = []string{"x1", "x9"} },
			wantErr: `column "x9" not present`,
		},
		{
			name:    "dependent among regressors",
			mutate:  func(s *ModelSpec) { s.Regressors = []string{"x1", "roe"} },
			wantErr: "includes the dependent",
		},
		{
			name:    "duplicate regressor",
			mutate:  func(s *ModelSpec) { s.Regressors = []string{"x1", "x1"} },
			wantErr: "listed twice",
		},
		{
			name:    "no fixed effects",
			mutate:  func(s *ModelSpec) { s.FixedEffects = nil },
			wantErr: "absorbs no fixed effects",
		},
		{
			name: "too many fixed-effect dimensions",
			mutate: func(s *ModelSpec) {
				s.FixedEffects = []FixedEffect{FEEntity, FETime, FEEntity}
			},
			wantErr: "at most 2",
		},
		{
			name: "duplicate fixed effect",
			mutate: func(s *ModelSpec) {
				s.FixedEffects = []FixedEffect{FEEntity, FEEntity}
			},
			wantErr: "twice",
		},
		{
			name: "unknown cluster key",
			mutate: func(s *ModelSpec) {
				s.SEType = SEClustered
				s.ClusterBy = "region"
			},
			wantErr: "unknown key",
		},
		{
			name: "cluster by time",
			mutate: func(s *ModelSpec) {
				s.SEType = SEClustered
				s.ClusterBy = "time"
			},
		},
		{
			name:   "two-way with hac",
			mutate: func(s *ModelSpec) { s.FixedEffects = []FixedEffect{FEEntity, FETime}; s.SEType = SEHAC },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			spec.Regressors = append([]string(nil), valid.Regressors...)
			spec.FixedEffects = append([]FixedEffect(nil), valid.FixedEffects...)
			tt.mutate(&spec)

			err := spec.Validate(frame)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDisplayFootnote(t *testing.T) {
	tests := []struct {
		name string
		spec ModelSpec
		want string
	}{
		{
			name: "clustered defaults to entity",
			spec: ModelSpec{SEType: SEClustered, FixedEffects: []FixedEffect{FEEntity}},
			want: "SE: clustered(entity); FE: entity",
		},
		{
			name: "clustered by time",
			spec: ModelSpec{SEType: SEClustered, ClusterBy: "time", FixedEffects: []FixedEffect{FEEntity}},
			want: "SE: clustered(time); FE: entity",
		},
		{
			name: "hac two-way",
			spec: ModelSpec{SEType: SEHAC, FixedEffects: []FixedEffect{FEEntity, FETime}},
			want: "SE: newey-west; FE: entity+time",
		},
		{
			name: "pcse",
			spec: ModelSpec{SEType: SEPCSE, FixedEffects: []FixedEffect{FEEntity}},
			want: "SE: pcse; FE: entity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.DisplayFootnote())
		})
	}
}

func TestHasFixedEffect(t *testing.T) {
	spec := ModelSpec{FixedEffects: []FixedEffect{FEEntity}}
	assert.True(t, spec.HasFixedEffect(FEEntity))
	assert.False(t, spec.HasFixedEffect(FETime))
}
