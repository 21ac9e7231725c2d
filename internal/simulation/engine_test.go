package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/occupancy-go/internal/errors"
	"github.com/tphakala/occupancy-go/internal/occupancy"
)

func powerDesign() Design {
	return Design{
		Treatments:        []string{"CC", "OG", "UP"},
		TimePoints:        []float64{0, 1, 2, 3, 4},
		SitesPerTreatment: 30,
		Surveys:           4,
	}
}

func TestRunStrongEffectsHighPower(t *testing.T) {
	if testing.Short() {
		t.Skip("200 replicate fits")
	}
	t.Parallel()

	d := powerDesign()
	eff := Effects{
		BetaTime:      2,
		BetaTreatment: []float64{-1, 0.5, 2},
		DetectionProb: 0.3,
	}
	scaling := occupancy.FitScaling(d.TimePoints)

	engine := NewEngine(occupancy.NewFitter(5000), 0, 12345)
	result, err := engine.Run(context.Background(), 200, d, eff, &scaling, 0.05)
	require.NoError(t, err)

	assert.Greater(t, result.TimePower, 0.8)
	assert.Greater(t, result.TreatmentPower, 0.8)
	assert.Positive(t, result.EffectiveN())
	assert.NotEmpty(t, result.RunID)
}

func TestRunNullModelPowerNearAlpha(t *testing.T) {
	if testing.Short() {
		t.Skip("200 replicate fits")
	}
	t.Parallel()

	d := powerDesign()
	eff := Effects{
		BetaTime:      0,
		BetaTreatment: []float64{0, 0, 0},
		DetectionProb: 0.3,
	}
	scaling := occupancy.FitScaling(d.TimePoints)

	engine := NewEngine(occupancy.NewFitter(5000), 0, 777)
	result, err := engine.Run(context.Background(), 200, d, eff, &scaling, 0.05)
	require.NoError(t, err)

	// Under the null the rejection rate is the nominal alpha, give or take
	// Monte Carlo error.
	assert.InDelta(t, 0.05, result.TimePower, 0.06)
	// Two treatment levels tested with OR semantics roughly doubles the
	// null rejection rate.
	assert.Less(t, result.TreatmentPower, 0.25)
}

func TestRunDeterministicForSeed(t *testing.T) {
	t.Parallel()

	d := Design{
		Treatments:        []string{"CC", "OG", "UP"},
		TimePoints:        []float64{0, 2, 4},
		SitesPerTreatment: 15,
		Surveys:           3,
	}
	eff := Effects{BetaTime: 1, BetaTreatment: []float64{-0.5, 0, 0.5}, DetectionProb: 0.5}
	scaling := occupancy.FitScaling(d.TimePoints)

	run := func() *PowerResult {
		engine := NewEngine(occupancy.NewFitter(5000), 2, 42)
		result, err := engine.Run(context.Background(), 20, d, eff, &scaling, 0.05)
		require.NoError(t, err)
		return result
	}

	r1, r2 := run(), run()
	assert.Equal(t, r1.TimePower, r2.TimePower)
	assert.Equal(t, r1.TreatmentPower, r2.TreatmentPower)
	assert.Equal(t, r1.Excluded, r2.Excluded)
	assert.Equal(t, r1.LevelRejections, r2.LevelRejections)
}

func TestRunRequiresScaling(t *testing.T) {
	t.Parallel()

	engine := NewEngine(occupancy.NewFitter(100), 1, 1)
	eff := Effects{BetaTreatment: []float64{0, 0, 0}, DetectionProb: 0.5}

	_, err := engine.Run(context.Background(), 10, powerDesign(), eff, nil, 0.05)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = engine.Run(context.Background(), 10, powerDesign(), eff, &occupancy.Scaling{}, 0.05)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestRunParameterValidation(t *testing.T) {
	t.Parallel()

	engine := NewEngine(occupancy.NewFitter(100), 1, 1)
	eff := Effects{BetaTreatment: []float64{0, 0, 0}, DetectionProb: 0.5}
	scaling := occupancy.Scaling{Center: 2, Scale: 1.5}

	_, err := engine.Run(context.Background(), 0, powerDesign(), eff, &scaling, 0.05)
	assert.Error(t, err)

	_, err = engine.Run(context.Background(), 10, powerDesign(), eff, &scaling, 1.0)
	assert.Error(t, err)
}

func TestRunAllReplicatesExcluded(t *testing.T) {
	t.Parallel()

	// A one-evaluation budget cannot converge, so every replicate is
	// excluded and the run reports a convergence error instead of a power
	// with a zero denominator.
	d := Design{
		Treatments:        []string{"CC", "OG", "UP"},
		TimePoints:        []float64{0, 2, 4},
		SitesPerTreatment: 10,
		Surveys:           3,
	}
	eff := Effects{BetaTime: 1, BetaTreatment: []float64{0, 0, 0}, DetectionProb: 0.5}
	scaling := occupancy.FitScaling(d.TimePoints)

	fitter := occupancy.NewFitter(1)
	engine := NewEngine(fitter, 2, 9)
	_, err := engine.Run(context.Background(), 5, d, eff, &scaling, 0.05)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryModelConvergence))
}

func TestRunHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := powerDesign()
	eff := Effects{BetaTime: 0, BetaTreatment: []float64{0, 0, 0}, DetectionProb: 0.5}
	scaling := occupancy.FitScaling(d.TimePoints)

	engine := NewEngine(occupancy.NewFitter(5000), 1, 1)
	_, err := engine.Run(ctx, 50, d, eff, &scaling, 0.05)
	assert.ErrorIs(t, err, context.Canceled)
}
