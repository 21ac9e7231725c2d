package simulation

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/occupancy-go/internal/errors"
	"github.com/tphakala/occupancy-go/internal/logging"
	"github.com/tphakala/occupancy-go/internal/occupancy"
)

// PowerResult aggregates one power run. Power is the fraction of converged
// replicates whose effect p-value fell below Alpha; replicates whose fit did
// not converge are excluded from the denominator and counted in Excluded.
type PowerResult struct {
	RunID           string         `json:"run_id"`
	Replicates      int            `json:"replicates"`
	Excluded        int            `json:"excluded"`
	Alpha           float64        `json:"alpha"`
	TimePower       float64        `json:"time_power"`
	TreatmentPower  float64        `json:"treatment_power"`
	LevelRejections map[string]int `json:"level_rejections"` // per non-reference level, out of converged replicates
	Elapsed         time.Duration  `json:"elapsed_ns"`
}

// EffectiveN returns the power denominator.
func (r *PowerResult) EffectiveN() int {
	return r.Replicates - r.Excluded
}

// replicateOutcome is the per-replicate reduction input.
type replicateOutcome struct {
	converged bool
	timeSig   bool
	levelSig  []bool // aligned with non-reference levels
}

// Engine runs the simulate-and-fit loop. Replicates are independent and run
// in parallel; each owns a random source seeded from Seed plus its index so
// results are reproducible regardless of scheduling.
type Engine struct {
	Fitter  *occupancy.Fitter
	Workers int    // 0 means GOMAXPROCS
	Seed    uint64 // parent seed
	log     *slog.Logger
}

// NewEngine returns an engine using the given fitter.
func NewEngine(fitter *occupancy.Fitter, workers int, seed uint64) *Engine {
	return &Engine{
		Fitter:  fitter,
		Workers: workers,
		Seed:    seed,
		log:     logging.ForModule("simulation"),
	}
}

// Run executes nSims replicates and reduces them into a PowerResult.
// Treatment power uses OR semantics: a replicate counts as significant when
// ANY non-reference treatment coefficient has p < alpha. The scaling is
// required; simulated effect sizes are only comparable to the real data fit
// when both use the same time standardization.
func (e *Engine) Run(ctx context.Context, nSims int, d Design, eff Effects, scaling *occupancy.Scaling, alpha float64) (*PowerResult, error) {
	if nSims <= 0 {
		return nil, errors.Newf("replicate count must be positive, got %d", nSims).
			Component("simulation").Category(errors.CategoryValidation).Build()
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.Newf("alpha must be in (0,1), got %g", alpha).
			Component("simulation").Category(errors.CategoryValidation).Build()
	}
	if scaling == nil || scaling.Scale == 0 {
		return nil, errors.Newf("power run requires the time scaling from a real data fit").
			Component("simulation").Category(errors.CategoryValidation).Build()
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := eff.Validate(d); err != nil {
		return nil, err
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	e.log.Info("power run starting",
		"replicates", nSims,
		"workers", workers,
		"units", d.Units(),
		"alpha", alpha)

	outcomes := make([]replicateOutcome, nSims)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < nSims; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := e.replicate(uint64(i), d, eff, scaling, alpha)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	levels := distinctSorted(d.Treatments)
	result := &PowerResult{
		RunID:           uuid.NewString(),
		Replicates:      nSims,
		Alpha:           alpha,
		LevelRejections: make(map[string]int, len(levels)-1),
		Elapsed:         time.Since(start),
	}
	timeHits, treatmentHits := 0, 0
	for _, o := range outcomes {
		if !o.converged {
			result.Excluded++
			continue
		}
		if o.timeSig {
			timeHits++
		}
		anyLevel := false
		for l, sig := range o.levelSig {
			if sig {
				anyLevel = true
				result.LevelRejections[levels[l+1]]++
			}
		}
		if anyLevel {
			treatmentHits++
		}
	}

	effectiveN := result.EffectiveN()
	if effectiveN == 0 {
		return nil, errors.Newf("all %d replicates failed to converge", nSims).
			Component("simulation").Category(errors.CategoryModelConvergence).Build()
	}
	result.TimePower = float64(timeHits) / float64(effectiveN)
	result.TreatmentPower = float64(treatmentHits) / float64(effectiveN)

	e.log.Info("power run finished",
		"run_id", result.RunID,
		"time_power", result.TimePower,
		"treatment_power", result.TreatmentPower,
		"excluded", result.Excluded,
		"elapsed", result.Elapsed)

	return result, nil
}

// replicate generates and fits one synthetic dataset. A convergence failure
// is a valid outcome; any other error aborts the run.
func (e *Engine) replicate(index uint64, d Design, eff Effects, scaling *occupancy.Scaling, alpha float64) (replicateOutcome, error) {
	gen := NewGenerator(e.Seed + index)
	matrix, covs, err := gen.Generate(d, eff, scaling)
	if err != nil {
		return replicateOutcome{}, err
	}

	model, err := e.Fitter.Fit(matrix, covs)
	if err != nil {
		if errors.Is(err, occupancy.ErrNotConverged) {
			e.log.Debug("replicate excluded", "replicate", index, "reason", err.Error())
			return replicateOutcome{converged: false}, nil
		}
		return replicateOutcome{}, err
	}

	outcome := replicateOutcome{
		converged: true,
		timeSig:   model.TimeCoef().PValue < alpha,
	}
	for _, c := range model.TreatmentCoefs() {
		outcome.levelSig = append(outcome.levelSig, c.PValue < alpha)
	}
	return outcome, nil
}
