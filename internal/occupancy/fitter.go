package occupancy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tphakala/occupancy-go/internal/errors"
)

// ErrNotConverged is reported when the likelihood maximization fails. Callers
// running simulation replicates treat it as a recoverable per-replicate
// outcome; for the real data fit it is fatal.
var ErrNotConverged = errors.NewStd("occupancy model fit did not converge")

// Coefficient is one fitted model term with its Wald test statistics.
type Coefficient struct {
	Name     string
	Estimate float64
	StdErr   float64
	Z        float64
	PValue   float64
}

// FittedModel is the result of maximizing the occupancy likelihood.
type FittedModel struct {
	Occupancy []Coefficient // intercept, years_scaled, then one offset per non-reference level
	Detection Coefficient   // constant detection probability on the logit scale
	Levels    []string      // treatment factor levels, Levels[0] is the reference
	Scaling   Scaling       // time standardization carried over from the covariates
	LogLik    float64
	Sites     int // rows used in the fit
	Evals     int // likelihood evaluations spent
}

// TimeCoef returns the years_scaled slope.
func (m *FittedModel) TimeCoef() Coefficient { return m.Occupancy[1] }

// TreatmentCoefs returns the non-reference treatment offsets.
func (m *FittedModel) TreatmentCoefs() []Coefficient { return m.Occupancy[2:] }

// DetectionProb returns the fitted per-visit detection probability.
func (m *FittedModel) DetectionProb() float64 { return InvLogit(m.Detection.Estimate) }

// TreatmentIntercepts returns per-treatment occupancy intercepts on the logit
// scale (reference intercept plus each offset), aligned with Levels. This is
// the parameterization the synthetic data generator consumes.
func (m *FittedModel) TreatmentIntercepts() []float64 {
	out := make([]float64, len(m.Levels))
	out[0] = m.Occupancy[0].Estimate
	for i, c := range m.TreatmentCoefs() {
		out[i+1] = m.Occupancy[0].Estimate + c.Estimate
	}
	return out
}

// Fitter maximizes the single season occupancy likelihood with BFGS and a
// numerically differentiated gradient. The model structure is fixed:
// psi ~ years_scaled + treatment, p ~ 1.
type Fitter struct {
	MaxEvaluations int     // likelihood evaluation budget; exceeding it is a convergence failure
	GradTolerance  float64 // gradient infinity norm at which the fit is accepted
}

// NewFitter returns a fitter with the given evaluation budget. A zero or
// negative budget falls back to 2000 evaluations.
func NewFitter(maxEvaluations int) *Fitter {
	if maxEvaluations <= 0 {
		maxEvaluations = 2000
	}
	return &Fitter{MaxEvaluations: maxEvaluations, GradTolerance: 1e-6}
}

// Fit maximizes the occupancy likelihood for the given detection matrix and
// row aligned covariates. It returns ErrNotConverged (wrapped) when the
// optimizer fails, exceeds its budget, or the information matrix at the
// optimum is not positive definite.
func (f *Fitter) Fit(y *DetectionMatrix, covs *SiteCovariates) (*FittedModel, error) {
	if y.Rows() == 0 {
		return nil, errors.Newf("detection matrix has no rows").
			Component("occupancy").Category(errors.CategoryDataIntegrity).Build()
	}
	if covs.Rows() != y.Rows() {
		return nil, errors.Newf("covariates have %d rows, detection matrix has %d", covs.Rows(), y.Rows()).
			Component("occupancy").Category(errors.CategoryDataIntegrity).Build()
	}
	if len(covs.Levels) < 1 {
		return nil, errors.Newf("treatment factor has no levels").
			Component("occupancy").Category(errors.CategoryDataIntegrity).Build()
	}

	X, names := designMatrix(covs)
	nParams := len(names) + 1 // occupancy betas plus logit detection
	if y.Rows() <= nParams {
		return nil, errors.Newf("%d site occasions cannot identify %d parameters", y.Rows(), nParams).
			Component("occupancy").Category(errors.CategoryDataIntegrity).Build()
	}

	// Collapse each row to (detections, visits); the constant-p likelihood
	// only depends on these two counts.
	det := make([]float64, y.Rows())
	vis := make([]float64, y.Rows())
	for i := range y.Cells {
		d, k := y.RowSummary(i)
		if k == 0 {
			return nil, errors.Newf("site occasion %q has no visits", y.Units[i]).
				Component("occupancy").Category(errors.CategoryDataIntegrity).Build()
		}
		det[i] = float64(d)
		vis[i] = float64(k)
	}

	nll := func(x []float64) float64 {
		return negLogLik(x, X, det, vis)
	}
	problem := optimize.Problem{
		Func: nll,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, nll, x, nil)
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations:   f.MaxEvaluations,
		GradientThreshold: f.GradTolerance,
	}

	x0 := make([]float64, nParams)
	result, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if err != nil {
		return nil, convergenceError(fmt.Sprintf("optimizer failed: %v", err))
	}
	if !converged(result.Status) {
		return nil, convergenceError(fmt.Sprintf("optimizer stopped with status %v after %d evaluations", result.Status, result.FuncEvaluations))
	}
	if !allFinite(result.X) || math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return nil, convergenceError("optimum is not finite")
	}

	cov, err := waldCovariance(nll, result.X)
	if err != nil {
		return nil, err
	}

	model := &FittedModel{
		Levels:  covs.Levels,
		Scaling: covs.Scaling,
		LogLik:  -result.F,
		Sites:   y.Rows(),
		Evals:   result.FuncEvaluations,
	}
	for j, name := range names {
		model.Occupancy = append(model.Occupancy, waldCoefficient(name, result.X[j], cov.At(j, j)))
	}
	model.Detection = waldCoefficient("p(Int)", result.X[nParams-1], cov.At(nParams-1, nParams-1))
	return model, nil
}

// designMatrix builds the occupancy submodel design: intercept, standardized
// time, then one indicator per non-reference treatment level.
func designMatrix(covs *SiteCovariates) (x *mat.Dense, names []string) {
	n := covs.Rows()
	cols := 2 + len(covs.Levels) - 1
	x = mat.NewDense(n, cols, nil)
	names = []string{"psi(Int)", "psi(years_scaled)"}
	for _, level := range covs.Levels[1:] {
		names = append(names, "psi(trt"+level+")")
	}
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, covs.YearsScaled[i])
		for l, level := range covs.Levels[1:] {
			if covs.Treatment[i] == level {
				x.Set(i, 2+l, 1)
			}
		}
	}
	return x, names
}

// negLogLik is the zero-inflated binomial negative log likelihood of the
// single season occupancy model with constant detection probability:
//
//	L_i = psi_i * p^d_i * (1-p)^(k_i-d_i) + (1-psi_i) * [d_i == 0]
//
// computed on the log scale throughout.
func negLogLik(x []float64, X *mat.Dense, det, vis []float64) float64 {
	n, cols := X.Dims()
	beta := x[:cols]
	logitP := x[len(x)-1]
	logP := logSigmoid(logitP)
	logQ := logSigmoid(-logitP)

	var nll float64
	for i := 0; i < n; i++ {
		eta := floats.Dot(X.RawRowView(i), beta)
		logPsi := logSigmoid(eta)
		logOneMinusPsi := logSigmoid(-eta)
		occupied := logPsi + det[i]*logP + (vis[i]-det[i])*logQ
		if det[i] > 0 {
			nll -= occupied
		} else {
			nll -= logSumExp(occupied, logOneMinusPsi)
		}
	}
	return nll
}

// waldCovariance inverts the observed information matrix at the optimum.
func waldCovariance(nll func([]float64) float64, x []float64) (*mat.SymDense, error) {
	n := len(x)
	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, nll, x, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(hess); !ok {
		return nil, convergenceError("information matrix is not positive definite")
	}
	cov := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, convergenceError(fmt.Sprintf("information matrix inversion failed: %v", err))
	}
	return cov, nil
}

// waldCoefficient builds a coefficient with a two sided normal test.
func waldCoefficient(name string, estimate, variance float64) Coefficient {
	se := math.Sqrt(variance)
	z := estimate / se
	return Coefficient{
		Name:     name,
		Estimate: estimate,
		StdErr:   se,
		Z:        z,
		PValue:   2 * distuv.UnitNormal.Survival(math.Abs(z)),
	}
}

func convergenceError(reason string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrNotConverged, reason)).
		Component("occupancy").
		Category(errors.CategoryModelConvergence).
		Build()
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionThreshold, optimize.FunctionConvergence,
		optimize.GradientThreshold, optimize.StepConvergence, optimize.MethodConverge:
		return true
	default:
		return false
	}
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return false
		}
	}
	return true
}

// logSigmoid computes log(1/(1+exp(-u))) without overflow.
func logSigmoid(u float64) float64 {
	return -softplus(-u)
}

// softplus computes log(1+exp(v)) without overflow.
func softplus(v float64) float64 {
	if v > 35 {
		return v
	}
	return math.Log1p(math.Exp(v))
}

// logSumExp computes log(exp(a)+exp(b)) stably.
func logSumExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}
