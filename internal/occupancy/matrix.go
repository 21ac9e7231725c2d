// Package occupancy implements the single season occupancy model used for
// both the real data fit and the simulated power replicates: constant
// detection probability, occupancy on the logit scale as a linear function of
// standardized survey time and a categorical treatment factor.
package occupancy

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Missing marks a visit column that did not occur for a site occasion.
const Missing int8 = -1

// DetectionMatrix is a site occasion by visit matrix of detection indicators.
// Cells are 0 (visited, not detected), 1 (detected) or Missing.
type DetectionMatrix struct {
	Units []string // one label per row, e.g. "SITE-CC 2021-04-12"
	Cells [][]int8
}

// NewDetectionMatrix returns a matrix with the given row labels and visit
// column count, all cells initialized to Missing.
func NewDetectionMatrix(units []string, visits int) *DetectionMatrix {
	cells := make([][]int8, len(units))
	for i := range cells {
		row := make([]int8, visits)
		for j := range row {
			row[j] = Missing
		}
		cells[i] = row
	}
	return &DetectionMatrix{Units: units, Cells: cells}
}

// Rows returns the number of site occasions.
func (m *DetectionMatrix) Rows() int { return len(m.Cells) }

// Visits returns the number of visit columns.
func (m *DetectionMatrix) Visits() int {
	if len(m.Cells) == 0 {
		return 0
	}
	return len(m.Cells[0])
}

// At returns the cell value for a row and visit column.
func (m *DetectionMatrix) At(row, visit int) int8 { return m.Cells[row][visit] }

// Set assigns the cell value for a row and visit column.
func (m *DetectionMatrix) Set(row, visit int, v int8) { m.Cells[row][visit] = v }

// RowSummary returns the detection count and the number of visits that
// actually occurred for one row.
func (m *DetectionMatrix) RowSummary(row int) (detections, visited int) {
	for _, c := range m.Cells[row] {
		if c == Missing {
			continue
		}
		visited++
		if c == 1 {
			detections++
		}
	}
	return detections, visited
}

// NaiveOccupancy returns the fraction of rows with at least one detection,
// ignoring imperfect detection. Useful as a report sanity figure.
func (m *DetectionMatrix) NaiveOccupancy() float64 {
	if m.Rows() == 0 {
		return 0
	}
	occupied := 0
	for i := range m.Cells {
		if d, _ := m.RowSummary(i); d > 0 {
			occupied++
		}
	}
	return float64(occupied) / float64(m.Rows())
}

// SiteCovariates carries one covariate row per DetectionMatrix row.
type SiteCovariates struct {
	Years       []float64 // raw years since the site's first survey
	YearsScaled []float64 // standardized time
	Treatment   []string  // treatment label per row
	Levels      []string  // distinct labels in factor order; Levels[0] is the reference
	Scaling     Scaling   // standardization applied to Years
}

// Rows returns the number of covariate rows.
func (c *SiteCovariates) Rows() int { return len(c.Treatment) }

// LevelIndex returns the factor index of a treatment label, or -1.
func (c *SiteCovariates) LevelIndex(label string) int {
	for i, l := range c.Levels {
		if l == label {
			return i
		}
	}
	return -1
}

// Scaling is the center/scale pair of a z-score standardization. The pair
// learned on the real data must be reused for simulation so that beta_time
// keeps the same meaning in both.
type Scaling struct {
	Center float64
	Scale  float64
}

// FitScaling learns a z-score standardization from the given values. A
// degenerate sample (zero or undefined spread) falls back to unit scale so
// the transform stays invertible.
func FitScaling(xs []float64) Scaling {
	c := stat.Mean(xs, nil)
	s := stat.StdDev(xs, nil)
	if s == 0 || math.IsNaN(s) {
		s = 1
	}
	return Scaling{Center: c, Scale: s}
}

// Apply standardizes a raw value.
func (s Scaling) Apply(x float64) float64 { return (x - s.Center) / s.Scale }

// Invert maps a standardized value back to the raw scale.
func (s Scaling) Invert(z float64) float64 { return z*s.Scale + s.Center }

// IsZero reports whether the scaling is unset.
func (s Scaling) IsZero() bool { return s.Center == 0 && s.Scale == 0 }

// InvLogit is the numerically stable logistic transform.
func InvLogit(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit is the log odds transform, the inverse of InvLogit.
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
