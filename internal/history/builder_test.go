package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/occupancy-go/internal/errors"
	"github.com/tphakala/occupancy-go/internal/occupancy"
)

func rec(site, ts, species string) Detection {
	t, err := time.Parse("2006-01-02 15:04:05", ts)
	if err != nil {
		panic(err)
	}
	return Detection{Site: site, Timestamp: t, Species: species}
}

func TestBuildOneRowPerSiteDate(t *testing.T) {
	t.Parallel()

	records := []Detection{
		rec("RIV-01-CC", "2021-04-10 06:00:00", "amerob"),
		rec("RIV-01-CC", "2021-04-10 07:00:00", "blujay"),
		rec("RIV-01-CC", "2022-04-12 06:30:00", "oveni1"),
		rec("RIV-02-UP", "2021-04-11 06:00:00", "oveni1"),
		rec("RIV-03-OG", "2021-05-01 06:00:00", "blujay"),
	}

	m, covs, err := NewBuilder().Build(records, "oveni1")
	require.NoError(t, err)

	// Four distinct (site, date) units regardless of the target species.
	require.Equal(t, 4, m.Rows())
	require.Equal(t, covs.Rows(), m.Rows())
	assert.Equal(t, []string{
		"RIV-01-CC 2021-04-10",
		"RIV-01-CC 2022-04-12",
		"RIV-02-UP 2021-04-11",
		"RIV-03-OG 2021-05-01",
	}, m.Units)

	// Max two visits on one day sets the column count.
	assert.Equal(t, 2, m.Visits())

	// Visits without the target species are 0, single-visit days have a
	// Missing second column, detected visits are 1.
	assert.Equal(t, int8(0), m.At(0, 0))
	assert.Equal(t, int8(0), m.At(0, 1))
	assert.Equal(t, int8(1), m.At(1, 0))
	assert.Equal(t, occupancy.Missing, m.At(1, 1))
	assert.Equal(t, int8(1), m.At(2, 0))
	assert.Equal(t, int8(0), m.At(3, 0))
}

func TestBuildTreatmentAndLevels(t *testing.T) {
	t.Parallel()

	records := []Detection{
		rec("RIV-01-CC", "2021-04-10 06:00:00", "amerob"),
		rec("RIV-02-UP", "2021-04-11 06:00:00", "amerob"),
		rec("RIV-03-OG", "2021-05-01 06:00:00", "amerob"),
	}

	_, covs, err := NewBuilder().Build(records, "amerob")
	require.NoError(t, err)

	assert.Equal(t, []string{"CC", "UP", "OG"}, covs.Treatment)
	// Levels are sorted, so CC is the reference.
	assert.Equal(t, []string{"CC", "OG", "UP"}, covs.Levels)
}

func TestBuildYearsSinceFirst(t *testing.T) {
	t.Parallel()

	records := []Detection{
		// The non-target record on 2020-04-10 anchors the site clock even
		// though the target species first shows up a year later.
		rec("RIV-01-CC", "2020-04-10 06:00:00", "blujay"),
		rec("RIV-01-CC", "2021-04-10 06:00:00", "oveni1"),
		rec("RIV-01-CC", "2022-04-10 06:00:00", "oveni1"),
	}

	_, covs, err := NewBuilder().Build(records, "oveni1")
	require.NoError(t, err)
	require.Len(t, covs.Years, 3)

	assert.InDelta(t, 0.0, covs.Years[0], 1e-12)
	assert.InDelta(t, 365.0/DaysPerYear, covs.Years[1], 1e-9)
	assert.InDelta(t, 730.0/DaysPerYear, covs.Years[2], 1e-9)

	// years_since_first is non-decreasing with date within a site.
	for i := 1; i < len(covs.Years); i++ {
		assert.GreaterOrEqual(t, covs.Years[i], covs.Years[i-1])
	}

	// Standardization round trip reproduces the raw values.
	for i, y := range covs.Years {
		assert.InDelta(t, y, covs.Scaling.Invert(covs.YearsScaled[i]), 1e-12)
	}
}

func TestBuildVisitRankStableForSimultaneousVisits(t *testing.T) {
	t.Parallel()

	// Two recording events at the same instant: ranks follow record order.
	a := rec("RIV-01-CC", "2021-04-10 06:00:00", "oveni1")
	b := Detection{Site: "RIV-01-CC", Timestamp: a.Timestamp.Add(time.Nanosecond), Species: "blujay"}
	c := rec("RIV-01-CC", "2021-04-10 06:00:00", "amerob")

	m, _, err := NewBuilder().Build([]Detection{a, b, c}, "oveni1")
	require.NoError(t, err)

	// a and c share a timestamp and collapse into visit 1, which is
	// detected; b is visit 2, undetected.
	require.Equal(t, 1, m.Rows())
	require.Equal(t, 2, m.Visits())
	assert.Equal(t, int8(1), m.At(0, 0))
	assert.Equal(t, int8(0), m.At(0, 1))
}

func TestBuildSpeciesNeverDetected(t *testing.T) {
	t.Parallel()

	records := []Detection{
		rec("RIV-01-CC", "2021-04-10 06:00:00", "blujay"),
		rec("RIV-02-UP", "2021-04-11 06:00:00", "amerob"),
	}

	m, _, err := NewBuilder().Build(records, "oveni1")
	require.NoError(t, err)

	// An empty detection set is valid and yields all zero detections.
	for i := 0; i < m.Rows(); i++ {
		d, k := m.RowSummary(i)
		assert.Zero(t, d)
		assert.Equal(t, 1, k)
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	_, _, err := NewBuilder().Build(nil, "oveni1")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryDataIntegrity))

	_, _, err = NewBuilder().Build([]Detection{rec("RIV-01-CC", "2021-04-10 06:00:00", "x")}, "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	// Site identifier too short for the treatment suffix rule.
	_, _, err = NewBuilder().Build([]Detection{rec("A", "2021-04-10 06:00:00", "x")}, "x")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryDataIntegrity))
}

func TestKnownSuffixTreatment(t *testing.T) {
	t.Parallel()

	extract := KnownSuffixTreatment("CC", "OG", "UP")

	label, err := extract("RIV-01-OG")
	require.NoError(t, err)
	assert.Equal(t, "OG", label)

	_, err = extract("RIV-01-XX")
	assert.Error(t, err)
}
