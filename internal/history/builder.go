// Package history transforms raw visit level detection records into the
// detection history matrix and site covariates the occupancy model consumes.
package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/tphakala/occupancy-go/internal/errors"
	"github.com/tphakala/occupancy-go/internal/occupancy"
)

// DaysPerYear converts day offsets to fractional years.
const DaysPerYear = 365.25

// Detection is one recording event: a species recorded at a site at an
// instant. Records for every species feed the builder; only the target
// species contributes detections, the rest anchor the visit set and each
// site's first survey date.
type Detection struct {
	Site      string
	Timestamp time.Time
	Species   string
}

// visit is one distinct (site, timestamp) recording event.
type visit struct {
	site     string
	date     time.Time // timestamp truncated to date
	ts       time.Time
	order    int // arrival order, tie-break for simultaneous visits
	visitNum int // 1-based rank within (site, date)
	detected bool
}

// Builder converts detection records into a detection history. The treatment
// label is derived from the site identifier by Extractor, so callers can
// swap the site naming convention without touching the algorithm.
type Builder struct {
	Extractor TreatmentExtractor
}

// NewBuilder returns a builder using the default last-two-characters
// treatment extractor.
func NewBuilder() *Builder {
	return &Builder{Extractor: SuffixTreatment}
}

// Build derives the detection matrix and row aligned covariates for the
// target species. Every distinct (site, timestamp) event in the records is a
// visit; visits collapse to one matrix row per (site, date) with one column
// per within-day visit rank. Visits where the target species was not recorded
// get 0, never dropped. A species absent from the records entirely is valid
// and yields an all-zero matrix.
func (b *Builder) Build(records []Detection, targetSpecies string) (*occupancy.DetectionMatrix, *occupancy.SiteCovariates, error) {
	if len(records) == 0 {
		return nil, nil, errors.Newf("no detection records supplied").
			Component("history").Category(errors.CategoryDataIntegrity).Build()
	}
	if targetSpecies == "" {
		return nil, nil, errors.Newf("target species is empty").
			Component("history").Category(errors.CategoryValidation).Build()
	}

	// First survey per site anchors the site clock, computed over ALL
	// records regardless of species.
	firstSurvey := make(map[string]time.Time)
	for _, r := range records {
		if r.Site == "" {
			return nil, nil, errors.Newf("record has empty site identifier").
				Component("history").Category(errors.CategoryDataIntegrity).Build()
		}
		d := dateOf(r.Timestamp)
		if first, ok := firstSurvey[r.Site]; !ok || d.Before(first) {
			firstSurvey[r.Site] = d
		}
	}

	// Full visit set: every distinct (site, timestamp) event, in arrival
	// order. Detections of the target species mark their visit.
	visitIndex := make(map[string]*visit)
	var visits []*visit
	for _, r := range records {
		key := r.Site + "\x00" + r.Timestamp.Format(time.RFC3339Nano)
		v, ok := visitIndex[key]
		if !ok {
			v = &visit{site: r.Site, date: dateOf(r.Timestamp), ts: r.Timestamp, order: len(visits)}
			visitIndex[key] = v
			visits = append(visits, v)
		}
		if r.Species == targetSpecies {
			v.detected = true
		}
	}

	// Rank visits within each (site, date); simultaneous visits keep their
	// arrival order.
	groups := make(map[string][]*visit)
	for _, v := range visits {
		key := v.site + "\x00" + v.date.Format(time.DateOnly)
		groups[key] = append(groups[key], v)
	}
	maxVisits := 0
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].ts.Equal(group[j].ts) {
				return group[i].ts.Before(group[j].ts)
			}
			return group[i].order < group[j].order
		})
		for n, v := range group {
			v.visitNum = n + 1
		}
		if len(group) > maxVisits {
			maxVisits = len(group)
		}
	}

	// One matrix row per (site, date), ordered by site then date for a
	// deterministic layout.
	unitKeys := make([]string, 0, len(groups))
	for key := range groups {
		unitKeys = append(unitKeys, key)
	}
	sort.Strings(unitKeys)

	units := make([]string, len(unitKeys))
	covs := &occupancy.SiteCovariates{}
	for i, key := range unitKeys {
		group := groups[key]
		site, date := group[0].site, group[0].date

		treatment, err := b.Extractor(site)
		if err != nil {
			return nil, nil, errors.New(fmt.Errorf("deriving treatment for site %q: %w", site, err)).
				Component("history").Category(errors.CategoryDataIntegrity).Build()
		}

		units[i] = site + " " + date.Format(time.DateOnly)
		covs.Years = append(covs.Years, yearsBetween(firstSurvey[site], date))
		covs.Treatment = append(covs.Treatment, treatment)
	}

	matrix := occupancy.NewDetectionMatrix(units, maxVisits)
	for i, key := range unitKeys {
		for _, v := range groups[key] {
			cell := int8(0)
			if v.detected {
				cell = 1
			}
			matrix.Set(i, v.visitNum-1, cell)
		}
	}

	covs.Levels = distinctSorted(covs.Treatment)
	covs.Scaling = occupancy.FitScaling(covs.Years)
	covs.YearsScaled = make([]float64, len(covs.Years))
	for i, y := range covs.Years {
		covs.YearsScaled[i] = covs.Scaling.Apply(y)
	}

	return matrix, covs, nil
}

// dateOf discards the time of day, keeping the location's calendar date.
func dateOf(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func yearsBetween(first, date time.Time) float64 {
	return date.Sub(first).Hours() / 24 / DaysPerYear
}

func distinctSorted(labels []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
