// csv.go: tabular detection record input, for monitoring program exports
package datastore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/occupancy-go/internal/errors"
)

// timestamp layouts accepted in recording_date_time, most specific first.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCSV reads detection records from a CSV export. The header must contain
// location, recording_date_time and species_code columns; common_name,
// scientific_name and confidence are picked up when present. Header matching
// is case insensitive.
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening record CSV: %w", err)).
			Component("datastore").Category(errors.CategoryFileIO).Build()
	}
	defer f.Close()

	records, err := parseCSV(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("parsing %s: %w", path, err)).
			Component("datastore").Category(errors.CategoryFileParsing).Build()
	}
	return records, nil
}

func parseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"location", "recording_date_time", "species_code"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		ts, err := parseTimestamp(row[cols["recording_date_time"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := Record{
			Location:          strings.TrimSpace(row[cols["location"]]),
			RecordingDateTime: ts,
			SpeciesCode:       strings.TrimSpace(row[cols["species_code"]]),
		}
		if i, ok := cols["common_name"]; ok {
			rec.CommonName = strings.TrimSpace(row[i])
		}
		if i, ok := cols["scientific_name"]; ok {
			rec.ScientificName = strings.TrimSpace(row[i])
		}
		if i, ok := cols["confidence"]; ok && row[i] != "" {
			c, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad confidence %q", line, row[i])
			}
			rec.Confidence = c
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable recording_date_time %q", s)
}
