package datastore

import (
	"github.com/tphakala/occupancy-go/internal/conf"
	"github.com/tphakala/occupancy-go/internal/errors"
)

// LoadRecords reads detection records from the configured source: the CSV
// export when input.csvpath is set, otherwise the enabled database backend.
func LoadRecords(settings *conf.Settings) ([]Record, error) {
	if settings.Input.CSVPath != "" {
		return ReadCSV(settings.Input.CSVPath)
	}

	store, err := New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.GetAllRecords()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Newf("no detection records in the configured database").
			Component("datastore").Category(errors.CategoryDataIntegrity).Build()
	}
	return records, nil
}
