// model.go this code defines the data model for detection records
package datastore

import "time"

// Record is one visit level detection: a species recorded at a monitoring
// site at an instant. It is the source of truth for everything downstream;
// sites, visits and detection histories are all derived from these rows.
type Record struct {
	ID                uint      `gorm:"primaryKey"`
	Location          string    `gorm:"index:idx_records_location;index:idx_records_location_datetime"`
	RecordingDateTime time.Time `gorm:"index:idx_records_datetime;index:idx_records_location_datetime"`
	SpeciesCode       string    `gorm:"index:idx_records_species"`
	ScientificName    string
	CommonName        string
	Confidence        float64
}

// SpeciesSummary contains per species counts used to pick an analysis target.
type SpeciesSummary struct {
	SpeciesCode string
	CommonName  string
	Count       int
	FirstSeen   time.Time
	LastSeen    time.Time
}
