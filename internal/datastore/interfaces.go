// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tphakala/occupancy-go/internal/conf"
	"github.com/tphakala/occupancy-go/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the analysis commands need.
type Interface interface {
	Open() error
	Close() error
	Save(records ...Record) error
	GetAllRecords() ([]Record, error)
	RecordsInRange(from, to time.Time) ([]Record, error)
	GetSpeciesSummaries() ([]SpeciesSummary, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a DataStore instance based on the provided settings.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled in settings").
			Component("datastore").Category(errors.CategoryConfiguration).Build()
	}
}

// Save inserts detection records in one transaction.
func (ds *DataStore) Save(records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ds.DB.Create(&records).Error; err != nil {
		return errors.New(fmt.Errorf("saving %d records: %w", len(records), err)).
			Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	return nil
}

// GetAllRecords returns every detection record ordered by site and time, the
// order the history builder relies on for stable visit ranking.
func (ds *DataStore) GetAllRecords() ([]Record, error) {
	var records []Record
	if err := ds.DB.Order("location, recording_date_time, id").Find(&records).Error; err != nil {
		return nil, errors.New(fmt.Errorf("getting all records: %w", err)).
			Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	return records, nil
}

// RecordsInRange returns records with recording times in [from, to).
func (ds *DataStore) RecordsInRange(from, to time.Time) ([]Record, error) {
	var records []Record
	err := ds.DB.
		Where("recording_date_time >= ? AND recording_date_time < ?", from, to).
		Order("location, recording_date_time, id").
		Find(&records).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting records in range: %w", err)).
			Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	return records, nil
}

// GetSpeciesSummaries returns per species detection counts and first/last
// seen times, most detected first. The min/max timestamps come back as text
// from the aggregate expressions, so they are parsed leniently; an
// unparseable value leaves the zero time rather than failing the query.
func (ds *DataStore) GetSpeciesSummaries() ([]SpeciesSummary, error) {
	rows, err := ds.DB.Table("records").
		Select("species_code, MAX(common_name) as common_name, COUNT(*) as count, " +
			"MIN(recording_date_time) as first_seen, MAX(recording_date_time) as last_seen").
		Group("species_code").
		Order("count DESC").
		Rows()
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting species summaries: %w", err)).
			Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	defer rows.Close()

	var summaries []SpeciesSummary
	for rows.Next() {
		var s SpeciesSummary
		var firstSeen, lastSeen string
		if err := rows.Scan(&s.SpeciesCode, &s.CommonName, &s.Count, &firstSeen, &lastSeen); err != nil {
			return nil, errors.New(fmt.Errorf("scanning species summary: %w", err)).
				Component("datastore").Category(errors.CategoryDatabase).Build()
		}
		if ts, err := parseAggregateTime(firstSeen); err == nil {
			s.FirstSeen = ts
		}
		if ts, err := parseAggregateTime(lastSeen); err == nil {
			s.LastSeen = ts
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(fmt.Errorf("iterating species summaries: %w", err)).
			Component("datastore").Category(errors.CategoryDatabase).Build()
	}
	return summaries, nil
}

// aggregateTimeLayouts cover the text forms the database backends emit for
// datetime aggregate expressions.
var aggregateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseAggregateTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range aggregateTimeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// performAutoMigration migrates the schema and wraps any failure.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return errors.New(fmt.Errorf("migrating %s database: %w", dbType, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("connection", connectionInfo).
			Build()
	}
	if debug {
		fmt.Printf("%s database connection initialized: %s\n", dbType, connectionInfo)
	}
	return nil
}

// createGormLogger returns a quiet GORM logger; query noise goes through the
// application loggers instead.
func createGormLogger() logger.Interface {
	return logger.Default.LogMode(logger.Silent)
}
