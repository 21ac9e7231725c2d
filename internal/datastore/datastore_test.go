package datastore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Record{}))
	return &DataStore{DB: db}
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", value)
	require.NoError(t, err)
	return ts
}

func seedTestData(t *testing.T, ds *DataStore) {
	t.Helper()

	require.NoError(t, ds.Save(
		Record{Location: "RIV-02-UP", RecordingDateTime: at(t, "2021-04-11 06:00:00"), SpeciesCode: "oveni1", CommonName: "Ovenbird"},
		Record{Location: "RIV-01-CC", RecordingDateTime: at(t, "2021-04-10 06:00:00"), SpeciesCode: "amerob", CommonName: "American Robin"},
		Record{Location: "RIV-01-CC", RecordingDateTime: at(t, "2021-04-10 07:00:00"), SpeciesCode: "oveni1", CommonName: "Ovenbird"},
		Record{Location: "RIV-01-CC", RecordingDateTime: at(t, "2022-04-12 06:00:00"), SpeciesCode: "oveni1", CommonName: "Ovenbird"},
	))
}

func TestGetAllRecordsOrdering(t *testing.T) {
	t.Parallel()

	ds := setupTestDB(t)
	seedTestData(t, ds)

	records, err := ds.GetAllRecords()
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Ordered by location then recording time.
	assert.Equal(t, "RIV-01-CC", records[0].Location)
	assert.Equal(t, "amerob", records[0].SpeciesCode)
	assert.Equal(t, "RIV-02-UP", records[3].Location)
}

func TestRecordsInRange(t *testing.T) {
	t.Parallel()

	ds := setupTestDB(t)
	seedTestData(t, ds)

	records, err := ds.RecordsInRange(at(t, "2021-01-01 00:00:00"), at(t, "2022-01-01 00:00:00"))
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestGetSpeciesSummaries(t *testing.T) {
	t.Parallel()

	ds := setupTestDB(t)
	seedTestData(t, ds)

	summaries, err := ds.GetSpeciesSummaries()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most detected species first.
	assert.Equal(t, "oveni1", summaries[0].SpeciesCode)
	assert.Equal(t, 3, summaries[0].Count)
	assert.Equal(t, "Ovenbird", summaries[0].CommonName)
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"location,recording_date_time,species_code,common_name,confidence",
		"RIV-01-CC,2021-04-10 06:00:00,oveni1,Ovenbird,0.91",
		"RIV-02-UP,2021-04-11T06:00:00Z,amerob,American Robin,0.73",
		"RIV-03-OG,2021-05-01,blujay,Blue Jay,",
	}, "\n")

	records, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "RIV-01-CC", records[0].Location)
	assert.Equal(t, "oveni1", records[0].SpeciesCode)
	assert.InDelta(t, 0.91, records[0].Confidence, 1e-12)
	assert.Equal(t, 2021, records[1].RecordingDateTime.Year())
	assert.Zero(t, records[2].Confidence)
}

func TestParseCSVMissingColumn(t *testing.T) {
	t.Parallel()

	input := "location,species_code\nRIV-01-CC,oveni1\n"
	_, err := parseCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording_date_time")
}

func TestParseCSVBadTimestamp(t *testing.T) {
	t.Parallel()

	input := "location,recording_date_time,species_code\nRIV-01-CC,yesterday,oveni1\n"
	_, err := parseCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording_date_time")
}
