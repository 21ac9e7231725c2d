package history

import (
	"github.com/tphakala/occupancy-go/internal/datastore"
)

// FromRecords adapts stored detection records to the builder's input.
func FromRecords(records []datastore.Record) []Detection {
	out := make([]Detection, 0, len(records))
	for _, r := range records {
		out = append(out, Detection{
			Site:      r.Location,
			Timestamp: r.RecordingDateTime,
			Species:   r.SpeciesCode,
		})
	}
	return out
}
