package history

import (
	"fmt"
	"strings"
)

// TreatmentExtractor derives a treatment label from a site identifier.
type TreatmentExtractor func(siteID string) (string, error)

// SuffixTreatment is the default extractor for the monitoring program's
// naming convention: the last two characters of the site identifier are the
// treatment code (e.g. "RIV-07-CC" -> "CC").
func SuffixTreatment(siteID string) (string, error) {
	if len(siteID) < 2 {
		return "", fmt.Errorf("site identifier %q too short for a treatment suffix", siteID)
	}
	return siteID[len(siteID)-2:], nil
}

// KnownSuffixTreatment wraps SuffixTreatment with an allow list, rejecting
// site identifiers whose suffix is not one of the given labels.
func KnownSuffixTreatment(labels ...string) TreatmentExtractor {
	allowed := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		allowed[l] = struct{}{}
	}
	return func(siteID string) (string, error) {
		label, err := SuffixTreatment(siteID)
		if err != nil {
			return "", err
		}
		if _, ok := allowed[label]; !ok {
			return "", fmt.Errorf("site %q has unknown treatment %q, expected one of %s",
				siteID, label, strings.Join(labels, ", "))
		}
		return label, nil
	}
}
