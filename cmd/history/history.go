// Package history implements the detection-history subcommand.
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/occupancy-go/internal/conf"
	"github.com/tphakala/occupancy-go/internal/datastore"
	"github.com/tphakala/occupancy-go/internal/history"
	"github.com/tphakala/occupancy-go/internal/occupancy"
)

var exportPath string

// Command returns the history subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Build the detection history for a species",
		Long: "Builds the site by visit detection history matrix and site covariates for\n" +
			"the target species. Without --species and with a database configured, lists\n" +
			"the recorded species instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings.Input.Species == "" {
				return listSpecies(settings)
			}
			return runHistory(settings)
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "write the detection history as CSV to this path")

	return cmd
}

func listSpecies(settings *conf.Settings) error {
	store, err := datastore.New(settings)
	if err != nil {
		return fmt.Errorf("no --species given and %w", err)
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.GetSpeciesSummaries()
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %-28s %8s  %-10s %-10s\n", "code", "common name", "records", "first", "last")
	for _, s := range summaries {
		fmt.Printf("%-12s %-28s %8d  %-10s %-10s\n",
			s.SpeciesCode, s.CommonName, s.Count,
			s.FirstSeen.Format("2006-01-02"), s.LastSeen.Format("2006-01-02"))
	}
	return nil
}

func runHistory(settings *conf.Settings) error {
	records, err := datastore.LoadRecords(settings)
	if err != nil {
		return err
	}

	matrix, covs, err := history.NewBuilder().Build(history.FromRecords(records), settings.Input.Species)
	if err != nil {
		return err
	}

	fmt.Printf("Detection history for %s\n", settings.Input.Species)
	fmt.Printf("  site occasions:   %d\n", matrix.Rows())
	fmt.Printf("  visit columns:    %d\n", matrix.Visits())
	fmt.Printf("  treatment levels: %v (reference %s)\n", covs.Levels, covs.Levels[0])
	fmt.Printf("  naive occupancy:  %.3f\n", matrix.NaiveOccupancy())
	fmt.Printf("  time scaling:     center %.4f scale %.4f\n", covs.Scaling.Center, covs.Scaling.Scale)

	if exportPath != "" {
		if err := exportCSV(exportPath, matrix, covs); err != nil {
			return err
		}
		fmt.Printf("  exported to:      %s\n", exportPath)
	}
	return nil
}

// exportCSV writes one row per site occasion: unit label, covariates, then
// the visit columns with empty cells for visits that did not occur.
func exportCSV(path string, matrix *occupancy.DetectionMatrix, covs *occupancy.SiteCovariates) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"unit", "treatment", "years_since_first", "years_scaled"}
	for j := 1; j <= matrix.Visits(); j++ {
		header = append(header, fmt.Sprintf("visit_%d", j))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < matrix.Rows(); i++ {
		row := []string{
			matrix.Units[i],
			covs.Treatment[i],
			strconv.FormatFloat(covs.Years[i], 'f', 6, 64),
			strconv.FormatFloat(covs.YearsScaled[i], 'f', 6, 64),
		}
		for j := 0; j < matrix.Visits(); j++ {
			switch v := matrix.At(i, j); v {
			case occupancy.Missing:
				row = append(row, "")
			default:
				row = append(row, strconv.Itoa(int(v)))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
