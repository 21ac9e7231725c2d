// Package fit implements the real-data occupancy model fit subcommand.
package fit

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/occupancy-go/internal/conf"
	"github.com/tphakala/occupancy-go/internal/datastore"
	"github.com/tphakala/occupancy-go/internal/history"
	"github.com/tphakala/occupancy-go/internal/occupancy"
)

var saveEffects bool

// Command returns the fit subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the occupancy model to real monitoring data",
		Long: "Builds the detection history for the target species and fits the fixed\n" +
			"structure occupancy model: constant detection probability, occupancy on\n" +
			"standardized time and treatment. The fitted effect sizes and time scaling\n" +
			"parameterize a later power run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings.Input.Species == "" {
				return fmt.Errorf("fit requires --species")
			}
			return runFit(settings)
		},
	}

	cmd.Flags().BoolVar(&saveEffects, "save", false, "store fitted effects and scaling in the config for the power command")

	return cmd
}

func runFit(settings *conf.Settings) error {
	records, err := datastore.LoadRecords(settings)
	if err != nil {
		return err
	}

	matrix, covs, err := history.NewBuilder().Build(history.FromRecords(records), settings.Input.Species)
	if err != nil {
		return err
	}

	fitter := occupancy.NewFitter(settings.Occupancy.MaxEvaluations)
	model, err := fitter.Fit(matrix, covs)
	if err != nil {
		// The real data fit has no fallback; a non-converged fit is fatal
		// here, unlike inside the simulation loop.
		return err
	}

	switch settings.Output.Format {
	case "json":
		if err := printJSON(model); err != nil {
			return err
		}
	default:
		printTable(settings.Input.Species, matrix, model)
	}

	if saveEffects {
		if err := storeEffects(settings, model); err != nil {
			return err
		}
		fmt.Println("\nFitted effects and scaling saved to config.")
	}
	return nil
}

func printTable(species string, matrix *occupancy.DetectionMatrix, model *occupancy.FittedModel) {
	fmt.Printf("Occupancy model fit for %s (%d site occasions, logLik %.3f)\n\n",
		species, model.Sites, model.LogLik)

	fmt.Printf("%-20s %10s %10s %8s %10s\n", "coefficient", "estimate", "std.err", "z", "p")
	for _, c := range model.Occupancy {
		fmt.Printf("%-20s %10.4f %10.4f %8.3f %10.4g\n", c.Name, c.Estimate, c.StdErr, c.Z, c.PValue)
	}
	c := model.Detection
	fmt.Printf("%-20s %10.4f %10.4f %8.3f %10.4g\n", c.Name, c.Estimate, c.StdErr, c.Z, c.PValue)

	fmt.Printf("\nDetection probability: %.3f per visit\n", model.DetectionProb())
	fmt.Printf("Naive occupancy:       %.3f\n", matrix.NaiveOccupancy())
	fmt.Printf("Time scaling:          center %.4f scale %.4f\n", model.Scaling.Center, model.Scaling.Scale)
}

func printJSON(model *occupancy.FittedModel) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(model)
}

// storeEffects writes the fitted parameterization into the power section of
// the settings and persists the config, so a power run simulates under the
// real data estimates and, critically, the same time standardization.
func storeEffects(settings *conf.Settings, model *occupancy.FittedModel) error {
	settings.Power.Design.Treatments = model.Levels
	settings.Power.Effects.BetaTime = model.TimeCoef().Estimate
	settings.Power.Effects.BetaTreatment = model.TreatmentIntercepts()
	settings.Power.Effects.DetectionProb = model.DetectionProb()
	settings.Power.Scaling.Center = model.Scaling.Center
	settings.Power.Scaling.Scale = model.Scaling.Scale
	return conf.SaveSettings()
}
