// Package power implements the Monte Carlo power analysis subcommand.
package power

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/occupancy-go/internal/conf"
	"github.com/tphakala/occupancy-go/internal/occupancy"
	"github.com/tphakala/occupancy-go/internal/simulation"
)

// Command returns the power subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Estimate power to detect time and treatment effects",
		Long: "Runs the simulate-and-fit loop: draws synthetic occupancy datasets under\n" +
			"the configured design and effect sizes, refits the occupancy model to each,\n" +
			"and reports the fraction of replicates with a significant time effect and a\n" +
			"significant treatment effect (any non-reference level). Effects and time\n" +
			"scaling normally come from a previous 'fit --save' run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPower(cmd, settings)
		},
	}

	cmd.Flags().IntVarP(&settings.Power.Sims, "sims", "n", settings.Power.Sims, "number of simulation replicates")
	cmd.Flags().IntVar(&settings.Power.Workers, "workers", settings.Power.Workers, "parallel fit workers, 0 for all CPUs")
	cmd.Flags().Int64Var(&settings.Power.Seed, "seed", settings.Power.Seed, "parent seed for replicate random sources")
	cmd.Flags().Float64Var(&settings.Power.Effects.BetaTime, "beta-time", settings.Power.Effects.BetaTime, "time effect on the logit occupancy scale")
	cmd.Flags().Float64Var(&settings.Power.Effects.DetectionProb, "p-detect", settings.Power.Effects.DetectionProb, "per visit detection probability")

	return cmd
}

func runPower(cmd *cobra.Command, settings *conf.Settings) error {
	design := simulation.Design{
		Treatments:        settings.Power.Design.Treatments,
		TimePoints:        settings.Power.Design.TimePoints,
		SitesPerTreatment: settings.Power.Design.SitesPerTreatment,
		Surveys:           settings.Power.Design.Surveys,
	}
	effects := simulation.Effects{
		BetaTime:      settings.Power.Effects.BetaTime,
		BetaTreatment: settings.Power.Effects.BetaTreatment,
		DetectionProb: settings.Power.Effects.DetectionProb,
	}

	if len(effects.BetaTreatment) == 0 {
		return fmt.Errorf("no treatment effect sizes configured; run 'fit --save' first or set power.effects.betatreatment")
	}
	scaling := occupancy.Scaling{
		Center: settings.Power.Scaling.Center,
		Scale:  settings.Power.Scaling.Scale,
	}
	if scaling.Scale == 0 {
		return fmt.Errorf("no time scaling configured; run 'fit --save' first or set power.scaling " +
			"(simulated effect sizes are only comparable to the real fit under the same standardization)")
	}

	fitter := occupancy.NewFitter(settings.Occupancy.MaxEvaluations)
	engine := simulation.NewEngine(fitter, settings.Power.Workers, uint64(settings.Power.Seed))

	result, err := engine.Run(cmd.Context(), settings.Power.Sims, design, effects, &scaling, settings.Occupancy.Alpha)
	if err != nil {
		return err
	}

	switch settings.Output.Format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		printReport(design, effects, result)
	}
	return nil
}

func printReport(design simulation.Design, effects simulation.Effects, result *simulation.PowerResult) {
	fmt.Printf("Power analysis %s\n", result.RunID)
	fmt.Printf("  design:     %d treatments x %d time points x %d sites, %d surveys\n",
		len(design.Treatments), len(design.TimePoints), design.SitesPerTreatment, design.Surveys)
	fmt.Printf("  effects:    beta_time %.3f, p_detect %.3f\n", effects.BetaTime, effects.DetectionProb)
	fmt.Printf("  replicates: %d (%d excluded as non-converged)\n", result.Replicates, result.Excluded)
	fmt.Printf("  alpha:      %.3f\n\n", result.Alpha)
	fmt.Printf("  power(time):      %.3f\n", result.TimePower)
	fmt.Printf("  power(treatment): %.3f (any non-reference level)\n", result.TreatmentPower)
	levels := make([]string, 0, len(result.LevelRejections))
	for level := range result.LevelRejections {
		levels = append(levels, level)
	}
	sort.Strings(levels)
	for _, level := range levels {
		fmt.Printf("    level %s rejected in %d/%d converged replicates\n",
			level, result.LevelRejections[level], result.EffectiveN())
	}
	fmt.Printf("  elapsed:    %s\n", result.Elapsed.Round(time.Millisecond))
}
