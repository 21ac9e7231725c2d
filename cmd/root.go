package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/occupancy-go/cmd/fit"
	"github.com/tphakala/occupancy-go/cmd/history"
	"github.com/tphakala/occupancy-go/cmd/power"
	"github.com/tphakala/occupancy-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "occupancy",
		Short: "Occupancy power analysis for species monitoring data",
		Long: "Builds detection histories from visit level species detection records,\n" +
			"fits a single season occupancy model, and estimates statistical power to\n" +
			"detect time and treatment effects by Monte Carlo simulation.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		history.Command(settings),
		fit.Command(settings),
		power.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Input.CSVPath, "csv", viper.GetString("input.csvpath"), "Read detection records from a CSV export instead of the database")
	rootCmd.PersistentFlags().StringVarP(&settings.Input.Species, "species", "s", viper.GetString("input.species"), "Species code the analysis targets")
	rootCmd.PersistentFlags().StringVar(&settings.Output.Format, "format", viper.GetString("output.format"), "Report format, text or json")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
