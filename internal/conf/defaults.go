// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "occupancy-go")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "occupancy.log")

	viper.SetDefault("input.csvpath", "")
	viper.SetDefault("input.species", "")

	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "detections.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "occupancy")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "occupancy")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.format", "text")

	viper.SetDefault("occupancy.alpha", 0.05)
	viper.SetDefault("occupancy.maxevaluations", 2000)

	viper.SetDefault("power.sims", 200)
	viper.SetDefault("power.workers", 0)
	viper.SetDefault("power.seed", 1)
	viper.SetDefault("power.design.treatments", []string{"CC", "OG", "UP"})
	viper.SetDefault("power.design.timepoints", []float64{0, 1, 2, 3, 4})
	viper.SetDefault("power.design.sitespertreatment", 30)
	viper.SetDefault("power.design.surveys", 4)
	viper.SetDefault("power.effects.betatime", 0.0)
	viper.SetDefault("power.effects.betatreatment", []float64{})
	viper.SetDefault("power.effects.detectionprob", 0.3)
	viper.SetDefault("power.scaling.center", 0.0)
	viper.SetDefault("power.scaling.scale", 0.0)
}
