// Package conf provides configuration management for occupancy-go.
// It defines the settings struct and functions to load and save the settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogSettings contains settings for the application log file.
type LogSettings struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// MainSettings contains top level application settings.
type MainSettings struct {
	Name string      // name of this node, used in logs and reports
	Log  LogSettings // log settings
}

// InputSettings selects where detection records are read from.
type InputSettings struct {
	CSVPath string `yaml:"csvpath"` // path to a detection record CSV export
	Species string // species code the analysis targets
}

// SQLiteSettings contains settings for the SQLite database backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to the database file
}

// MySQLSettings contains settings for the MySQL database backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings contains database and report output settings.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings `yaml:"mysql"`
	Format string        // report format, "text" or "json"
}

// OccupancySettings controls the occupancy model fit.
type OccupancySettings struct {
	Alpha          float64 // significance threshold for Wald tests
	MaxEvaluations int     // likelihood evaluation budget per fit
}

// DesignSettings describes the synthetic survey design.
type DesignSettings struct {
	Treatments        []string  // treatment labels, e.g. CC, OG, UP
	TimePoints        []float64 // survey years since first survey
	SitesPerTreatment int       // replicate sites per treatment and time point
	Surveys           int       // repeat visits per site occasion
}

// EffectsSettings holds the occupancy effect sizes driving the simulation.
type EffectsSettings struct {
	BetaTime      float64   `yaml:"betatime"`
	BetaTreatment []float64 `yaml:"betatreatment"` // aligned with Design.Treatments
	DetectionProb float64   `yaml:"detectionprob"`
}

// ScalingSettings carries the time standardization from a real data fit.
// Power runs require these so simulated effect sizes stay comparable to the
// real data estimates.
type ScalingSettings struct {
	Center float64
	Scale  float64
}

// PowerSettings controls the power simulation engine.
type PowerSettings struct {
	Sims    int             // number of Monte Carlo replicates
	Workers int             // parallel fit workers, 0 for GOMAXPROCS
	Seed    int64           // parent seed for replicate random sources
	Design  DesignSettings  // synthetic survey design
	Effects EffectsSettings // effect sizes
	Scaling ScalingSettings // time standardization from the real fit
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug log output

	Main      MainSettings
	Input     InputSettings
	Output    OutputSettings
	Occupancy OccupancySettings
	Power     PowerSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file, run on defaults
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the config file search paths, current
// directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "occupancy-go"))
	}
	return paths, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		configPath = filepath.Join(configPaths[0], "config.yaml")
	}

	return SaveYAMLConfig(configPath, &settingsCopy)
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first to ensure an atomic replace
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
