package conf

import (
	"errors"
	"fmt"
)

// ValidateSettings checks the loaded settings for values that would make a
// run impossible. It validates structural constraints only; command specific
// requirements (e.g. power needing scaling parameters) are checked by the
// commands themselves.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if settings.Occupancy.Alpha <= 0 || settings.Occupancy.Alpha >= 1 {
		errs = append(errs, fmt.Errorf("occupancy.alpha must be in (0,1), got %g", settings.Occupancy.Alpha))
	}
	if settings.Occupancy.MaxEvaluations <= 0 {
		errs = append(errs, fmt.Errorf("occupancy.maxevaluations must be positive, got %d", settings.Occupancy.MaxEvaluations))
	}

	if settings.Power.Sims <= 0 {
		errs = append(errs, fmt.Errorf("power.sims must be positive, got %d", settings.Power.Sims))
	}
	if settings.Power.Workers < 0 {
		errs = append(errs, fmt.Errorf("power.workers must not be negative, got %d", settings.Power.Workers))
	}

	d := settings.Power.Design
	if len(d.Treatments) == 0 {
		errs = append(errs, errors.New("power.design.treatments must not be empty"))
	}
	if len(d.TimePoints) == 0 {
		errs = append(errs, errors.New("power.design.timepoints must not be empty"))
	}
	if d.SitesPerTreatment <= 0 {
		errs = append(errs, fmt.Errorf("power.design.sitespertreatment must be positive, got %d", d.SitesPerTreatment))
	}
	if d.Surveys <= 0 {
		errs = append(errs, fmt.Errorf("power.design.surveys must be positive, got %d", d.Surveys))
	}

	e := settings.Power.Effects
	if len(e.BetaTreatment) != 0 && len(e.BetaTreatment) != len(d.Treatments) {
		errs = append(errs, fmt.Errorf("power.effects.betatreatment must have one value per treatment, got %d for %d treatments",
			len(e.BetaTreatment), len(d.Treatments)))
	}
	if e.DetectionProb <= 0 || e.DetectionProb >= 1 {
		errs = append(errs, fmt.Errorf("power.effects.detectionprob must be in (0,1), got %g", e.DetectionProb))
	}

	switch settings.Output.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output.format must be text or json, got %q", settings.Output.Format))
	}

	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		errs = append(errs, errors.New("only one of output.sqlite and output.mysql may be enabled"))
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		errs = append(errs, errors.New("output.sqlite.path must be set when sqlite is enabled"))
	}
	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Database == "" || settings.Output.MySQL.Host == "" {
			errs = append(errs, errors.New("output.mysql requires database and host"))
		}
	}

	return errors.Join(errs...)
}
