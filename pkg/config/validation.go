package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the rules that
// cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	for name, q := range cfg.Quotas {
		if _, ok := zone.KindByName(name); !ok {
			return fmt.Errorf("quotas: unknown zone %q", name)
		}
		if q.MaxLevels > quota.MaxLevelsCeiling {
			return fmt.Errorf("quotas[%s]: max_levels %d exceeds the ceiling of %d",
				name, q.MaxLevels, quota.MaxLevelsCeiling)
		}
	}

	if cfg.Metadata.Type == "badger" {
		if _, ok := cfg.Metadata.Badger["db_path"]; !ok {
			return fmt.Errorf("metadata.badger: db_path is required")
		}
	}
	return nil
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
