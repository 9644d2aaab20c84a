package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// validate is a package-level validator instance (the idiomatic
// go-playground/validator pattern: it caches struct field metadata, so it is
// built once and reused across every ValidateConfig call).
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("knownagent", func(fl validator.FieldLevel) bool {
		return core.IsValidAgent(fl.Field().String())
	})
	_ = v.RegisterValidation("gotimeduration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})

	v.RegisterStructValidation(validateAgentsConfig, AgentsConfig{})
	return v
}

// validateAgentsConfig enforces the cross-field invariants a struct tag
// alone cannot express: the default agent must itself be enabled, and any
// enabled agent needs a binary path to spawn.
func validateAgentsConfig(sl validator.StructLevel) {
	agents := sl.Current().Interface().(AgentsConfig)

	if def := agents.Get(agents.Default); def != nil && !def.Enabled {
		sl.ReportError(agents.Default, "Default", "Default", "defaultagentenabled", "")
	}

	checkEnabled := func(field string, cfg AgentConfig) {
		if cfg.Enabled && strings.TrimSpace(cfg.Path) == "" {
			sl.ReportError(cfg.Path, field, field, "pathrequiredwhenenabled", "")
		}
	}
	checkEnabled("Claude.Path", agents.Claude)
	checkEnabled("Gemini.Path", agents.Gemini)
	checkEnabled("Codex.Path", agents.Codex)
	checkEnabled("Copilot.Path", agents.Copilot)
	checkEnabled("OpenCode.Path", agents.OpenCode)
}

// ValidateConfig validates cfg against its struct tags and the cross-field
// rules registered above, collapsing every violation into one error.
func ValidateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var invalid *validator.InvalidValidationError
		if ok := asInvalidValidationError(err, &invalid); ok {
			return fmt.Errorf("config validation: %w", err)
		}

		var msgs []string
		for _, fe := range err.(validator.ValidationErrors) {
			msgs = append(msgs, describeFieldError(fe))
		}
		return fmt.Errorf("config validation: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func asInvalidValidationError(err error, target **validator.InvalidValidationError) bool {
	ive, ok := err.(*validator.InvalidValidationError)
	if ok {
		*target = ive
	}
	return ok
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Namespace(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Namespace(), fe.Param())
	case "knownagent":
		return fmt.Sprintf("%s references an unknown agent %q", fe.Namespace(), fe.Value())
	case "gotimeduration":
		return fmt.Sprintf("%s is not a valid duration: %q", fe.Namespace(), fe.Value())
	case "defaultagentenabled":
		return fmt.Sprintf("agents.default %q must be enabled", fe.Value())
	case "pathrequiredwhenenabled":
		return fmt.Sprintf("%s is required when the agent is enabled", fe.Namespace())
	default:
		return fmt.Sprintf("%s failed validation %q", fe.Namespace(), fe.Tag())
	}
}
