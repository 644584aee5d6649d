package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"panellogin/internal/login"
)

// ValidationError is one rejected setting, keyed by its viper path.
type ValidationError struct {
	Field   string // e.g. "timeouts.step"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Field, e.Value, e.Message)
}

// ValidationErrors lists every rejected setting of a config, so a user can
// fix them all in one edit.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	if len(msgs) <= 1 {
		return strings.Join(msgs, "")
	}
	return fmt.Sprintf("invalid config (%d settings): %s", len(msgs), strings.Join(msgs, "; "))
}

// ValidLogLevels are the levels accepted by log.level, matched case-insensitively.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate reports every invalid setting of c; nil means c is usable.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Accounts.File == "" && c.Accounts.Env == "" {
		add("accounts.file", c.Accounts.File, "either accounts.file or accounts.env is required")
	}

	tmpl := c.Panel.URLTemplate
	if !strings.Contains(tmpl, "{panelnum}") {
		add("panel.url_template", tmpl, "must contain {panelnum}")
	} else if u, err := url.Parse(strings.ReplaceAll(tmpl, "{panelnum}", "1")); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("panel.url_template", tmpl, "must be an absolute http or https URL")
	}

	if c.Form.UsernameSelector == "" {
		add("form.username_selector", c.Form.UsernameSelector, "must not be empty")
	}
	if c.Form.PasswordSelector == "" {
		add("form.password_selector", c.Form.PasswordSelector, "must not be empty")
	}
	if len(c.Form.SubmitSelectors) == 0 || slices.Contains(c.Form.SubmitSelectors, "") {
		add("form.submit_selectors", c.Form.SubmitSelectors, "must be a non-empty list of selectors")
	}
	if c.Form.SuccessSelector == "" {
		add("form.success_selector", c.Form.SuccessSelector, "must not be empty")
	}

	if c.Timeouts.Step <= 0 {
		add("timeouts.step", c.Timeouts.Step, "must be positive")
	}
	if c.Timeouts.NetworkQuiet <= 0 {
		add("timeouts.network_quiet", c.Timeouts.NetworkQuiet, "must be positive")
	}

	if c.Pacing.Min <= 0 {
		add("pacing.min", c.Pacing.Min, "must be positive")
	}
	if c.Pacing.Max < c.Pacing.Min {
		add("pacing.max", c.Pacing.Max, "must not be less than pacing.min")
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		add("log.level", c.Log.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}

	if c.Schedule != "" {
		if _, err := login.ParseSchedule(c.Schedule); err != nil {
			add("schedule", c.Schedule, err.Error())
		}
	}

	return errs
}
