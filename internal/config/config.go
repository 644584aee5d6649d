// Package config loads panellogin settings from flags, environment, an
// optional YAML file and built-in defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"panellogin/internal/login"
)

// EnvPrefix namespaces environment overrides, e.g. PANELLOGIN_PACING_MAX.
const EnvPrefix = "PANELLOGIN"

// Config represents the complete panellogin configuration
type Config struct {
	Accounts AccountsConfig `mapstructure:"accounts"`
	Panel    PanelConfig    `mapstructure:"panel"`
	Form     FormConfig     `mapstructure:"form"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Pacing   PacingConfig   `mapstructure:"pacing"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	// Schedule is a cron expression; empty means run once and exit.
	Schedule string `mapstructure:"schedule"`
}

// AccountsConfig locates the credential source
type AccountsConfig struct {
	// File is read when the environment variable named by Env is unset or empty.
	File string `mapstructure:"file"`
	Env  string `mapstructure:"env"`
}

// PanelConfig describes the login endpoint
type PanelConfig struct {
	// URLTemplate must contain {panelnum}.
	URLTemplate string `mapstructure:"url_template"`
}

// FormConfig is the DOM contract of the login page
type FormConfig struct {
	UsernameSelector string   `mapstructure:"username_selector"`
	PasswordSelector string   `mapstructure:"password_selector"`
	SubmitSelectors  []string `mapstructure:"submit_selectors"`
	SuccessSelector  string   `mapstructure:"success_selector"`
}

// BrowserConfig controls the Chrome process
type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless"`
	ExecPath  string `mapstructure:"exec_path"`
	UserAgent string `mapstructure:"user_agent"`
}

// TimeoutsConfig bounds the waits of a login attempt
type TimeoutsConfig struct {
	Step         time.Duration `mapstructure:"step"`
	NetworkQuiet time.Duration `mapstructure:"network_quiet"`
}

// PacingConfig bounds the random delay between accounts
type PacingConfig struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// OutputConfig enables the optional result sinks
type OutputConfig struct {
	CSV             string `mapstructure:"csv"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// LogConfig controls diagnostics on stderr
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	form := login.DefaultForm()
	return &Config{
		Accounts: AccountsConfig{
			File: "accounts.json",
			Env:  "ACCOUNTS_JSON",
		},
		Panel: PanelConfig{
			URLTemplate: login.DefaultLoginURL,
		},
		Form: FormConfig{
			UsernameSelector: form.UsernameSelector,
			PasswordSelector: form.PasswordSelector,
			SubmitSelectors:  form.SubmitSelectors,
			SuccessSelector:  form.SuccessSelector,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Timeouts: TimeoutsConfig{
			Step:         login.DefaultStepTimeout,
			NetworkQuiet: login.DefaultNetworkQuiet,
		},
		Pacing: PacingConfig{
			Min: time.Second,
			Max: 9 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every default with v so env and file overrides can be
// layered on top.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("accounts.file", d.Accounts.File)
	v.SetDefault("accounts.env", d.Accounts.Env)

	v.SetDefault("panel.url_template", d.Panel.URLTemplate)

	v.SetDefault("form.username_selector", d.Form.UsernameSelector)
	v.SetDefault("form.password_selector", d.Form.PasswordSelector)
	v.SetDefault("form.submit_selectors", d.Form.SubmitSelectors)
	v.SetDefault("form.success_selector", d.Form.SuccessSelector)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.exec_path", d.Browser.ExecPath)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)

	v.SetDefault("timeouts.step", d.Timeouts.Step)
	v.SetDefault("timeouts.network_quiet", d.Timeouts.NetworkQuiet)

	v.SetDefault("pacing.min", d.Pacing.Min)
	v.SetDefault("pacing.max", d.Pacing.Max)

	v.SetDefault("output.csv", d.Output.CSV)
	v.SetDefault("output.metrics_textfile", d.Output.MetricsTextfile)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("schedule", d.Schedule)
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "panellogin")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "panellogin")
}

// Prepare wires defaults, environment lookup and the config file search path
// into v. cfgFile, when set, is the only file considered.
func Prepare(v *viper.Viper, cfgFile string) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("panellogin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := ConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	// e.g. PANELLOGIN_TIMEOUTS_STEP for timeouts.step
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the config file (if any) and decodes v into a validated Config.
// A missing file is only an error when it was named explicitly.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	Prepare(v, cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}
