package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"panellogin/internal/config"
	"panellogin/internal/login"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"accounts":         "accounts.file",
	"schedule":         "schedule",
	"output":           "output.csv",
	"metrics-textfile": "output.metrics_textfile",
	"log-level":        "log.level",
	"headless":         "browser.headless",
	"chrome-path":      "browser.exec_path",
	"timeout":          "timeouts.step",
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "panellogin",
		Short: "Log in to every configured hosting-panel account",
		Long: `panellogin signs in to each account of a credential list on its numbered
control panel, one account at a time in a fresh browser context, and reports
whether each login succeeded. Run it once or on a cron schedule to keep the
panel accounts active.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			if err := login.SetLogLevel(cfg.Log.Level); err != nil {
				return err
			}
			if cfg.Schedule == "" {
				return runOnce(cmd.Context(), cfg, stdout)
			}
			return login.RunScheduled(cmd.Context(), cfg.Schedule, func(ctx context.Context) error {
				return runOnce(ctx, cfg, stdout)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./panellogin.yaml or $HOME/.config/panellogin/panellogin.yaml)")
	f.String("accounts", "", "accounts file, used when $ACCOUNTS_JSON is empty (default accounts.json)")
	f.String("schedule", "", `cron expression to repeat the batch, e.g. "0 */6 * * *" or "@daily"`)
	f.String("output", "", "append results to this CSV file")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file after each batch")
	f.String("log-level", "", "debug, info, warn or error")
	f.Bool("headless", true, "run the browser headless")
	f.String("chrome-path", "", "Chrome or Chromium executable")
	f.Duration("timeout", 0, "bound for every wait of a login attempt (default 15s)")
	for name, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(name))
	}
	return cmd
}

// runOnce loads the accounts and runs a single batch. Only startup failures
// are returned; per-account failures are part of the report.
func runOnce(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	accounts, err := login.LoadAccounts(login.Source{EnvVar: cfg.Accounts.Env, File: cfg.Accounts.File})
	if err != nil {
		return err
	}

	reporter, err := newReporter(cfg, stdout)
	if err != nil {
		return err
	}

	run, err := login.RunBatch(ctx, accounts, login.Options{
		Browser: login.BrowserOptions{
			Headless:     cfg.Browser.Headless,
			ExecPath:     cfg.Browser.ExecPath,
			UserAgent:    cfg.Browser.UserAgent,
			NetworkQuiet: cfg.Timeouts.NetworkQuiet,
		},
		LoginURL: cfg.Panel.URLTemplate,
		Form: login.Form{
			UsernameSelector: cfg.Form.UsernameSelector,
			PasswordSelector: cfg.Form.PasswordSelector,
			SubmitSelectors:  cfg.Form.SubmitSelectors,
			SuccessSelector:  cfg.Form.SuccessSelector,
		},
		StepTimeout: cfg.Timeouts.Step,
		Pacer:       login.NewUniformPacer(cfg.Pacing.Min, cfg.Pacing.Max),
		Reporter:    reporter,
	})
	if err != nil {
		if run == nil {
			// The browser never started, so no reporter saw Finish.
			_ = reporter.Close()
		}
		return fmt.Errorf("batch aborted: %w", err)
	}
	return nil
}

func newReporter(cfg *config.Config, stdout io.Writer) (login.MultiReporter, error) {
	reporters := login.MultiReporter{login.NewTextReporter(stdout)}
	if cfg.Output.CSV != "" {
		csv, err := login.NewCSVReporter(cfg.Output.CSV)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, csv)
	}
	if cfg.Output.MetricsTextfile != "" {
		reporters = append(reporters, login.NewMetricsReporter(cfg.Output.MetricsTextfile))
	}
	return reporters, nil
}
