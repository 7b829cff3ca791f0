package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/carbonwise/internal/config"
	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"codeberg.org/mutker/carbonwise/internal/tracker"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitPass         = 0
	exitFail         = 1
	exitInsufficient = 2
	exitError        = 3
)

// exitCodeError carries a process exit code out of a command. A nil err
// means the command already reported its outcome.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitCodeError{code: code, err: err}
}

// app holds the state shared by subcommands.
type app struct {
	cfg        *config.Config
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "carbonwise",
		Short:         "Measure and gate the energy and emissions of workloads",
		Version:       tracker.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var opts []config.Option
			if a.configPath != "" {
				opts = append(opts, config.WithConfigFile(a.configPath))
			}

			cfg, err := config.Load(cmd.Flags(), opts...)
			if err != nil {
				return withExitCode(exitError, err)
			}
			a.cfg = cfg

			logger.InitWithWriter(a.stderr, cfg.LogLevel, logger.IsService())
			logger.Debug().
				Str("log_path", cfg.LogPath).
				Float64("kwh_eur", cfg.Price).
				Str("country_iso", cfg.CountryISO).
				Msg("Config loaded")

			return nil
		},
	}

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: carbonwise.toml in ., user config dir, /etc)")
	pf.String("log", config.DefaultLogPath, "run log path (JSON lines)")
	pf.Float64("kwh-eur", config.DefaultPrice, "electricity price in EUR per kWh")
	pf.String("country", "", "ISO 3166 country code used for grid intensity")
	pf.String("log-level", config.DefaultLogLevel, "log level (debug, info, warning, error)")
	pf.Bool("debug", false, "enable debug logging")
	pf.Bool("verbose", false, "enable info logging")

	root.AddCommand(
		newRunCmd(a),
		newGateCmd(a),
		newReportCmd(a),
		newRegionsCmd(a),
	)

	return root
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitPass
	}

	var ece *exitCodeError
	if errors.As(err, &ece) {
		if ece.err != nil {
			fmt.Fprintln(stderr, "Error:", ece.err)
		}
		return ece.code
	}

	fmt.Fprintln(stderr, "Error:", err)

	return exitError
}
