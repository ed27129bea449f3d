package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"loginscraper/internal/components/telemetry"

	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	verbose    bool

	cfg Config
	tel telemetry.Telemetry
	api telemetry.API
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	telemetry.InitSlog(a.verbose)
	if a.verbose {
		slog.DebugContext(cmd.Context(), "verbose logging enabled")
	}
	a.api = telemetry.SlogAPI{}

	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	cfg.applyEnv()
	a.cfg = cfg

	tel, err := telemetry.Setup(cmd.Context(), "loginscrape", cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	a.tel = tel
	return nil
}

func (a *app) shutdown() {
	err := a.tel.Shutdown(context.Background())
	if err != nil {
		slog.Warn("failed to shutdown telemetry", "err", err)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "loginscrape",
		Short:             "loginscrape logs into a site through its login form and scrapes one authenticated page.",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", fmt.Sprintf("The config file to read (default: %s in the working directory or its parents).", defaultConfigName))
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enables debug logging.")

	root.AddCommand(a.scrapeCommand())
	root.AddCommand(a.tokenCommand())
	return root
}

func ExecuteContext(ctx context.Context) {
	a := &app{}
	err := a.rootCommand().ExecuteContext(ctx)
	a.shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
