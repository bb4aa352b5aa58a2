package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Jumanaiqbal/schedclient"
	"github.com/Jumanaiqbal/schedclient/common"
	"github.com/Jumanaiqbal/schedclient/internal/auth"
	"github.com/Jumanaiqbal/schedclient/internal/logger"
)

type globalOptions struct {
	configFile string
	envFile    string
	logLevel   string
	pretty     bool
}

// app is resolved once per invocation, before any subcommand runs.
type app struct {
	cfg    *schedclient.Config
	logger zerolog.Logger
	api    common.SchedulingApi
	tokens *auth.FileStore
	out    io.Writer
}

func NewRootCommand(version, commit, date string) *cobra.Command {
	opts := &globalOptions{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "schedctl",
		Short: "Command line client for the driving school scheduling API",
		Long: `schedctl talks to the scheduling backend: it uploads registration CSVs,
reads dashboards and reports, and manages backend configuration.

The backend location comes from SCHEDULER_API_BASE_URL (default http://localhost:5001/api),
a YAML config file or a .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "schedctl.yaml", "YAML configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file read into the environment")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	flags.BoolVar(&opts.pretty, "pretty", false, "human readable logs")

	rootCmd.AddCommand(
		newDashboardCommand(a),
		newUploadCommand(a),
		newRegistrationsCommand(a),
		newReportCommand(a),
		newConfigCommand(a),
		newListCommand(a, "students", "List students", common.SchedulingApi.GetStudents, newAutoCreateCommand(a)),
		newListCommand(a, "instructors", "List instructors", common.SchedulingApi.GetInstructors),
		newListCommand(a, "class-types", "List class types", common.SchedulingApi.GetClassTypes),
		newTokenCommand(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := schedclient.LoadConfig(opts.configFile, opts.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = opts.pretty
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logger = logger.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr).With().Str("component", "schedctl").Logger()
	a.tokens = schedclient.NewFileTokenStore(cfg.StoragePath)

	client, err := schedclient.Create(cfg, schedclient.WithTokenStore(a.tokens), schedclient.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.api = client
	a.logger.Debug().Str("base_url", cfg.BaseURL).Msg("client ready")
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
