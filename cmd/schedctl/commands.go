package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jumanaiqbal/schedclient"
	"github.com/Jumanaiqbal/schedclient/common"
	"github.com/Jumanaiqbal/schedclient/internal/auth"
)

func newDashboardCommand(a *app) *cobra.Command {
	var days int
	var byWeekday, reported bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show daily class counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dashboard, err := a.api.GetDashboardStats(cmd.Context(), days)
			if err != nil {
				return err
			}
			if byWeekday {
				return a.print(dashboard.ByWeekday())
			}
			if reported {
				return a.print(dashboard.Reported())
			}
			window := days
			if window <= 0 {
				window = 30
			}
			return a.print(dashboard.Daily(window, time.Now()))
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days to cover")
	cmd.Flags().BoolVar(&byWeekday, "by-weekday", false, "sum counts per day of week")
	cmd.Flags().BoolVar(&reported, "reported", false, "only the days the backend reported, without zero-filling")

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Show the dashboard summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.api.GetDashboardSummary(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(summary)
		},
	})
	return cmd
}

func newUploadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE.csv",
		Short: "Upload a registrations CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := a.api.UploadCSV(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			succeeded, failed := result.Counts()
			a.logger.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("upload processed")
			return a.print(result)
		},
	}
}

func newRegistrationsCommand(a *app) *cobra.Command {
	var filters []string
	cmd := &cobra.Command{
		Use:   "registrations",
		Short: "List registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := parsePairs(filters)
			if err != nil {
				return err
			}
			resp, err := a.api.GetRegistrations(cmd.Context(), query)
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "filter as key=value, repeatable")
	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	var filters []string
	var page, limit int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List scheduled classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := parsePairs(filters)
			if err != nil {
				return err
			}
			resp, err := a.api.GetClassesReport(cmd.Context(), schedclient.ReportQuery{Filters: query, Page: page, Limit: limit})
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "filter as key=value, repeatable")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")

	cmd.AddCommand(&cobra.Command{
		Use:   "filters",
		Short: "Show the available report filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := a.api.GetReportFilters(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(filters)
		},
	})
	return cmd
}

func newConfigCommand(a *app) *cobra.Command {
	var ui bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change the backend configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			get := a.api.GetConfig
			if ui {
				get = a.api.GetUIConfig
			}
			cfg, err := get(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cfg)
		},
	}
	cmd.Flags().BoolVar(&ui, "ui", false, "show the UI configuration")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set KEY=VALUE...",
			Short: "Save keys one by one, concurrently",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entries, err := parseEntries(args)
				if err != nil {
					return err
				}
				if len(entries) == 1 {
					data, err := a.api.UpdateConfig(cmd.Context(), entries[0])
					if err != nil {
						return err
					}
					return a.print(json.RawMessage(data))
				}
				results, err := a.api.UpdateConfigs(cmd.Context(), entries)
				if results != nil {
					if printErr := a.print(results); printErr != nil {
						return printErr
					}
				}
				return err
			},
		},
		&cobra.Command{
			Use:   "bulk KEY=VALUE...",
			Short: "Save keys through the bulk endpoint",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entries, err := parseEntries(args)
				if err != nil {
					return err
				}
				results, err := a.api.BulkUpdateConfig(cmd.Context(), entries)
				if err != nil {
					return err
				}
				if failed := results.Failed(); len(failed) > 0 {
					a.logger.Warn().Int("failed", len(failed)).Msg("some config keys were not saved")
				}
				if results.Bulk != nil {
					return a.print(results.Bulk)
				}
				return a.print(results)
			},
		},
	)
	return cmd
}

func newListCommand(a *app, use, short string,
	list func(common.SchedulingApi, context.Context) (*schedclient.ListResponse, error),
	subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := list(a.api, cmd.Context())
			if err != nil {
				return err
			}
			return a.print(resp)
		},
	}
	cmd.AddCommand(subcommands...)
	return cmd
}

func newAutoCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-create ID...",
		Short: "Create missing students by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.api.AutoCreateStudents(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.print(result)
		},
	}
}

func newTokenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored bearer token",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set TOKEN",
			Short: "Store the bearer token sent with every request",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				if err := a.tokens.Set(auth.TokenKey, args[0]); err != nil {
					return err
				}
				a.logger.Info().Str("path", a.tokens.Path()).Msg("token stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored bearer token",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.tokens.Delete(auth.TokenKey)
			},
		},
	)
	return cmd
}

func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[k] = v
	}
	return out, nil
}

// parseEntries keeps argument order; a value that is valid JSON is sent as such, anything else as a string.
func parseEntries(args []string) ([]schedclient.ConfigEntry, error) {
	entries := make([]schedclient.ConfigEntry, 0, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		var value any
		if err := json.Unmarshal([]byte(v), &value); err != nil {
			value = v
		}
		entries = append(entries, schedclient.ConfigEntry{Key: k, Value: value})
	}
	return entries, nil
}
