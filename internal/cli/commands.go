package cli

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"CivicScanner/internal/app"
	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
	"CivicScanner/internal/usecase"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled crawl",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func newRunCommand(opts *options) *cobra.Command {
	var req usecase.RunRequest

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the report",
		Long: `Run processes the given URLs, or discovers documents from the given seeds,
or crawls every configured site when neither is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				report := a.RunOnce(cmd.Context(), req)
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if report.Total > 0 && report.Succeeded == 0 {
					return errors.New("no document was summarized")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&req.URLs, "url", nil, "document URL to process (repeatable)")
	cmd.Flags().StringSliceVar(&req.Seeds, "seed", nil, "seed page to discover from (repeatable)")
	cmd.Flags().StringVar(&req.UserID, "user", "", "feed owner for saved documents")
	return cmd
}

func newDiscoverCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [seed...]",
		Short: "List candidate document links without summarizing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				for _, link := range a.Discover(cmd.Context(), args) {
					fmt.Fprintln(cmd.OutOrStdout(), link)
				}
				return nil
			})
		},
	}
}

func newFeedCommand(opts *options) *cobra.Command {
	var q ports.FeedQuery

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the most recent feed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				items, err := a.Feed(cmd.Context(), q)
				if err != nil {
					return err
				}
				if items == nil {
					items = []domain.CivicDocument{}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"items": items})
			})
		},
	}

	cmd.Flags().StringVar(&q.UserID, "user", "", "only documents saved for this user")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "maximum documents (default 20)")
	return cmd
}

func newUserCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage feed owners",
	}

	var user domain.User
	upsert := &cobra.Command{
		Use:   "upsert <id>",
		Short: "Create or update a user and their location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user.City == "" {
				return errors.New("--city is required")
			}
			user.ID = args[0]
			if name, _ := cmd.Flags().GetString("name"); name != "" {
				user.Name = &name
			}
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				saved, err := a.Users().UpsertUser(cmd.Context(), user)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	upsert.Flags().String("name", "", "display name")
	upsert.Flags().StringVar(&user.City, "city", "", "city")
	upsert.Flags().StringVar(&user.Region, "region", "", "state or region")
	upsert.Flags().StringVar(&user.Country, "country", "", "country code (default US)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.Application) error {
				found, ok, err := a.Users().GetUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("user %q not found", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), found)
			})
		},
	}

	cmd.AddCommand(upsert, get)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "civicscanner %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
