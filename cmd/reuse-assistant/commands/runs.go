package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/reuse-assistant/cmd/reuse-assistant/internal/clierr"
	"github.com/yourorg/reuse-assistant/internal/config"
	"github.com/yourorg/reuse-assistant/internal/db"
)

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded proposal runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyFor(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tREPOSITORY\tSTATUS\tDIRECTORIES\tSTARTED\t")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s/%s\t%s\t%d\t%s\t\n",
					r.ID, r.Organization, r.Repository, r.Status, r.Entries, r.StartedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.AddCommand(newRunsShowCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var withManifest bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the licenses found by a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyFor(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return clierr.Newf(clierr.ExitFailure, "run %s not found", args[0])
			}
			entries, err := store.RunLicenses(ctx, run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:        %s\n", run.ID)
			fmt.Fprintf(out, "Repository: %s\n", run.RepoURL)
			fmt.Fprintf(out, "Branch:     %s\n", run.Branch)
			fmt.Fprintf(out, "Status:     %s\n", run.Status)
			if run.ErrorMsg != "" {
				fmt.Fprintf(out, "Error:      %s\n", run.ErrorMsg)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "DIRECTORY\tLICENSE\tSCORE\t")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t\n", e.Directory, e.License, e.Score)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !withManifest {
				return nil
			}
			if run.ManifestKey == "" {
				return clierr.Newf(clierr.ExitFailure, "run %s has no archived manifest", run.ID)
			}
			cfg, err := loadOptionalConfig()
			if err != nil {
				return err
			}
			if !cfg.ArchiveEnabled() {
				return clierr.New(clierr.ExitUsage, "S3_ENDPOINT is not set")
			}
			archive, err := openArchive(cfg)
			if err != nil {
				return err
			}
			content, err := archive.Get(ctx, run.ManifestKey)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", run.ManifestKey, err)
			}
			fmt.Fprintln(out)
			_, err = out.Write(content)
			return err
		},
	}
	cmd.Flags().BoolVar(&withManifest, "manifest", false, "also print the archived dep5 manifest")
	return cmd
}

// loadOptionalConfig reads the configuration for commands that never touch
// GitHub, so the proposal credentials may be absent.
func loadOptionalConfig() (config.Config, error) {
	cfg, err := config.Load()
	var missing *config.MissingError
	if err != nil && !errors.As(err, &missing) {
		return cfg, clierr.Wrap(clierr.ExitUsage, "invalid configuration", err)
	}
	return cfg, nil
}

func historyFor(cmd *cobra.Command) (*db.Store, error) {
	log, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := loadOptionalConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.HistoryEnabled() {
		return nil, clierr.New(clierr.ExitUsage, "DATABASE_URL is not set, run history is disabled")
	}
	return openHistory(cmd.Context(), cfg, log)
}
