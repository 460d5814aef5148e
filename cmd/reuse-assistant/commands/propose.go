package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/reuse-assistant/cmd/reuse-assistant/internal/clierr"
	"github.com/yourorg/reuse-assistant/internal/assistant"
	"github.com/yourorg/reuse-assistant/internal/config"
	"github.com/yourorg/reuse-assistant/internal/github"
	"github.com/yourorg/reuse-assistant/internal/gitrepo"
	"github.com/yourorg/reuse-assistant/internal/licenses"
	"github.com/yourorg/reuse-assistant/internal/scan"
)

type proposeOptions struct {
	noPush    bool
	keepClone bool
	branch    string
	workDir   string
}

func (o *proposeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.noPush, "no-push", false, "commit the proposal locally without pushing it")
	cmd.Flags().BoolVar(&o.keepClone, "keep-clone", false, "keep the local clone after a successful push")
	cmd.Flags().StringVar(&o.branch, "branch", "", "proposal branch (default $PROPOSAL_BRANCH or reuse-metadata-proposal)")
	cmd.Flags().StringVar(&o.workDir, "work-dir", "", "directory clones are created in (default $WORK_DIR or ./repositories)")
}

func newProposeCmd() *cobra.Command {
	var opts proposeOptions
	cmd := &cobra.Command{
		Use:   "propose <github-url>",
		Short: "Clone a repository, generate REUSE metadata and push it to a proposal branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropose(cmd, args, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runPropose(cmd *cobra.Command, args []string, opts proposeOptions) error {
	out := cmd.OutOrStdout()
	printBanner(out)

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return clierr.Wrap(clierr.ExitUsage, "invalid configuration", err)
	}
	if len(args) == 0 {
		return clierr.New(clierr.ExitUsage, "No arguments provided, please provide the GitHub URL that should be scanned.")
	}
	if opts.branch != "" {
		cfg.ProposalBranch = opts.branch
	}
	if opts.workDir != "" {
		cfg.WorkDir = opts.workDir
	}

	ctx := cmd.Context()
	askalono := scan.NewAskalono(cfg.AskalonoPath, log)
	if v, err := askalono.Version(ctx); err != nil {
		log.WithError(err).Warn("askalono --version failed")
	} else {
		log.WithField("askalono", v).Debug("scanner available")
	}

	deps := assistant.Deps{
		Git: &gitrepo.Client{
			Token:       cfg.GitHubToken,
			AuthorName:  cfg.CommitAuthorName,
			AuthorEmail: cfg.CommitAuthorEmail,
		},
		Scanner: askalono,
		Licenses: &licenses.Auto{
			Reuse: &licenses.ReuseTool{Path: cfg.ReusePath, Log: log},
			SPDX:  licenses.NewSPDXFetcher(cfg.SPDXTextURL, log),
			Log:   log,
		},
		Log: log,
		Out: out,
	}

	if cfg.HistoryEnabled() {
		store, err := openHistory(ctx, cfg, log)
		if err != nil {
			log.WithError(err).Warn("run history disabled")
		} else {
			defer store.Close()
			if ids, err := store.FailStaleRunning(ctx, staleRunAge); err != nil {
				log.WithError(err).Warn("stale run recovery failed")
			} else if len(ids) > 0 {
				log.WithField("runs", ids).Info("marked abandoned runs as failed")
			}
			deps.History = store
		}
	}
	if cfg.ArchiveEnabled() {
		archive, err := openArchive(cfg)
		if err != nil {
			log.WithError(err).Warn("manifest archive disabled")
		} else {
			deps.Archive = archive
		}
	}

	res, err := assistant.NewRunner(cfg, deps).Run(ctx, args[0], assistant.Options{NoPush: opts.noPush})
	if err != nil {
		if errors.Is(err, github.ErrNotGitHub) {
			return clierr.Wrap(clierr.ExitUsage, "unsupported repository URL", err)
		}
		return clierr.Wrap(clierr.ExitFailure, "REUSE metadata proposal failed", err)
	}

	if !res.Pushed {
		_, _ = fmt.Fprintf(out, "Metadata creation tool finished, the proposal is committed on the %s branch in %s.\n", res.Branch, res.Dir)
		return nil
	}
	if !opts.keepClone {
		if err := os.RemoveAll(res.Dir); err != nil {
			log.WithFields(logrus.Fields{"dir": res.Dir}).WithError(err).Warn("remove clone failed")
		}
	}
	_, _ = fmt.Fprintf(out, "Metadata creation tool finished successfully, please see the %s branch in the repository %s for the proposal.\n", res.Branch, args[0])
	return nil
}
