package commands

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/reuse-assistant/cmd/reuse-assistant/internal/clierr"
	"github.com/yourorg/reuse-assistant/internal/assistant"
	"github.com/yourorg/reuse-assistant/internal/config"
	"github.com/yourorg/reuse-assistant/internal/manifest"
	"github.com/yourorg/reuse-assistant/internal/model"
	"github.com/yourorg/reuse-assistant/internal/scan"
)

type renderOptions struct {
	scanOutput string
	root       string
	org        string
	repo       string
	owner      string
	contact    string
	year       int
}

// newRenderCmd prints a manifest without cloning or pushing anything. It
// either replays saved askalono output or crawls a local checkout.
func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the dep5 manifest for a local directory or saved askalono output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.scanOutput, "scan-output", "", "file holding askalono crawl output (- for stdin); crawl --root when empty")
	cmd.Flags().StringVar(&opts.root, "root", ".", "repository root the scanned paths are relative to")
	cmd.Flags().StringVar(&opts.org, "org", "", "GitHub organization")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "GitHub repository name")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "copyright owner (default $"+config.EnvCopyrightOwner+")")
	cmd.Flags().StringVar(&opts.contact, "contact", "", "upstream contact (default $"+config.EnvUpstreamContact+")")
	cmd.Flags().IntVar(&opts.year, "year", 0, "copyright year (default current year)")
	return cmd
}

func runRender(cmd *cobra.Command, opts renderOptions) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	if opts.org == "" || opts.repo == "" {
		return clierr.New(clierr.ExitUsage, "--org and --repo are required")
	}
	meta := model.ManifestMetadata{
		Organization:    opts.org,
		Repository:      opts.repo,
		CopyrightOwner:  orEnv(opts.owner, config.EnvCopyrightOwner),
		UpstreamContact: orEnv(opts.contact, config.EnvUpstreamContact),
		Year:            opts.year,
	}
	if meta.Year == 0 {
		meta.Year = time.Now().Year()
	}

	if opts.scanOutput != "" && !cmd.Flags().Changed("root") {
		return clierr.New(clierr.ExitUsage, "--root is required with --scan-output, it must match the directory askalono crawled")
	}
	root, err := filepath.Abs(opts.root)
	if err != nil {
		return err
	}

	var source scan.Source
	switch opts.scanOutput {
	case "":
		source = scan.NewAskalono(config.AskalonoPath(), log)
	case "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		source = scan.Static{Output: string(b)}
	default:
		b, err := os.ReadFile(opts.scanOutput)
		if err != nil {
			return clierr.Wrap(clierr.ExitUsage, "read scan output", err)
		}
		source = scan.Static{Output: string(b)}
	}

	seq, err := source.Scan(cmd.Context(), root)
	if err != nil {
		return err
	}
	res, err := scan.Collect(seq)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		log.WithFields(logrus.Fields{"kind": d.Kind, "line": d.Line, "dir": d.Directory}).Warn(d.Message)
	}
	if res.Licenses.Len() == 0 {
		return assistant.ErrNoScanResults
	}
	return manifest.Render(cmd.OutOrStdout(), res.Licenses, meta)
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}
