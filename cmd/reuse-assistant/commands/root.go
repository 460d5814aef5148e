package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/reuse-assistant/cmd/reuse-assistant/internal/clierr"
)

const banner = `===================================================
= Welcome to the Metadata Creation Tool for REUSE =
===================================================
`

// NewRootCmd constructs the reuse-assistant root command. Called with a
// repository URL and no subcommand it behaves like propose.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("REUSE_ASSISTANT_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	var opts proposeOptions
	cmd := &cobra.Command{
		Use:   "reuse-assistant [github-url]",
		Short: "Propose REUSE metadata for a GitHub repository",
		Long: banner + `reuse-assistant clones a GitHub repository, detects its licenses with askalono,
writes a .reuse/dep5 manifest, downloads the license texts and pushes the result
to a proposal branch.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropose(cmd, args, opts)
		},
	}

	cmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error")
	opts.bind(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of reuse-assistant",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reuse-assistant version %s\n", version)
		},
	})
	cmd.AddCommand(newProposeCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newRunsCmd())

	return cmd
}

func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	level, _ := cmd.Flags().GetString("loglevel")
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// trace and panic are not offered
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info", "":
		log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		return nil, clierr.Newf(clierr.ExitUsage, "bad log level %q", level)
	}
	return log, nil
}

func printBanner(w io.Writer) {
	_, _ = io.WriteString(w, banner)
}
