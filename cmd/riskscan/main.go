package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set by build flags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// generatorID is the provenance string stamped into emitted scoring
// documents and label sets.
func generatorID() string {
	return "riskscan/" + version
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("riskscan: command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		logPretty  bool
	)

	rootCmd := &cobra.Command{
		Use:   "riskscan",
		Short: "Classify data-at-rest risk from detected entities and exposure context",
		Long: `riskscan runs the detector orchestrator over text or structured data,
scores the resulting labels against an exposure context with a
deterministic risk algorithm, and tracks which targets are due for a
rescan in a durable label index.

Beyond walking local directories, no command here talks to a cloud
provider SDK: the exposure context comes from the caller (pkg/cloudctx
can derive one from S3 bucket metadata as a library). This binary
wires the core detection/scoring/index packages together, not a full
scanning platform.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(logLevel, logPretty)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a riskscan YAML config file (defaults to embedded defaults + RISKSCAN_* env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "use human-readable console log output instead of JSON")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newScanCmd(&configPath))
	rootCmd.AddCommand(newScoreCmd(&configPath))
	rootCmd.AddCommand(newIndexCmd(&configPath))

	return rootCmd
}

func configureLogging(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("riskscan %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
