package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/assessment-reports/shared/logger"
)

// flag names
const (
	flagAPI       = "api"
	flagInput     = "input"
	flagOut       = "out"
	flagOffline   = "offline"
	flagJobID     = "id"
	flagLogLevel  = "log-level"
	defaultAPIURL = "http://localhost:8080"
)

// environment variable names
const (
	envAPIURL = "REPORTCTL_API"
)

// NewRootCmd builds the reportctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reportctl",
		Short: "reportctl - run and track assessment report jobs",
		Long: `reportctl generates the executive, technical and compliance reports for an
assessment locally, or submits and polls jobs through the report API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Missing .env is normal outside development.
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().String(flagLogLevel, "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSubmitCmd())
	root.AddCommand(newStatusCmd())

	return root
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger writes human-readable logs to stderr so stdout stays parseable.
func newLogger(cmd *cobra.Command) (*logger.Logger, error) {
	level, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return nil, err
	}
	return logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	})
}

// apiURL resolves the API address: flag, then REPORTCTL_API, then the default.
func apiURL(cmd *cobra.Command) (string, error) {
	addr, err := cmd.Flags().GetString(flagAPI)
	if err != nil {
		return "", err
	}
	if !cmd.Flags().Changed(flagAPI) {
		if env := os.Getenv(envAPIURL); env != "" {
			addr = env
		}
	}
	if addr == "" {
		return "", fmt.Errorf("api address cannot be empty")
	}
	return addr, nil
}
