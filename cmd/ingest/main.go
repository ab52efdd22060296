// Command quizbank-ingest runs ingestions and inspects the question store
// without going through the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quizbank/quizbank/pkg/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "quizbank-ingest",
	Short:         "Ingest trivia questions into the quizbank store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if logLevel != "" {
			logger.Init(logLevel)
		}
		logger.SetOutput(cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error), defaults to LOG_LEVEL")
	rootCmd.AddCommand(runCmd, latestCmd, tokenCmd, rejectedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
