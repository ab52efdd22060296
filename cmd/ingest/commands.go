package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quizbank/quizbank/internal/app"
	"github.com/quizbank/quizbank/internal/config"
	"github.com/quizbank/quizbank/internal/question"
	"github.com/quizbank/quizbank/internal/runlog"
	"github.com/quizbank/quizbank/internal/tokens"
	"github.com/quizbank/quizbank/pkg/logger"
)

var (
	runCount   int
	runJSON    bool
	tokenSub   string
	tokenTTL   time.Duration
	latestJSON bool
)

// buildApp is replaced in tests.
var buildApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel == "" {
		logger.Init(cfg.LogLevel)
	}
	return app.Build(ctx, cfg, app.Options{})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Store --count new unique questions and print the most recent one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if runCount <= 0 {
			return fmt.Errorf("--count must be positive")
		}
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		latest, run, err := a.Service.IngestRun(ctx, runCount)
		if err != nil {
			return err
		}
		if runJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"run": run, "latest": recordOrEmpty(latest)})
		}
		renderRun(cmd.OutOrStdout(), run)
		renderRecord(cmd.OutOrStdout(), latest)
		return nil
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recently stored question",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		latest, err := a.Service.Latest(ctx)
		if err != nil {
			return err
		}
		if latestJSON {
			return writeJSON(cmd.OutOrStdout(), recordOrEmpty(latest))
		}
		renderRecord(cmd.OutOrStdout(), latest)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an HS256 bearer token for the ingestion API (uses JWT_SECRET)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		tok, err := tokens.Issue(cfg.JWT.Secret, tokenSub, tokenTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
		return err
	},
}

var rejectedCmd = &cobra.Command{
	Use:   "rejected <archive-key>",
	Short: "Print a rejected page from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Archive == nil {
			return fmt.Errorf("archive is not configured (set ARCHIVE_ENDPOINT)")
		}
		obj, err := a.Archive.Open(ctx, args[0])
		if err != nil {
			return fmt.Errorf("download %s: %w", args[0], err)
		}
		defer func() { _ = obj.Close() }()
		_, err = io.Copy(cmd.OutOrStdout(), obj)
		return err
	},
}

func init() {
	runCmd.Flags().IntVarP(&runCount, "count", "n", 1, "Number of new questions to store")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print JSON instead of tables")
	latestCmd.Flags().BoolVar(&latestJSON, "json", false, "Print JSON instead of a table")
	tokenCmd.Flags().StringVar(&tokenSub, "sub", "quizbank-cli", "Token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

func recordOrEmpty(r *question.Record) any {
	if r == nil {
		return struct{}{}
	}
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderRecord(w io.Writer, r *question.Record) {
	if r == nil {
		_, _ = fmt.Fprintln(w, "no questions stored yet")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Question", "Answer", "Accepted"})
	t.AppendRow(table.Row{r.ID, r.Text, r.Answer, r.AcceptedAt.Format(time.RFC3339)})
	t.Render()
}

func renderRun(w io.Writer, run *runlog.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("run " + run.ID)
	t.AppendHeader(table.Row{"Requested", "Accepted", "Duplicates", "Conflicts", "Pages", "Aborted", "Took"})
	t.AppendRow(table.Row{run.Requested, run.Accepted, run.Duplicates, run.Conflicts, run.Pages, run.Aborted,
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)})
	if run.AbortCause != "" {
		t.AppendFooter(table.Row{"abort", run.AbortCause})
	}
	t.Render()
}
