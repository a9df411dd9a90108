package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dshills/svcprobe/pkg/domain/types"
	"github.com/dshills/svcprobe/pkg/storage"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())

	return cmd
}

func openRunRepository() (*storage.SQLiteRunRepository, error) {
	repo, err := storage.NewSQLiteRunRepository(GetConfigDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return repo, nil
}

func newHistoryListCommand() *cobra.Command {
	var (
		limit int
		since string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var after time.Time
			if since != "" {
				t, err := parseSinceFlag(since)
				if err != nil {
					return fmt.Errorf("invalid --since value: %w", err)
				}
				after = t
			}

			repo, err := openRunRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			// The since filter applies after the limit, so list everything
			// when filtering.
			queryLimit := limit
			if !after.IsZero() {
				queryLimit = 0
			}
			runs, err := repo.List(queryLimit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			filtered := make([]*storage.RunRecord, 0, len(runs))
			for _, rec := range runs {
				if !after.IsZero() && rec.StartedAt.Before(after) {
					continue
				}
				filtered = append(filtered, rec)
				if limit > 0 && len(filtered) == limit {
					break
				}
			}

			if len(filtered) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}

			printRunsTable(cmd.OutOrStdout(), filtered)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to display (0 for all)")
	cmd.Flags().StringVar(&since, "since", "", "Only runs started after (e.g., 7d, 24h, 2026-01-05)")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Display one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRunRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			rec, err := repo.Load(types.RunID(args[0]))
			if err != nil {
				return err
			}

			if asJSON {
				return printRunJSON(cmd.OutOrStdout(), rec)
			}
			printReport(cmd.OutOrStdout(), rec, true)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the run as JSON")

	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a run from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRunRepository()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			if err := repo.Delete(types.RunID(args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func printRunsTable(w io.Writer, runs []*storage.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATUS\tPHASE\tCODE\tDURATION\tSTARTED")

	for _, rec := range runs {
		status := passLabel(string(rec.Status))
		if !rec.Passed() {
			status = failLabel(string(rec.Status))
		}
		phase := rec.Phase
		if phase == "" {
			phase = "-"
		}
		code := "-"
		if rec.StatusCode != 0 {
			code = fmt.Sprintf("%d", rec.StatusCode)
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateString(rec.ID.String(), 36),
			status,
			phase,
			code,
			formatDurationValue(rec.Duration),
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}

	_ = tw.Flush()
}

func printRunJSON(w io.Writer, rec *storage.RunRecord) error {
	output := map[string]interface{}{
		"id":          rec.ID,
		"started_at":  rec.StartedAt,
		"duration_ms": rec.Duration.Milliseconds(),
		"command":     rec.Command,
		"ci":          rec.CI,
		"status":      rec.Status,
		"output":      rec.Output,
	}
	if rec.Phase != "" {
		output["phase"] = rec.Phase
		output["error"] = rec.Error
	}
	if rec.StatusCode != 0 {
		output["status_code"] = rec.StatusCode
		output["body"] = rec.Body
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// parseSinceFlag parses the --since flag into a time.Time.
// Supports "7d" (days), "24h" (hours) and dates like "2026-01-05".
func parseSinceFlag(since string) (time.Time, error) {
	now := time.Now()

	if strings.HasSuffix(since, "d") {
		var d int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &d); err == nil {
			return now.AddDate(0, 0, -d), nil
		}
	}
	if strings.HasSuffix(since, "h") {
		var h int
		if _, err := fmt.Sscanf(since[:len(since)-1], "%d", &h); err == nil {
			return now.Add(-time.Duration(h) * time.Hour), nil
		}
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, since); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format (use: 7d, 24h, or 2026-01-05)")
}
