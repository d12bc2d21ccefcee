package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/promptloom/promptloom/internal/calllog"
	"github.com/promptloom/promptloom/internal/projectconfig"
)

var runsLogDir string

// runRow is one line of the runs table. done counts calls whose record
// carries the done marker; the rest were interrupted mid-stream.
type runRow struct {
	id        string
	template  string
	timestamp string
	calls     int
	done      int
}

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded rendering runs",
		Long: `List the run directories under the log directory, newest first,
with their template names, timestamps and call counts.`,
		Args: cobra.NoArgs,
		RunE: runRunsE,
	}

	cmd.Flags().StringVarP(&runsLogDir, "logdir", "l", "", "Base directory for run logs (default from config)")
	return cmd
}

func runRunsE(cmd *cobra.Command, args []string) error {
	cfg, err := projectconfig.Load(".")
	if err != nil {
		return err
	}
	logDir := cfg.Logging.Dir
	if runsLogDir != "" {
		logDir = runsLogDir
	}

	rows, err := collectRuns(logDir)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs found in %s\n", logDir)
		return nil
	}

	printRunsTable(cmd, rows)
	return nil
}

func collectRuns(logDir string) ([]runRow, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", logDir, err)
	}

	var rows []runRow
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "run_") {
			continue
		}
		row := runRow{id: entry.Name()}

		metaData, err := os.ReadFile(filepath.Join(logDir, entry.Name(), "metadata.yaml"))
		if err == nil {
			var meta calllog.RunMetadata
			if yaml.Unmarshal(metaData, &meta) == nil {
				row.template = meta.Template
				row.timestamp = meta.Timestamp
			}
		}

		callDir := filepath.Join(logDir, entry.Name(), "llmcalls")
		callEntries, err := os.ReadDir(callDir)
		if err == nil {
			for _, ce := range callEntries {
				if !strings.HasSuffix(ce.Name(), ".log.yaml") {
					continue
				}
				row.calls++
				if callIsDone(filepath.Join(callDir, ce.Name())) {
					row.done++
				}
			}
		}
		rows = append(rows, row)
	}

	// Run ids embed the timestamp, so lexicographic order is
	// chronological. Newest first.
	sort.Slice(rows, func(i, j int) bool { return rows[i].id > rows[j].id })
	return rows, nil
}

func printRunsTable(cmd *cobra.Command, rows []runRow) {
	idWidth := len("Run")
	tmplWidth := len("Template")
	for _, r := range rows {
		if w := runewidth.StringWidth(r.id); w > idWidth {
			idWidth = w
		}
		if w := runewidth.StringWidth(r.template); w > tmplWidth {
			tmplWidth = w
		}
	}

	const tsWidth = len("2006-01-02T15:04:05.000000-07:00")
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "%s  %s  %s  %s\n", //nolint:errcheck
		padRight("Run", idWidth),
		padRight("Template", tmplWidth),
		padRight("Timestamp", tsWidth),
		"Done/Calls")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", idWidth+tmplWidth+tsWidth+16)) //nolint:errcheck

	for _, r := range rows {
		fmt.Fprintf(w, "%s  %s  %s  %d/%d\n", //nolint:errcheck
			padRight(r.id, idWidth),
			padRight(r.template, tmplWidth),
			padRight(r.timestamp, tsWidth),
			r.done, r.calls)
	}
}

// callIsDone reports whether the record at path carries response.done.
func callIsDone(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var rec calllog.CallRecord
	if yaml.Unmarshal(data, &rec) != nil {
		return false
	}
	if done, ok := rec.Response["done"].(bool); ok {
		return done
	}
	// Non-streaming records carry no done marker; a present response
	// means the call completed.
	if stream, ok := rec.Request["stream"].(bool); ok && !stream {
		return rec.Response != nil
	}
	return false
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
