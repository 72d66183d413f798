// Package main provides the CLI entrypoint for labelmerge.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/labelmerge/internal/config"
	"github.com/verte-zerg/labelmerge/internal/labels"
	"github.com/verte-zerg/labelmerge/internal/logging"
	"github.com/verte-zerg/labelmerge/internal/merge"
	"github.com/verte-zerg/labelmerge/internal/model"
	"github.com/verte-zerg/labelmerge/internal/output"
	"github.com/verte-zerg/labelmerge/internal/reportui"
	"github.com/verte-zerg/labelmerge/internal/stats"
	"github.com/verte-zerg/labelmerge/internal/store"
)

const (
	defaultLogLevel      = "warn"
	defaultLogFormat     = "text"
	defaultHistoryWindow = 1
)

var (
	baseDir   string
	logLevel  string
	logFormat string

	combineOutput  string
	combineSummary string
	combineHistory bool

	historyLast   int
	historyWindow int
)

type settings struct {
	dir     string
	output  string
	summary string
	history bool
	sources []model.SourceSpec
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "labelmerge",
		Short:         "Combine image label CSV files into one training table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runCombineCmd,
	}

	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", ".", "directory holding the source files and the output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", defaultLogFormat, "diagnostic log format (text, json)")
	rootCmd.Flags().StringVar(&combineOutput, "output", config.DefaultOutput, "combined CSV file name")
	rootCmd.Flags().StringVar(&combineSummary, "summary", "", "also write a YAML summary to this file")
	rootCmd.Flags().BoolVar(&combineHistory, "history", false, "record the run in the history database")

	rootCmd.AddCommand(newSourcesCmd())
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "dir", &baseDir, fileCfg.Dir)
	applyStringConfig(cmd, "output", &combineOutput, fileCfg.Output)
	applyStringConfig(cmd, "summary", &combineSummary, fileCfg.Summary)
	applyBoolConfig(cmd, "history", &combineHistory, fileCfg.History)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Log.Format)

	if err := logging.Validate(logLevel, logFormat); err != nil {
		return settings{}, err
	}
	logging.Setup(logLevel, logFormat, cmd.ErrOrStderr())

	sources, err := fileCfg.SourceSpecs()
	if err != nil {
		return settings{}, fmt.Errorf("invalid config: %w", err)
	}
	if strings.TrimSpace(combineOutput) == "" {
		return settings{}, fmt.Errorf("--output must not be empty")
	}
	return settings{
		dir:     baseDir,
		output:  combineOutput,
		summary: combineSummary,
		history: combineHistory,
		sources: sources,
	}, nil
}

func runCombineCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	startedAt := time.Now()

	printLines(out, "Combining CSV files...", "")
	report, err := merge.Run(cmd.Context(), cfg.sources, cfg.dir)
	if err != nil {
		return err
	}
	if err := stats.RenderLoadStatus(out, report.Sources); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	printLines(out, "")
	if err := stats.RenderTotals(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, msg := range report.Diagnostics() {
		slog.Debug("source skipped", "reason", msg)
	}

	if report.Empty() {
		return stats.RenderNoData(out)
	}

	outputPath := resolvePath(cfg.dir, cfg.output)
	if err := output.WriteCSV(outputPath, report.Records); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.output, err)
	}
	printLines(out, fmt.Sprintf("Successfully created: %s", cfg.output))
	if cfg.summary != "" {
		if err := output.WriteSummary(resolvePath(cfg.dir, cfg.summary), report, cfg.output); err != nil {
			return fmt.Errorf("failed to write %s: %w", cfg.summary, err)
		}
		printLines(out, fmt.Sprintf("Summary written: %s", cfg.summary))
	}

	printLines(out, "")
	if err := stats.RenderFrequencies(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	printLines(out, "")
	if err := stats.RenderReady(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if cfg.history {
		recordHistory(cmd.Context(), report, outputPath, startedAt)
	}
	return nil
}

// recordHistory stores the run. Failures are logged and never fail the run.
func recordHistory(ctx context.Context, report merge.Report, outputPath string, startedAt time.Time) {
	path := config.DefaultHistoryPath()
	st, err := store.Open(path)
	if err != nil {
		slog.Warn("failed to open history", "path", path, "error", err)
		return
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()

	run := model.RunRecord{
		StartedAt:  startedAt,
		EndedAt:    time.Now(),
		OutputPath: outputPath,
		Total:      report.Total(),
		Counts:     report.Tables(),
	}
	for _, src := range report.Sources {
		entry := model.RunSource{
			Path:     src.Spec.Path,
			Dataset:  src.Dataset,
			Status:   src.Status,
			Accepted: len(src.Records),
		}
		if src.Err != nil {
			entry.Message = src.Err.Error()
		}
		run.Sources = append(run.Sources, entry)
	}
	id, err := st.InsertRun(ctx, run)
	if err != nil {
		slog.Warn("failed to record run", "error", err)
		return
	}
	slog.Debug("run recorded", "id", id, "path", path)
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured source files",
		Args:  cobra.NoArgs,
		RunE:  runSourcesCmd,
	}
}

func runSourcesCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	exists := func(spec model.SourceSpec) bool {
		return labels.Exists(spec, cfg.dir)
	}
	if err := stats.RenderSourcesTable(cmd.OutOrStdout(), cfg.sources, exists); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the combined report without writing files",
		Args:  cobra.NoArgs,
		RunE:  runBrowseCmd,
	}
}

func runBrowseCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	report, err := merge.Run(cmd.Context(), cfg.sources, cfg.dir)
	if err != nil {
		return err
	}
	ui := reportui.NewModel(report, cfg.dir)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run report browser: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N runs")
	cmd.Flags().IntVar(&historyWindow, "window", defaultHistoryWindow, "moving average window for curves")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyWindow < 1 {
		return fmt.Errorf("--window must be >= 1")
	}

	path := config.DefaultHistoryPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			printLines(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		return fmt.Errorf("failed to stat history: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()

	h, err := stats.BuildHistory(cmd.Context(), st, historyLast)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderHistoryTable(out, h); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(h.Runs) == 0 {
		return nil
	}
	printLines(out, "")
	if err := stats.RenderHistoryCurves(out, h, historyWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := ensureConfigFile(path); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func ensureConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	var sources strings.Builder
	for _, spec := range config.DefaultSources() {
		fmt.Fprintf(&sources, "# [[sources]]\n# path = %q\n# main = %q\n# sub = %q\n#\n", spec.Path, spec.MainField, spec.SubField)
	}
	return fmt.Sprintf(`# labelmerge configuration
# Uncomment a value to enable it. CLI flags override config values.

# dir = "."                 # Directory holding the source files and the output
# output = %q
# summary = "summary.yaml"  # Also write a YAML summary
# history = false           # Record runs in the history database

# Sources are merged in the order listed. Setting any replaces the defaults.
%s
[log]
# level = %q
# format = %q
`,
		config.DefaultOutput,
		sources.String(),
		defaultLogLevel,
		defaultLogFormat,
	)
}

func resolvePath(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func printLines(w io.Writer, lines ...string) {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			// Best-effort report output.
			_ = err
		}
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
