package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/aospan/internal/config"
	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/sampling"
	"github.com/verte-zerg/aospan/internal/scoring"
	"github.com/verte-zerg/aospan/internal/sink"
	"github.com/verte-zerg/aospan/internal/stimuli"
	"github.com/verte-zerg/aospan/internal/store"
)

const defaultPoolSize = 60

var (
	poolDataDir string
	poolSize    int
	poolForce   bool

	pendingDB    string
	pendingClear bool
)

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

func defaultConfigTemplate() string {
	d := model.DefaultConfig()
	return fmt.Sprintf(`# aospan configuration
# Uncomment a value to enable it. AOSPAN_* environment variables override
# this file and CLI flags override both.

[session]
# participant = "p-001"          # Participant id (default anon_<timestamp>)
# letter-ms = %d                # Letter display time
# post-letter-blank-ms = %d     # Blank after each letter
# inter-series-break-ms = %d   # Pause after each main series
# transition-ms = %d           # Transition screens between phases
# calib-min-ms = %d            # Lower bound of the calibrated limit
# calib-max-ms = %d            # Upper bound of the calibrated limit
# calib-pause-ms = %d           # Pause after each calibration trial
# calib-trials = %d              # Calibration trials
# letter-train-sizes = %s      # Letter-only training series
# mixed-series = %d               # Mixed training series
# mixed-set-size = %d             # Mixed training set size
# main-set-sizes = %s  # Main test set sizes
# main-series-per-size = %d       # Main series per set size

[data]
# dir = %q
# db = %q
# log = %q

[sink]
# endpoint = "https://example.org/aospan"  # POST target for the session log
# host-out = "/tmp/aospan-results.jsonl"   # AOSPAN_RESULT line per session
# retention-ms = %d                      # Local handoff copy lifetime
`,
		d.LetterMs,
		d.PostLetterBlankMs,
		d.InterSeriesBreakMs,
		d.TransitionMs,
		d.CalibMinMs,
		d.CalibMaxMs,
		d.CalibPauseMs,
		d.MathTrainTrials,
		tomlInts(d.LetterTrainSizes),
		d.MixedTrainSeries,
		d.MixedTrainSetSize,
		tomlInts(d.MainSetSizes),
		d.MainSeriesPerSize,
		config.DefaultDataDir(),
		config.DefaultDBPath(),
		config.DefaultLogPath(),
		int(sink.DefaultRetention/time.Millisecond),
	)
}

func tomlInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Generate stimulus pool files",
		Args:  cobra.NoArgs,
		RunE:  runPoolCmd,
	}
	cmd.Flags().StringVar(&poolDataDir, "data-dir", config.DefaultDataDir(), "output directory")
	cmd.Flags().IntVar(&poolSize, "size", defaultPoolSize, "number of math statements")
	cmd.Flags().BoolVar(&poolForce, "force", false, "overwrite existing files")
	return cmd
}

func runPoolCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "data-dir", &poolDataDir, fileCfg.Data.Dir)
	if poolSize <= 0 {
		return fmt.Errorf("--size must be greater than 0")
	}
	stmts := stimuli.GenerateMath(sampling.Global(), poolSize)
	if err := stimuli.WritePools(poolDataDir, stimuli.DefaultLetters(), stmts, poolForce); err != nil {
		return err
	}
	logErrf("Wrote %s and %s to %s\n", stimuli.LettersFile, stimuli.MathPoolFile, poolDataDir)
	return nil
}

func newPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show session logs left in the local store",
		Args:  cobra.NoArgs,
		RunE:  runPendingCmd,
	}
	cmd.Flags().StringVar(&pendingDB, "db", config.DefaultDBPath(), "SQLite file for pending results")
	cmd.Flags().BoolVar(&pendingClear, "clear", false, "delete the listed records")
	return cmd
}

func runPendingCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "db", &pendingDB, fileCfg.Data.DBPath)

	st, err := store.Open(pendingDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	records, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending logs: %w", err)
	}
	if len(records) == 0 {
		logErrln("No pending session logs.")
		return nil
	}
	if err := renderPending(cmd.OutOrStdout(), records, reportWidth()); err != nil {
		return err
	}
	if pendingClear {
		n, err := st.Clear(ctx)
		if err != nil {
			return err
		}
		logErrf("Deleted %d record(s)\n", n)
	}
	return nil
}

func renderPending(w io.Writer, records []model.PendingRecord, width int) error {
	for i, rec := range records {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		if _, err := fmt.Fprintf(w, "== %s  session %s  stored %s\n", rec.Key, rec.SessionID, rec.StoredAt.Local().Format("2006-01-02 15:04:05")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		var log model.SessionLog
		if err := json.Unmarshal(rec.Payload, &log); err != nil {
			if _, werr := fmt.Fprintf(w, "unreadable payload: %v\n", err); werr != nil {
				return fmt.Errorf("failed to write output: %w", werr)
			}
			continue
		}
		if err := scoring.RenderReport(w, log, width); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
