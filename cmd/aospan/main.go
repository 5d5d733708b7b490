// Package main provides the CLI entrypoint for aospan.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/verte-zerg/aospan/internal/config"
	"github.com/verte-zerg/aospan/internal/engine"
	"github.com/verte-zerg/aospan/internal/logging"
	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/scoring"
	"github.com/verte-zerg/aospan/internal/sink"
	"github.com/verte-zerg/aospan/internal/stimuli"
	"github.com/verte-zerg/aospan/internal/store"
	"github.com/verte-zerg/aospan/internal/tui"
)

const sinkDrainTimeout = 5 * time.Second

type settings struct {
	task        model.Config
	participant string
	dataDir     string
	dbPath      string
	logPath     string
	endpoint    string
	hostOut     string
	retentionMs int
	verbose     bool
}

var run = settings{
	task:        model.DefaultConfig(),
	retentionMs: int(sink.DefaultRetention / time.Millisecond),
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aospan",
		Short:         "Operation span working-memory task",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runSessionCmd,
	}

	f := rootCmd.Flags()
	f.StringVar(&run.participant, "participant", "", "participant id (default: anon_<timestamp>)")
	f.StringVar(&run.dataDir, "data-dir", config.DefaultDataDir(), "directory with letters.json and math_pool.json")
	f.StringVar(&run.dbPath, "db", config.DefaultDBPath(), "SQLite file for pending results")
	f.StringVar(&run.logPath, "log-file", config.DefaultLogPath(), "diagnostic log file (empty disables)")
	f.StringVar(&run.endpoint, "endpoint", "", "http(s) endpoint receiving the session log")
	f.StringVar(&run.hostOut, "host-out", "", "file or pipe receiving the AOSPAN_RESULT line")
	f.IntVar(&run.retentionMs, "retention-ms", run.retentionMs, "how long the local handoff copy is kept")
	f.BoolVarP(&run.verbose, "verbose", "v", false, "debug logging")

	f.IntVar(&run.task.LetterMs, "letter-ms", run.task.LetterMs, "letter display time")
	f.IntVar(&run.task.PostLetterBlankMs, "post-letter-blank-ms", run.task.PostLetterBlankMs, "blank after each letter")
	f.IntVar(&run.task.InterSeriesBreakMs, "inter-series-break-ms", run.task.InterSeriesBreakMs, "pause after each main series")
	f.IntVar(&run.task.TransitionMs, "transition-ms", run.task.TransitionMs, "transition screen time between phases")
	f.IntVar(&run.task.CalibMinMs, "calib-min-ms", run.task.CalibMinMs, "lower bound of the calibrated limit")
	f.IntVar(&run.task.CalibMaxMs, "calib-max-ms", run.task.CalibMaxMs, "upper bound of the calibrated limit")
	f.IntVar(&run.task.CalibPauseMs, "calib-pause-ms", run.task.CalibPauseMs, "pause after each calibration trial")
	f.IntVar(&run.task.MathTrainTrials, "calib-trials", run.task.MathTrainTrials, "number of calibration trials")
	f.IntSliceVar(&run.task.LetterTrainSizes, "letter-train-sizes", run.task.LetterTrainSizes, "letter training set sizes")
	f.IntVar(&run.task.MixedTrainSeries, "mixed-series", run.task.MixedTrainSeries, "mixed training series")
	f.IntVar(&run.task.MixedTrainSetSize, "mixed-set-size", run.task.MixedTrainSetSize, "mixed training set size")
	f.IntSliceVar(&run.task.MainSetSizes, "main-set-sizes", run.task.MainSetSizes, "main test set sizes")
	f.IntVar(&run.task.MainSeriesPerSize, "main-series-per-size", run.task.MainSeriesPerSize, "main series per set size")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newPoolCmd())
	rootCmd.AddCommand(newPendingCmd())

	return rootCmd
}

// loadFileConfig reads the TOML file with environment overrides applied.
func loadFileConfig() (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.ParseEnv()
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return envCfg.Merge(fileCfg), nil
}

func applySettings(cmd *cobra.Command, s *settings, fc config.FileConfig) {
	applyStringConfig(cmd, "participant", &s.participant, fc.Session.Participant)
	applyStringConfig(cmd, "data-dir", &s.dataDir, fc.Data.Dir)
	applyStringConfig(cmd, "db", &s.dbPath, fc.Data.DBPath)
	applyStringConfig(cmd, "log-file", &s.logPath, fc.Data.Log)
	applyStringConfig(cmd, "endpoint", &s.endpoint, fc.Sink.Endpoint)
	applyStringConfig(cmd, "host-out", &s.hostOut, fc.Sink.HostOut)
	applyIntConfig(cmd, "retention-ms", &s.retentionMs, fc.Sink.RetentionMs)

	sc := fc.Session
	applyIntConfig(cmd, "letter-ms", &s.task.LetterMs, sc.LetterMs)
	applyIntConfig(cmd, "post-letter-blank-ms", &s.task.PostLetterBlankMs, sc.PostLetterBlankMs)
	applyIntConfig(cmd, "inter-series-break-ms", &s.task.InterSeriesBreakMs, sc.InterSeriesBreakMs)
	applyIntConfig(cmd, "transition-ms", &s.task.TransitionMs, sc.TransitionMs)
	applyIntConfig(cmd, "calib-min-ms", &s.task.CalibMinMs, sc.CalibMinMs)
	applyIntConfig(cmd, "calib-max-ms", &s.task.CalibMaxMs, sc.CalibMaxMs)
	applyIntConfig(cmd, "calib-pause-ms", &s.task.CalibPauseMs, sc.CalibPauseMs)
	applyIntConfig(cmd, "calib-trials", &s.task.MathTrainTrials, sc.CalibTrials)
	applyIntsConfig(cmd, "letter-train-sizes", &s.task.LetterTrainSizes, sc.LetterTrainSizes)
	applyIntConfig(cmd, "mixed-series", &s.task.MixedTrainSeries, sc.MixedSeries)
	applyIntConfig(cmd, "mixed-set-size", &s.task.MixedTrainSetSize, sc.MixedSetSize)
	applyIntsConfig(cmd, "main-set-sizes", &s.task.MainSetSizes, sc.MainSetSizes)
	applyIntConfig(cmd, "main-series-per-size", &s.task.MainSeriesPerSize, sc.MainSeriesPerSize)
}

func runSessionCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applySettings(cmd, &run, fileCfg)
	if err := validateSettings(run); err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("aospan needs an interactive terminal")
	}

	logger, err := logging.New(run.logPath, run.verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	pools := stimuli.Load(run.dataDir)
	for _, lerr := range pools.Errs {
		logger.Warn("using built-in stimulus pool", zap.String("data_dir", run.dataDir), zap.Error(lerr))
	}
	if pools.Dropped > 0 {
		logger.Warn("dropped malformed math statements", zap.Int("dropped", pools.Dropped))
	}
	if err := validateConfig(run.task, len(pools.Letters)); err != nil {
		return err
	}

	st, err := store.Open(run.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	local := &sink.LocalStore{Store: st, Retention: time.Duration(run.retentionMs) * time.Millisecond}

	targets, closeTargets, err := buildTargets(local, run)
	if err != nil {
		return err
	}
	defer closeTargets()
	dispatcher := sink.NewDispatcher(context.Background(), logger, targets...)

	presenter := tui.NewPresenter()
	program := tea.NewProgram(presenter.Model(), tea.WithAltScreen())
	presenter.Bind(program)

	opts := []engine.Option{engine.WithLogger(logger), engine.WithSink(dispatcher)}
	if run.participant != "" {
		opts = append(opts, engine.WithParticipantID(run.participant))
	}
	session, err := engine.New(run.task, pools, presenter, opts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	var (
		result   model.SessionLog
		finished bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log, err := session.Run(gctx)
		switch {
		case err == nil:
			result, finished = log, true
			return nil
		case errors.Is(err, engine.ErrAborted):
			savePartial(local, logger, log)
			return nil
		default:
			program.Quit()
			return fmt.Errorf("session failed: %w", err)
		}
	})
	runErr := g.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), sinkDrainTimeout)
	defer drainCancel()
	if err := dispatcher.Wait(drainCtx); err != nil {
		logger.Warn("sinks still running at exit", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}
	if !finished {
		logErrln("Session aborted; partial log kept (see: aospan pending)")
		return nil
	}
	return scoring.RenderReport(cmd.OutOrStdout(), result, reportWidth())
}

func buildTargets(local *sink.LocalStore, s settings) ([]sink.Target, func(), error) {
	targets := []sink.Target{local}
	closeFn := func() {}
	if s.endpoint != "" {
		if !sink.IsHTTPEndpoint(s.endpoint) {
			logErrf("ignoring endpoint %q: not http(s)\n", s.endpoint)
		} else {
			targets = append(targets, sink.NewHTTP(s.endpoint))
		}
	}
	if s.hostOut != "" {
		f, err := os.OpenFile(s.hostOut, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open host output: %w", err)
		}
		targets = append(targets, sink.NewHost(f))
		closeFn = func() {
			if cerr := f.Close(); cerr != nil {
				logErrf("failed to close host output: %v\n", cerr)
			}
		}
	}
	return targets, closeFn, nil
}

func savePartial(local *sink.LocalStore, logger *zap.Logger, log model.SessionLog) {
	if len(log.MathTrials) == 0 && len(log.Series) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkDrainTimeout)
	defer cancel()
	if err := local.SavePartial(ctx, log); err != nil {
		logger.Error("failed to store partial log", zap.String("session_id", log.SessionID), zap.Error(err))
		return
	}
	logger.Info("partial log stored", zap.String("session_id", log.SessionID), zap.String("key", store.KeyPartial))
}

func reportWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 60
	}
	return max(10, width-6)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
