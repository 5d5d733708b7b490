// Package engine runs the operation span task: phase sequencing, calibration,
// interleaved series and final scoring.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/sampling"
	"github.com/verte-zerg/aospan/internal/scoring"
	"github.com/verte-zerg/aospan/internal/stimuli"
)

var (
	// ErrAborted wraps the context error when a session stops before END.
	ErrAborted = errors.New("session aborted")
	// ErrLimitUnset is returned when a timed trial runs before calibration.
	ErrLimitUnset = errors.New("process limit not calibrated")
)

// Session owns the state of one participant run.
type Session struct {
	cfg       model.Config
	pools     stimuli.Pools
	presenter Presenter
	sink      Sink
	clock     Clock
	rnd       sampling.Source
	logger    *zap.Logger
	phases    *phaseMachine

	mu  sync.Mutex
	log model.SessionLog
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithSource replaces the global random source.
func WithSource(src sampling.Source) Option {
	return func(s *Session) { s.rnd = src }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSink sets the receiver of the sealed log.
func WithSink(sink Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithParticipantID overrides the generated anonymous participant id.
func WithParticipantID(id string) Option {
	return func(s *Session) { s.log.ParticipantID = id }
}

// New builds a session. The pools must be able to fill the largest series.
func New(cfg model.Config, pools stimuli.Pools, presenter Presenter, opts ...Option) (*Session, error) {
	if presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}
	if len(pools.Math) == 0 {
		return nil, fmt.Errorf("math pool is empty")
	}
	if need := maxSetSize(cfg); len(pools.Letters) < need {
		return nil, fmt.Errorf("letter pool has %d letters, largest series needs %d", len(pools.Letters), need)
	}
	s := &Session{
		cfg:       cfg,
		pools:     pools,
		presenter: presenter,
		clock:     RealClock(),
		rnd:       sampling.Global(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	now := s.clock.Now()
	s.log.SessionID = uuid.NewString()
	s.log.Timestamp = now
	if s.log.ParticipantID == "" {
		s.log.ParticipantID = anonymousID(now)
	}
	s.log.MathTrials = []model.MathTrialRecord{}
	s.log.Series = []model.SeriesRecord{}
	s.phases = newPhaseMachine(func(from, to model.Phase) {
		s.logger.Debug("phase change", zap.String("from", string(from)), zap.String("to", string(to)))
	})
	return s, nil
}

func anonymousID(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return "anon_" + strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

func maxSetSize(cfg model.Config) int {
	need := 0
	if cfg.MixedTrainSeries > 0 {
		need = cfg.MixedTrainSetSize
	}
	for _, n := range cfg.LetterTrainSizes {
		need = max(need, n)
	}
	for _, n := range cfg.MainSetSizes {
		need = max(need, n)
	}
	return need
}

// Phase returns the current phase, including MATH and RECALL sub-states.
func (s *Session) Phase() model.Phase {
	return s.phases.Current()
}

// Log returns a copy of the session log so far.
func (s *Session) Log() model.SessionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Clone()
}

// Run drives the session from START to END and returns the sealed log.
// If ctx is cancelled first, the partial log is returned with an error
// wrapping ErrAborted.
func (s *Session) Run(ctx context.Context) (model.SessionLog, error) {
	if err := s.presenter.AwaitStart(ctx); err != nil {
		return s.Log(), s.abort(ctx, err)
	}
	stages := []struct {
		phase model.Phase
		run   func(context.Context) error
	}{
		{model.PhaseLetterTrain, s.runLetterTraining},
		{model.PhaseMathTrain, s.runCalibration},
		{model.PhaseMixedTrain, s.runMixedTraining},
		{model.PhaseMain, s.runMain},
	}
	for _, stage := range stages {
		if err := s.phases.Advance(stage.phase); err != nil {
			return s.Log(), err
		}
		if err := stage.run(ctx); err != nil {
			return s.Log(), s.abort(ctx, err)
		}
	}
	return s.finish(ctx)
}

func (s *Session) abort(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.logger.Warn("session aborted", zap.String("phase", string(s.Phase())), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return err
}

func (s *Session) runLetterTraining(ctx context.Context) error {
	for _, n := range s.cfg.LetterTrainSizes {
		if err := s.runSeries(ctx, n, model.ContextLetterPractice, false); err != nil {
			return err
		}
	}
	s.presenter.Show(ctx, Screen{
		Kind:  ScreenMessage,
		Title: "Letter training complete",
		Text:  "Arithmetic training starts shortly.",
	})
	return s.sleep(ctx, s.cfg.TransitionMs)
}

func (s *Session) runMixedTraining(ctx context.Context) error {
	for i := 0; i < s.cfg.MixedTrainSeries; i++ {
		if err := s.runSeries(ctx, s.cfg.MixedTrainSetSize, model.ContextMixedPractice, true); err != nil {
			return err
		}
	}
	s.presenter.Show(ctx, Screen{
		Kind:  ScreenMessage,
		Title: "Training complete",
		Text:  "The test starts shortly.",
	})
	return s.sleep(ctx, s.cfg.TransitionMs)
}

func (s *Session) runMain(ctx context.Context) error {
	plan := mainPlan(s.cfg)
	sampling.Shuffle(s.rnd, plan)
	s.logger.Info("main test started", zap.Ints("plan", plan))
	for _, n := range plan {
		if err := s.runSeries(ctx, n, model.ContextMain, true); err != nil {
			return err
		}
		s.presenter.Show(ctx, Screen{Kind: ScreenBreak, Text: "Break..."})
		if err := s.sleep(ctx, s.cfg.InterSeriesBreakMs); err != nil {
			return err
		}
	}
	return nil
}

// mainPlan lists every main set size MainSeriesPerSize times, unshuffled.
func mainPlan(cfg model.Config) []int {
	plan := make([]int, 0, len(cfg.MainSetSizes)*cfg.MainSeriesPerSize)
	for _, n := range cfg.MainSetSizes {
		for i := 0; i < cfg.MainSeriesPerSize; i++ {
			plan = append(plan, n)
		}
	}
	return plan
}

func (s *Session) finish(ctx context.Context) (model.SessionLog, error) {
	if err := s.phases.Advance(model.PhaseEnd); err != nil {
		return s.Log(), err
	}
	s.mu.Lock()
	scores := scoring.Compute(s.log)
	s.log.Scores = &scores
	sealed := s.log.Clone()
	s.mu.Unlock()

	s.logger.Info("session complete",
		zap.String("session_id", sealed.SessionID),
		zap.Int("absolute_span", scores.AbsoluteSpan),
		zap.Int("partial_credit_score", scores.PartialCreditScore),
		zap.Int("timeouts", scores.Timeouts))

	s.dispatch(sealed)
	s.presenter.Show(ctx, Screen{
		Kind:  ScreenEnd,
		Title: "Thank you",
		Text:  "The test is complete.",
	})
	return sealed, nil
}

func (s *Session) dispatch(log model.SessionLog) {
	if s.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sink dispatch panicked", zap.Any("panic", r))
		}
	}()
	s.sink.Dispatch(log)
}

func (s *Session) appendTrial(rec model.MathTrialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.MathTrials = append(s.log.MathTrials, rec)
}

func (s *Session) appendSeries(rec model.SeriesRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Series = append(s.log.Series, rec)
}

func (s *Session) sleep(ctx context.Context, ms int) error {
	return s.clock.Sleep(ctx, time.Duration(ms)*time.Millisecond)
}
