package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/sampling"
)

const (
	// MinQualifyingRTMs discards responses faster than a plausible read.
	MinQualifyingRTMs = 200
	// MinQualifyingTrials is the fewest RTs that yield a calibrated limit.
	MinQualifyingTrials = 3
	// FallbackProcessLimitMs applies when calibration has too few RTs.
	FallbackProcessLimitMs = 5000
	sdMultiplier           = 2.5
)

// QualifyingRTs returns the RTs of correct trials at or above the floor.
func QualifyingRTs(trials []model.MathTrialRecord) []int64 {
	var rts []int64
	for _, t := range trials {
		if t.Correct && t.RTMs != nil && *t.RTMs >= MinQualifyingRTMs {
			rts = append(rts, *t.RTMs)
		}
	}
	return rts
}

// ComputeProcessLimit returns round(mean + 2.5*sd) clamped to [minMs, maxMs],
// using the population SD. With fewer than MinQualifyingTrials RTs it returns
// FallbackProcessLimitMs.
func ComputeProcessLimit(rts []int64, minMs, maxMs int) int64 {
	if len(rts) < MinQualifyingTrials {
		return FallbackProcessLimitMs
	}
	n := float64(len(rts))
	var sum float64
	for _, v := range rts {
		sum += float64(v)
	}
	mean := sum / n
	var sq float64
	for _, v := range rts {
		d := float64(v) - mean
		sq += d * d
	}
	sd := math.Sqrt(sq / n)
	limit := int64(math.Round(mean + sdMultiplier*sd))
	return clamp(limit, int64(minMs), int64(maxMs))
}

func clamp(v, lo, hi int64) int64 {
	return max(lo, min(hi, v))
}

func (s *Session) runCalibration(ctx context.Context) error {
	stmts := sampling.Sample(s.rnd, s.pools.Math, s.cfg.MathTrainTrials)
	trials := make([]model.MathTrialRecord, 0, len(stmts))
	for _, stmt := range stmts {
		rec, err := s.runMathTrial(ctx, stmt, false, model.ContextMathOnly)
		if err != nil {
			return err
		}
		s.appendTrial(rec)
		trials = append(trials, rec)
		if err := s.sleep(ctx, s.cfg.CalibPauseMs); err != nil {
			return err
		}
	}

	rts := QualifyingRTs(trials)
	limit := ComputeProcessLimit(rts, s.cfg.CalibMinMs, s.cfg.CalibMaxMs)
	if err := s.setProcessLimit(limit); err != nil {
		return err
	}
	s.logger.Info("process limit calibrated",
		zap.Int64("process_limit_ms", limit),
		zap.Int("trials", len(trials)),
		zap.Int("qualifying", len(rts)),
		zap.Bool("fallback", len(rts) < MinQualifyingTrials))

	s.presenter.Show(ctx, Screen{
		Kind:  ScreenMessage,
		Title: "Time limit set",
		Text:  fmt.Sprintf("Limit: %d ms. Training with letters starts now.", limit),
	})
	return s.sleep(ctx, s.cfg.TransitionMs)
}

func (s *Session) processLimit() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log.ProcessLimitMs == nil {
		return 0, ErrLimitUnset
	}
	return time.Duration(*s.log.ProcessLimitMs) * time.Millisecond, nil
}

func (s *Session) setProcessLimit(limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log.ProcessLimitMs != nil {
		return fmt.Errorf("process limit already set to %d ms", *s.log.ProcessLimitMs)
	}
	s.log.ProcessLimitMs = &limit
	return nil
}
