package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/sampling"
	"github.com/verte-zerg/aospan/internal/scoring"
)

// runSeries presents n letters, each preceded by a timed math trial when
// withMath is set, then captures and scores the recall.
func (s *Session) runSeries(ctx context.Context, n int, tag model.Context, withMath bool) error {
	letters := sampling.Sample(s.rnd, s.pools.Letters, n)
	if len(letters) != n {
		return fmt.Errorf("letter pool of %d cannot fill a series of %d", len(s.pools.Letters), n)
	}
	for _, letter := range letters {
		if withMath {
			stmt := sampling.Pick(s.rnd, s.pools.Math)
			rec, err := s.runMathTrial(ctx, stmt, true, tag)
			if err != nil {
				return err
			}
			s.appendTrial(rec)
		}
		if err := s.presentLetter(ctx, letter); err != nil {
			return err
		}
	}

	recalled, err := s.recall(ctx, n)
	if err != nil {
		return err
	}
	rec := model.SeriesRecord{
		Context:          tag,
		SetSize:          n,
		Presented:        letters,
		Recalled:         recalled,
		CorrectPositions: scoring.CorrectPositions(letters, recalled),
	}
	s.appendSeries(rec)
	s.logger.Debug("series complete",
		zap.String("context", string(tag)),
		zap.Int("set_size", n),
		zap.Int("correct_positions", rec.CorrectPositions))
	return nil
}

func (s *Session) runMathTrial(ctx context.Context, stmt model.MathStatement, timed bool, tag model.Context) (model.MathTrialRecord, error) {
	prompt := MathPrompt{Statement: stmt}
	if timed {
		limit, err := s.processLimit()
		if err != nil {
			return model.MathTrialRecord{}, err
		}
		prompt.Deadline = limit
	}
	if err := s.phases.Enter(model.PhaseMath); err != nil {
		return model.MathTrialRecord{}, err
	}
	defer s.phases.Exit()

	trial := newMathTrial(s.clock, prompt.Deadline)
	s.presenter.PromptMath(ctx, prompt, trial)
	out, err := trial.Wait(ctx)
	if err != nil {
		return model.MathTrialRecord{}, err
	}
	return out.record(stmt, tag), nil
}

func (s *Session) presentLetter(ctx context.Context, letter string) error {
	s.presenter.Show(ctx, Screen{Kind: ScreenLetter, Letter: letter})
	if err := s.sleep(ctx, s.cfg.LetterMs); err != nil {
		return err
	}
	s.presenter.Show(ctx, Screen{Kind: ScreenMask})
	return s.sleep(ctx, s.cfg.PostLetterBlankMs)
}

func (s *Session) recall(ctx context.Context, n int) (model.Recall, error) {
	if err := s.phases.Enter(model.PhaseRecall); err != nil {
		return nil, err
	}
	defer s.phases.Exit()

	pool := append([]string(nil), s.pools.Letters...)
	picked, err := s.presenter.PromptRecall(ctx, RecallRequest{Length: n, Pool: pool})
	if err != nil {
		return nil, fmt.Errorf("failed to capture recall: %w", err)
	}
	return normalizeRecall(picked, n), nil
}

// normalizeRecall pads with NoAnswer or truncates so the result has length n.
func normalizeRecall(picked []string, n int) model.Recall {
	out := make(model.Recall, n)
	copy(out, picked)
	return out
}
