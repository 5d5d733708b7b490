// Package scoring computes span scores and renders session reports.
package scoring

import (
	"math"
	"sort"

	"github.com/verte-zerg/aospan/internal/model"
)

// CorrectPositions counts index-aligned matches between presented and
// recalled letters. NoAnswer entries never match.
func CorrectPositions(presented []string, recalled []string) int {
	n := len(presented)
	if len(recalled) < n {
		n = len(recalled)
	}
	count := 0
	for i := 0; i < n; i++ {
		if recalled[i] != model.NoAnswer && recalled[i] == presented[i] {
			count++
		}
	}
	return count
}

// Compute derives the summary scores from the main-context records of log.
func Compute(log model.SessionLog) model.Scores {
	var scores model.Scores
	if log.ProcessLimitMs != nil {
		scores.ProcessLimitMs = *log.ProcessLimitMs
	}

	for _, s := range log.Series {
		if s.Context != model.ContextMain {
			continue
		}
		scores.AbsoluteSpan += s.SetSize
		scores.PartialCreditScore += s.CorrectPositions
	}
	if scores.AbsoluteSpan > 0 {
		ratio := float64(scores.PartialCreditScore) / float64(scores.AbsoluteSpan)
		scores.PartialCreditRatio = &ratio
	}

	var trials, correct, rtCount int
	var rtSum int64
	for _, t := range log.MathTrials {
		if t.Context != model.ContextMain {
			continue
		}
		trials++
		if t.Correct {
			correct++
			if t.RTMs != nil {
				rtSum += *t.RTMs
				rtCount++
			}
		}
		if t.TimedOut {
			scores.Timeouts++
		}
	}
	if trials > 0 {
		acc := float64(correct) / float64(trials)
		scores.MathAccuracy = &acc
	}
	if rtCount > 0 {
		mean := int64(math.Round(float64(rtSum) / float64(rtCount)))
		scores.MeanReactionTimeMs = &mean
	}
	return scores
}

// SetSizeSummary aggregates main series of one set size.
type SetSizeSummary struct {
	SetSize   int
	Series    int
	Positions int
	Correct   int
}

// Ratio returns Correct/Positions, or 0 when there are no positions.
func (s SetSizeSummary) Ratio() float64 {
	if s.Positions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Positions)
}

// BySetSize groups main series by set size in ascending order.
func BySetSize(log model.SessionLog) []SetSizeSummary {
	idx := map[int]int{}
	var out []SetSizeSummary
	for _, s := range log.Series {
		if s.Context != model.ContextMain {
			continue
		}
		i, ok := idx[s.SetSize]
		if !ok {
			i = len(out)
			idx[s.SetSize] = i
			out = append(out, SetSizeSummary{SetSize: s.SetSize})
		}
		out[i].Series++
		out[i].Positions += s.SetSize
		out[i].Correct += s.CorrectPositions
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SetSize < out[j].SetSize
	})
	return out
}

// MainReactionTimes returns rt_ms of answered main trials in order.
func MainReactionTimes(log model.SessionLog) []float64 {
	var out []float64
	for _, t := range log.MathTrials {
		if t.Context == model.ContextMain && t.RTMs != nil {
			out = append(out, float64(*t.RTMs))
		}
	}
	return out
}
