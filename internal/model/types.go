// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"time"
)

// Phase identifies the stage a session is in.
type Phase string

// Session phases. PhaseMath and PhaseRecall are nested sub-states.
const (
	PhaseStart       Phase = "START"
	PhaseLetterTrain Phase = "LETTER_TRAIN"
	PhaseMathTrain   Phase = "MATH_TRAIN"
	PhaseMath        Phase = "MATH"
	PhaseMixedTrain  Phase = "MIXED_TRAIN"
	PhaseMain        Phase = "MAIN"
	PhaseRecall      Phase = "RECALL"
	PhaseEnd         Phase = "END"
)

// Context tags which part of the session produced a record.
type Context string

// Record contexts. Only ContextMain is scored.
const (
	ContextLetterPractice Context = "letter_practice"
	ContextMathOnly       Context = "math_only"
	ContextMixedPractice  Context = "mixed_practice"
	ContextMain           Context = "main"
)

// NoAnswer fills recall slots the participant left empty.
const NoAnswer = ""

// Config defines session timing and plan settings.
type Config struct {
	LetterMs           int
	PostLetterBlankMs  int
	InterSeriesBreakMs int
	TransitionMs       int
	CalibMinMs         int
	CalibMaxMs         int
	CalibPauseMs       int
	MathTrainTrials    int
	LetterTrainSizes   []int
	MixedTrainSeries   int
	MixedTrainSetSize  int
	MainSetSizes       []int
	MainSeriesPerSize  int
}

// DefaultConfig returns the standard task configuration.
func DefaultConfig() Config {
	return Config{
		LetterMs:           800,
		PostLetterBlankMs:  200,
		InterSeriesBreakMs: 1500,
		TransitionMs:       1200,
		CalibMinMs:         3000,
		CalibMaxMs:         6000,
		CalibPauseMs:       250,
		MathTrainTrials:    15,
		LetterTrainSizes:   []int{3, 5},
		MixedTrainSeries:   3,
		MixedTrainSetSize:  2,
		MainSetSizes:       []int{3, 4, 5, 6, 7},
		MainSeriesPerSize:  3,
	}
}

// MathStatement is one arithmetic verification item.
type MathStatement struct {
	Expr string `json:"expr"`
	Key  bool   `json:"key"`
}

// MathTrialRecord captures one arithmetic trial.
type MathTrialRecord struct {
	Expr     string  `json:"expr"`
	Key      bool    `json:"key"`
	Response *bool   `json:"resp"`
	Correct  bool    `json:"correct"`
	RTMs     *int64  `json:"rt_ms"`
	TimedOut bool    `json:"timeout"`
	Context  Context `json:"context"`
}

// Recall is a recalled letter sequence. NoAnswer entries encode as null.
type Recall []string

// MarshalJSON implements json.Marshaler.
func (r Recall) MarshalJSON() ([]byte, error) {
	out := make([]*string, len(r))
	for i := range r {
		if r[i] == NoAnswer {
			continue
		}
		v := r[i]
		out[i] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Recall) UnmarshalJSON(data []byte) error {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Recall, len(raw))
	for i, v := range raw {
		if v != nil {
			out[i] = *v
		}
	}
	*r = out
	return nil
}

// SeriesRecord captures one presented series and its recall.
type SeriesRecord struct {
	Context          Context  `json:"context"`
	SetSize          int      `json:"set_size"`
	Presented        []string `json:"presented"`
	Recalled         Recall   `json:"recalled"`
	CorrectPositions int      `json:"correct_positions"`
}

// Scores summarizes the scored part of a session.
type Scores struct {
	AbsoluteSpan       int      `json:"absolute_span"`
	PartialCreditScore int      `json:"partial_credit_score"`
	PartialCreditRatio *float64 `json:"partial_credit_ratio"`
	MathAccuracy       *float64 `json:"math_accuracy"`
	MeanReactionTimeMs *int64   `json:"mean_reaction_time_ms"`
	Timeouts           int      `json:"timeouts"`
	ProcessLimitMs     int64    `json:"process_limit_ms"`
}

// SessionLog is the append-only record of a session.
type SessionLog struct {
	SessionID      string            `json:"session_id"`
	ParticipantID  string            `json:"participant_id"`
	Timestamp      time.Time         `json:"timestamp"`
	ProcessLimitMs *int64            `json:"process_limit_ms"`
	MathTrials     []MathTrialRecord `json:"math_trials"`
	Series         []SeriesRecord    `json:"series_logs"`
	Scores         *Scores           `json:"scores"`
}

// Clone returns a deep copy of the log.
func (l SessionLog) Clone() SessionLog {
	out := l
	if l.ProcessLimitMs != nil {
		v := *l.ProcessLimitMs
		out.ProcessLimitMs = &v
	}
	out.MathTrials = make([]MathTrialRecord, len(l.MathTrials))
	copy(out.MathTrials, l.MathTrials)
	out.Series = make([]SeriesRecord, len(l.Series))
	for i, s := range l.Series {
		s.Presented = append([]string(nil), s.Presented...)
		s.Recalled = append(Recall(nil), s.Recalled...)
		out.Series[i] = s
	}
	if l.Scores != nil {
		sc := *l.Scores
		out.Scores = &sc
	}
	return out
}

// PendingRecord is a serialized session log held in the local store.
type PendingRecord struct {
	Key       string
	SessionID string
	Payload   []byte
	StoredAt  time.Time
}
