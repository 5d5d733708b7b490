package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/verte-zerg/aospan/internal/model"
)

func TestSessionFullRun(t *testing.T) {
	cfg := model.DefaultConfig()
	p := &scriptedPresenter{answer: answerCorrectly(time.Second)}
	sink := &recordingSink{}
	s := newTestSession(t, cfg, p, WithSink(sink), WithParticipantID("p-17"))

	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.Phase() != model.PhaseEnd {
		t.Fatalf("expected END, got %s", s.Phase())
	}
	if log.ParticipantID != "p-17" || log.SessionID == "" {
		t.Fatalf("unexpected identity %q/%q", log.ParticipantID, log.SessionID)
	}

	counts := map[model.Context]int{}
	for _, sr := range log.Series {
		counts[sr.Context]++
	}
	wantSeries := map[model.Context]int{
		model.ContextLetterPractice: 2,
		model.ContextMixedPractice:  3,
		model.ContextMain:           15,
	}
	if diff := cmp.Diff(wantSeries, counts); diff != "" {
		t.Fatalf("unexpected series counts (-want +got):\n%s", diff)
	}

	trialCounts := map[model.Context]int{}
	for _, tr := range log.MathTrials {
		trialCounts[tr.Context]++
	}
	wantTrials := map[model.Context]int{
		model.ContextMathOnly:      15,
		model.ContextMixedPractice: 6,
		model.ContextMain:          75,
	}
	if diff := cmp.Diff(wantTrials, trialCounts); diff != "" {
		t.Fatalf("unexpected trial counts (-want +got):\n%s", diff)
	}

	one := 1.0
	meanRT := int64(1000)
	want := &model.Scores{
		AbsoluteSpan:       75,
		PartialCreditScore: 75,
		PartialCreditRatio: &one,
		MathAccuracy:       &one,
		MeanReactionTimeMs: &meanRT,
		Timeouts:           0,
		ProcessLimitMs:     3000,
	}
	if diff := cmp.Diff(want, log.Scores); diff != "" {
		t.Fatalf("unexpected scores (-want +got):\n%s", diff)
	}

	if len(sink.logs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(sink.logs))
	}
	if diff := cmp.Diff(log, sink.logs[0]); diff != "" {
		t.Fatalf("dispatched log differs (-want +got):\n%s", diff)
	}
	last := p.screens[len(p.screens)-1]
	if last.Kind != ScreenEnd {
		t.Fatalf("expected end screen last, got %+v", last)
	}
}

func TestSessionDeadlines(t *testing.T) {
	p := &scriptedPresenter{answer: answerCorrectly(time.Second)}
	s := newTestSession(t, model.DefaultConfig(), p)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, prompt := range p.prompts {
		want := 3000 * time.Millisecond
		if i < 15 {
			want = 0
		}
		if prompt.Deadline != want {
			t.Fatalf("prompt %d: expected deadline %v, got %v", i, want, prompt.Deadline)
		}
	}
	for _, ph := range p.mathPhases {
		if ph != model.PhaseMath {
			t.Fatalf("expected MATH while prompting, got %s", ph)
		}
	}
	for _, ph := range p.recallPhases {
		if ph != model.PhaseRecall {
			t.Fatalf("expected RECALL while recalling, got %s", ph)
		}
	}
	for i, ok := range p.accepted {
		if !ok {
			t.Fatalf("answer %d was rejected", i)
		}
	}
}

func TestSessionMainPlanAndLetters(t *testing.T) {
	cfg := model.DefaultConfig()
	p := &scriptedPresenter{answer: answerCorrectly(time.Second)}
	s := newTestSession(t, cfg, p)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	sizes := map[int]int{}
	for _, sr := range log.Series {
		seen := map[string]bool{}
		for _, l := range sr.Presented {
			if seen[l] {
				t.Fatalf("letter %q repeated within series %v", l, sr.Presented)
			}
			seen[l] = true
		}
		if len(sr.Presented) != sr.SetSize || len(sr.Recalled) != sr.SetSize {
			t.Fatalf("series lengths disagree with set size: %+v", sr)
		}
		if sr.Context == model.ContextMain {
			sizes[sr.SetSize]++
		}
	}
	if diff := cmp.Diff(map[int]int{3: 3, 4: 3, 5: 3, 6: 3, 7: 3}, sizes); diff != "" {
		t.Fatalf("unexpected main plan (-want +got):\n%s", diff)
	}
	for _, req := range p.requests {
		if len(req.Pool) != len(s.pools.Letters) {
			t.Fatalf("expected full letter pool in recall request, got %d", len(req.Pool))
		}
	}
}

func TestSessionTimeoutsAndPartialRecall(t *testing.T) {
	cfg := model.DefaultConfig()
	// Every timed trial expires; calibration answers correctly.
	p := &scriptedPresenter{
		answer: func(_ int, prompt MathPrompt) (time.Duration, *bool) {
			if prompt.Deadline > 0 {
				return 0, nil
			}
			key := prompt.Statement.Key
			return 2 * time.Second, &key
		},
		recall: func(req RecallRequest, shown []string) []string {
			return shown[:1]
		},
	}
	s := newTestSession(t, cfg, p)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	sc := log.Scores
	if sc.Timeouts != 75 {
		t.Fatalf("expected 75 timeouts, got %d", sc.Timeouts)
	}
	if sc.MathAccuracy == nil || *sc.MathAccuracy != 0 {
		t.Fatalf("expected accuracy 0, got %v", sc.MathAccuracy)
	}
	if sc.MeanReactionTimeMs != nil {
		t.Fatalf("expected no mean RT, got %d", *sc.MeanReactionTimeMs)
	}
	if sc.PartialCreditScore != 15 {
		t.Fatalf("expected one position per main series, got %d", sc.PartialCreditScore)
	}
	for _, sr := range log.Series {
		for _, r := range sr.Recalled[1:] {
			if r != model.NoAnswer {
				t.Fatalf("expected padded recall, got %v", sr.Recalled)
			}
		}
	}
}

func TestSessionAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &scriptedPresenter{}
	p.answer = func(call int, prompt MathPrompt) (time.Duration, *bool) {
		if call == 4 {
			cancel()
		}
		key := prompt.Statement.Key
		return 700 * time.Millisecond, &key
	}
	sink := &recordingSink{}
	s := newTestSession(t, model.DefaultConfig(), p, WithSink(sink))

	log, err := s.Run(ctx)
	if !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected aborted/cancelled, got %v", err)
	}
	if len(sink.logs) != 0 {
		t.Fatalf("aborted session must not dispatch")
	}
	if log.Scores != nil {
		t.Fatalf("aborted log must not be scored")
	}
	if s.Phase() == model.PhaseEnd {
		t.Fatalf("aborted session reached END")
	}
	if len(log.Series) != 2 {
		t.Fatalf("expected letter training series in partial log, got %d", len(log.Series))
	}
}

func TestNewValidatesPools(t *testing.T) {
	pools := testPools()
	pools.Letters = pools.Letters[:5]
	if _, err := New(model.DefaultConfig(), pools, &scriptedPresenter{}); err == nil {
		t.Fatalf("expected short letter pool to be rejected")
	}
	pools = testPools()
	pools.Math = nil
	if _, err := New(model.DefaultConfig(), pools, &scriptedPresenter{}); err == nil {
		t.Fatalf("expected empty math pool to be rejected")
	}
	if _, err := New(model.DefaultConfig(), testPools(), nil); err == nil {
		t.Fatalf("expected nil presenter to be rejected")
	}
}

func TestNewIgnoresMixedSizeWithoutMixedSeries(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.MixedTrainSeries = 0
	cfg.MixedTrainSetSize = 20
	if _, err := New(cfg, testPools(), &scriptedPresenter{}); err != nil {
		t.Fatalf("unused mixed set size rejected: %v", err)
	}
	if got := maxSetSize(cfg); got != 7 {
		t.Fatalf("expected largest needed size 7, got %d", got)
	}
	cfg.MixedTrainSeries = 1
	if _, err := New(cfg, testPools(), &scriptedPresenter{}); err == nil {
		t.Fatalf("expected mixed set size 20 to exceed the letter pool")
	}
}

func TestAnonymousID(t *testing.T) {
	got := anonymousID(time.Date(2026, 3, 1, 9, 5, 7, 120000000, time.UTC))
	if got != "anon_2026-03-01T09-05-07-120Z" {
		t.Fatalf("unexpected id %q", got)
	}
	if strings.ContainsAny(got, ":.") {
		t.Fatalf("id contains separators: %q", got)
	}
}

func TestNormalizeRecall(t *testing.T) {
	if diff := cmp.Diff(model.Recall{"F", "", ""}, normalizeRecall([]string{"F"}, 3)); diff != "" {
		t.Fatalf("padding (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.Recall{"F", "H"}, normalizeRecall([]string{"F", "H", "J"}, 2)); diff != "" {
		t.Fatalf("truncation (-want +got):\n%s", diff)
	}
}

func TestMainPlan(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.MainSetSizes = []int{2, 4}
	cfg.MainSeriesPerSize = 2
	if diff := cmp.Diff([]int{2, 2, 4, 4}, mainPlan(cfg)); diff != "" {
		t.Fatalf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestSessionSeriesOrdering(t *testing.T) {
	cfg := model.DefaultConfig()
	rt := time.Second
	p := &scriptedPresenter{answer: answerCorrectly(rt)}
	s := newTestSession(t, cfg, p)
	log, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var recalls []int
	for i, ev := range p.events {
		if ev.kind == 'R' {
			recalls = append(recalls, i)
		}
	}
	if len(recalls) != len(log.Series) {
		t.Fatalf("expected %d recalls, got %d", len(log.Series), len(recalls))
	}

	letterGap := time.Duration(cfg.LetterMs) * time.Millisecond
	blankGap := time.Duration(cfg.PostLetterBlankMs) * time.Millisecond
	for i, sr := range log.Series {
		unit := "QLM"
		if sr.Context == model.ContextLetterPractice {
			unit = "LM"
		}
		span := len(unit) * sr.SetSize
		end := recalls[i]
		if end < span {
			t.Fatalf("series %d: only %d events before recall", i, end)
		}
		window := p.events[end-span : end+1]
		var got strings.Builder
		for _, ev := range window {
			got.WriteByte(ev.kind)
		}
		if want := strings.Repeat(unit, sr.SetSize) + "R"; got.String() != want {
			t.Fatalf("series %d (%s): expected %s, got %s", i, sr.Context, want, got.String())
		}
		for j, ev := range window[:len(window)-1] {
			var want time.Duration
			switch ev.kind {
			case 'Q':
				want = rt
			case 'L':
				want = letterGap
			case 'M':
				want = blankGap
			}
			if gap := window[j+1].at - ev.at; gap != want {
				t.Fatalf("series %d: %c at %v followed after %v, want %v", i, ev.kind, ev.at, gap, want)
			}
		}
	}

	var order []int
	for _, sr := range log.Series {
		if sr.Context == model.ContextMain {
			order = append(order, sr.SetSize)
		}
	}
	if cmp.Equal(mainPlan(cfg), order) {
		t.Fatalf("main plan ran unshuffled: %v", order)
	}
	sorted := append([]int(nil), order...)
	sort.Ints(sorted)
	if diff := cmp.Diff(mainPlan(cfg), sorted); diff != "" {
		t.Fatalf("main plan is not a permutation (-want +got):\n%s", diff)
	}
}
