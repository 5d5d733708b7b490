package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/verte-zerg/aospan/internal/model"
)

type trialOutcome struct {
	response *bool
	rt       time.Duration
	timedOut bool
}

// mathTrial races a participant response against an optional deadline.
// The first of Respond, expiry or cancellation wins; later calls are no-ops.
type mathTrial struct {
	clock  Clock
	start  time.Time
	mu     sync.Mutex
	done   bool
	timer  Timer
	result chan trialOutcome
}

func newMathTrial(clock Clock, deadline time.Duration) *mathTrial {
	t := &mathTrial{
		clock:  clock,
		start:  clock.Now(),
		result: make(chan trialOutcome, 1),
	}
	if deadline > 0 {
		t.mu.Lock()
		t.timer = clock.AfterFunc(deadline, t.expire)
		t.mu.Unlock()
	}
	return t
}

// Respond implements Responder.
func (t *mathTrial) Respond(key bool) bool {
	rt := t.clock.Now().Sub(t.start)
	return t.resolve(trialOutcome{response: &key, rt: rt}, true)
}

func (t *mathTrial) expire() {
	t.resolve(trialOutcome{timedOut: true}, true)
}

func (t *mathTrial) cancel() {
	t.resolve(trialOutcome{}, false)
}

func (t *mathTrial) resolve(out trialOutcome, publish bool) bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	if publish {
		t.result <- out
	}
	return true
}

func (t *mathTrial) Wait(ctx context.Context) (trialOutcome, error) {
	select {
	case out := <-t.result:
		return out, nil
	case <-ctx.Done():
		t.cancel()
		// A winner may have published just before cancellation.
		select {
		case out := <-t.result:
			return out, nil
		default:
		}
		return trialOutcome{}, ctx.Err()
	}
}

func (o trialOutcome) record(stmt model.MathStatement, tag model.Context) model.MathTrialRecord {
	rec := model.MathTrialRecord{
		Expr:     stmt.Expr,
		Key:      stmt.Key,
		TimedOut: o.timedOut,
		Context:  tag,
	}
	if o.timedOut || o.response == nil {
		return rec
	}
	resp := *o.response
	rt := roundMs(o.rt)
	rec.Response = &resp
	rec.Correct = resp == stmt.Key
	rec.RTMs = &rt
	return rec
}

func roundMs(d time.Duration) int64 {
	return int64(math.Round(float64(d) / float64(time.Millisecond)))
}
