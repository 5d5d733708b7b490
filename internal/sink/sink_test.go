package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sealedLog() model.SessionLog {
	limit := int64(3400)
	acc := 0.9
	return model.SessionLog{
		SessionID:      "c3a5",
		ParticipantID:  "p-1",
		Timestamp:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ProcessLimitMs: &limit,
		MathTrials:     []model.MathTrialRecord{},
		Series:         []model.SeriesRecord{},
		Scores: &model.Scores{
			AbsoluteSpan:       75,
			PartialCreditScore: 60,
			MathAccuracy:       &acc,
			ProcessLimitMs:     3400,
		},
	}
}

type funcTarget struct {
	name string
	fn   func(ctx context.Context, log model.SessionLog) error
}

func (f funcTarget) Name() string { return f.name }

func (f funcTarget) Deliver(ctx context.Context, log model.SessionLog) error {
	return f.fn(ctx, log)
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	var mu sync.Mutex
	var got []string
	ok := funcTarget{name: "ok", fn: func(_ context.Context, log model.SessionLog) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, log.SessionID)
		return nil
	}}
	failing := funcTarget{name: "failing", fn: func(context.Context, model.SessionLog) error {
		return errors.New("unreachable")
	}}
	panicking := funcTarget{name: "panicking", fn: func(context.Context, model.SessionLog) error {
		panic("boom")
	}}

	d := NewDispatcher(context.Background(), nil, failing, panicking, ok)
	d.Dispatch(sealedLog())
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if diff := cmp.Diff([]string{"c3a5"}, got); diff != "" {
		t.Fatalf("unexpected deliveries (-want +got):\n%s", diff)
	}
}

func TestDispatcherWaitBounded(t *testing.T) {
	release := make(chan struct{})
	slow := funcTarget{name: "slow", fn: func(context.Context, model.SessionLog) error {
		<-release
		return nil
	}}
	d := NewDispatcher(context.Background(), nil, slow)
	d.Dispatch(sealedLog())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(release)
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("wait after release: %v", err)
	}
}

func TestLocalStoreHandoff(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "aospan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	target := &LocalStore{Store: st, Retention: 150 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		done <- target.Deliver(context.Background(), sealedLog())
	}()

	deadline := time.Now().Add(time.Second)
	var rec model.PendingRecord
	for {
		rec, err = st.Get(context.Background(), store.KeyFull)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("expected handoff record during retention: %v", err)
	}
	var decoded model.SessionLog
	if err := json.Unmarshal(rec.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.SessionID != "c3a5" || decoded.Scores.PartialCreditScore != 60 {
		t.Fatalf("unexpected payload %+v", decoded)
	}

	if err := <-done; err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := st.Get(context.Background(), store.KeyFull); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected handoff record removed, got %v", err)
	}
}

func TestLocalStoreSavePartial(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "aospan.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	target := &LocalStore{Store: st, Now: func() time.Time { return at }}
	log := sealedLog()
	log.Scores = nil
	if err := target.SavePartial(context.Background(), log); err != nil {
		t.Fatalf("save partial: %v", err)
	}
	rec, err := st.Get(context.Background(), store.KeyPartial)
	if err != nil {
		t.Fatalf("get partial: %v", err)
	}
	if rec.SessionID != "c3a5" || !rec.StoredAt.Equal(at) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHTTPPostsLog(t *testing.T) {
	var body []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	target := NewHTTP(srv.URL)
	target.Client = srv.Client()
	if err := target.Deliver(context.Background(), sealedLog()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{"session_id", "participant_id", "math_trials", "series_logs", "scores", "process_limit_ms"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, body)
		}
	}
}

func TestHTTPReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	target := NewHTTP(srv.URL)
	target.Client = srv.Client()
	if err := target.Deliver(context.Background(), sealedLog()); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestIsHTTPEndpoint(t *testing.T) {
	tests := map[string]bool{
		"https://example.org/collect": true,
		"http://localhost:8080":       true,
		"":                            false,
		"ftp://example.org":           false,
		"/var/run/collect":            false,
	}
	for endpoint, want := range tests {
		if got := IsHTTPEndpoint(endpoint); got != want {
			t.Fatalf("IsHTTPEndpoint(%q) = %v, want %v", endpoint, got, want)
		}
	}
}

func TestHostWritesResultLine(t *testing.T) {
	var buf bytes.Buffer
	if err := NewHost(&buf).Deliver(context.Background(), sealedLog()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	want := `{"type":"AOSPAN_RESULT","result":{"absolute_span":75,"partial_credit_score":60,` +
		`"partial_credit_ratio":null,"math_accuracy":0.9,"mean_reaction_time_ms":null,` +
		`"timeouts":0,"process_limit_ms":3400}}` + "\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("unexpected host line (-want +got):\n%s", diff)
	}
}
