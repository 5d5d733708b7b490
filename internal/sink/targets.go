package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/aospan/internal/model"
	"github.com/verte-zerg/aospan/internal/store"
)

// DefaultRetention is how long the handoff copy stays in the local store.
const DefaultRetention = 1500 * time.Millisecond

// HostMessageType tags the result line written for a host process.
const HostMessageType = "AOSPAN_RESULT"

// LocalStore writes the log under store.KeyFull and removes it after the
// retention delay, unless a newer session replaced it.
type LocalStore struct {
	Store     *store.Store
	Retention time.Duration
	Now       func() time.Time
}

// Name implements Target.
func (l *LocalStore) Name() string { return "local_store" }

// Deliver implements Target.
func (l *LocalStore) Deliver(ctx context.Context, log model.SessionLog) error {
	if err := l.put(ctx, store.KeyFull, log); err != nil {
		return err
	}
	timer := time.NewTimer(l.Retention)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	if _, err := l.Store.Delete(ctx, store.KeyFull, log.SessionID); err != nil {
		return err
	}
	return nil
}

// SavePartial keeps an unfinished log under store.KeyPartial.
func (l *LocalStore) SavePartial(ctx context.Context, log model.SessionLog) error {
	return l.put(ctx, store.KeyPartial, log)
}

func (l *LocalStore) put(ctx context.Context, key string, log model.SessionLog) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to encode session log: %w", err)
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	return l.Store.Put(ctx, model.PendingRecord{
		Key:       key,
		SessionID: log.SessionID,
		Payload:   payload,
		StoredAt:  now(),
	})
}

// IsHTTPEndpoint reports whether endpoint is usable by HTTP.
func IsHTTPEndpoint(endpoint string) bool {
	return strings.HasPrefix(strings.ToLower(endpoint), "http")
}

// HTTP posts the full log as JSON.
type HTTP struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTP returns an HTTP target with a bounded client.
func NewHTTP(endpoint string) *HTTP {
	return &HTTP{Endpoint: endpoint, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Name implements Target.
func (h *HTTP) Name() string { return "http" }

// Deliver implements Target.
func (h *HTTP) Deliver(ctx context.Context, log model.SessionLog) error {
	if !IsHTTPEndpoint(h.Endpoint) {
		return fmt.Errorf("endpoint %q is not http(s)", h.Endpoint)
	}
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to encode session log: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post session log: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}

type hostMessage struct {
	Type   string        `json:"type"`
	Result *model.Scores `json:"result"`
}

// Host writes one JSON result line per session for an embedding process.
type Host struct {
	mu sync.Mutex
	w  io.Writer
}

// NewHost writes result lines to w.
func NewHost(w io.Writer) *Host {
	return &Host{w: w}
}

// Name implements Target.
func (h *Host) Name() string { return "host" }

// Deliver implements Target.
func (h *Host) Deliver(_ context.Context, log model.SessionLog) error {
	line, err := json.Marshal(hostMessage{Type: HostMessageType, Result: log.Scores})
	if err != nil {
		return fmt.Errorf("failed to encode host message: %w", err)
	}
	line = append(line, '\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(line); err != nil {
		return fmt.Errorf("failed to write host message: %w", err)
	}
	return nil
}
