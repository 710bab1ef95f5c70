package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ecomap/internal/model"
	"ecomap/internal/store"
)

type recordStore struct {
	*store.MemoryStore
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}
type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
}
type failRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.MemoryStore.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.MemoryStore.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerDeliversAndSigns(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{MemoryStore: store.NewMemoryStore()}
	ctx := context.Background()
	sub, _ := rs.CreateSubscription(ctx, model.SubscriptionRequest{URL: srv.URL, Events: []string{EventRouteDegraded}, Secret: "topsecret"})

	pub := NewPublisher(rs)
	pub.Emit(ctx, EventRouteDegraded, map[string]any{"routeIndex": 1})

	w := NewWorker(rs)
	w.processOnce()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.marks) != 1 || !rs.marks[0].Success || rs.marks[0].Code != 200 {
		t.Fatalf("marks: %+v", rs.marks)
	}
	if gotType != EventRouteDegraded {
		t.Fatalf("event type header: %q", gotType)
	}
	if !VerifyHMAC("topsecret", gotBody, gotSig) {
		t.Fatalf("signature does not verify: %q over %q", gotSig, gotBody)
	}
	_ = sub
}

func TestWorkerRetriesThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rs := &recordStore{MemoryStore: store.NewMemoryStore()}
	ctx := context.Background()
	_, _ = rs.CreateSubscription(ctx, model.SubscriptionRequest{URL: srv.URL, Events: []string{"*"}})
	NewPublisher(rs).Emit(ctx, EventOptimizationReceived, map[string]any{"id": "r1"})

	w := NewWorker(rs)
	w.MaxAttempts = 1
	w.processOnce()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.fails) != 1 {
		t.Fatalf("fails: %+v marks: %+v", rs.fails, rs.marks)
	}
	if rs.fails[0].Code != http.StatusBadGateway {
		t.Fatalf("fail code: %d", rs.fails[0].Code)
	}
}

func TestPublisherSkipsUnmatchedEvents(t *testing.T) {
	rs := store.NewMemoryStore()
	ctx := context.Background()
	_, _ = rs.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://example.com", Events: []string{EventRouteResolved}})

	NewPublisher(rs).Emit(ctx, EventWastePointStatus, map[string]any{"id": "p1"})

	due, _ := rs.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("unexpected deliveries: %+v", due)
	}
}

func TestNextBackoffGrowsAndCaps(t *testing.T) {
	if nextBackoff(0) != time.Second {
		t.Fatalf("attempt 0: %v", nextBackoff(0))
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("attempt 3: %v", nextBackoff(3))
	}
	if nextBackoff(100) != 17*time.Minute+4*time.Second {
		t.Fatalf("clamped attempts: %v", nextBackoff(100))
	}
}
