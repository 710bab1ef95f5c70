package store

import (
	"context"
	"testing"
	"time"

	"ecomap/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestMemoryDepots(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	d, err := m.CreateDepot(ctx, model.DepotInput{Name: "Depot Nord", Lat: f64(36.8), Lng: f64(10.18), CapacityMax: f64(120)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID == "" || !d.IsActive {
		t.Fatalf("created depot: %+v", d)
	}

	got, err := m.GetDepot(ctx, d.ID)
	if err != nil || got.Name != "Depot Nord" {
		t.Fatalf("get: %+v %v", got, err)
	}

	patched, err := m.PatchDepot(ctx, d.ID, model.DepotInput{IsActive: new(bool)})
	if err != nil || patched.IsActive {
		t.Fatalf("patch: %+v %v", patched, err)
	}
	if patched.Name != "Depot Nord" {
		t.Fatalf("patch must not clobber unset fields: %+v", patched)
	}

	if err := m.DeleteDepot(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetDepot(ctx, d.ID); err != ErrNotFound {
		t.Fatalf("get deleted: %v", err)
	}
}

func TestMemoryWastePointFilters(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	p1, _ := m.CreateWastePoint(ctx, model.WastePointIn{Lat: 36.8, Lng: 10.1, Type: model.WastePlastic, Zone: "lac"})
	p2, _ := m.CreateWastePoint(ctx, model.WastePointIn{Lat: 36.81, Lng: 10.2, Type: model.WasteGlass, Zone: "marsa"})
	if p1.Status != model.StatusReported {
		t.Fatalf("default status: %q", p1.Status)
	}

	if _, err := m.UpdateWastePointStatus(ctx, p2.ID, model.StatusCleaned); err != nil {
		t.Fatalf("update status: %v", err)
	}

	pts, err := m.ListWastePoints(ctx, model.StatusReported, "", "", 0)
	if err != nil || len(pts) != 1 || pts[0].ID != p1.ID {
		t.Fatalf("status filter: %+v %v", pts, err)
	}
	pts, _ = m.ListWastePoints(ctx, "", model.WasteGlass, "", 0)
	if len(pts) != 1 || pts[0].ID != p2.ID {
		t.Fatalf("type filter: %+v", pts)
	}
	pts, _ = m.ListWastePoints(ctx, "", "", "LAC", 0)
	if len(pts) != 1 || pts[0].ID != p1.ID {
		t.Fatalf("zone filter should be case-insensitive: %+v", pts)
	}
	pts, _ = m.ListWastePoints(ctx, "", "", "", 1)
	if len(pts) != 1 {
		t.Fatalf("limit: %+v", pts)
	}
}

func TestMemoryOptimizationResults(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	older, _ := m.SaveOptimizationResult(ctx, model.OptimizationResult{DepotUsed: "A", ReceivedAt: time.Now().Add(-time.Hour)})
	newer, _ := m.SaveOptimizationResult(ctx, model.OptimizationResult{DepotUsed: "B"})
	if older.ID == "" || newer.ID == "" || older.ID == newer.ID {
		t.Fatalf("ids: %q %q", older.ID, newer.ID)
	}

	latest, err := m.LatestOptimizationResult(ctx)
	if err != nil || latest.ID != newer.ID {
		t.Fatalf("latest: %+v %v", latest, err)
	}

	all, _ := m.ListOptimizationResults(ctx, 0)
	if len(all) != 2 || all[0].ID != newer.ID {
		t.Fatalf("list order: %+v", all)
	}

	if _, err := m.GetOptimizationResult(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("missing result: %v", err)
	}
}

func TestMemorySubscriptionsAndDeliveries(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	sub, err := m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://example.com/h", Events: []string{"route.degraded"}, Secret: "s"})
	if err != nil {
		t.Fatalf("create sub: %v", err)
	}
	wild, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://example.com/all", Events: []string{"*"}})

	subs, _ := m.GetSubscriptionsForEvent(ctx, "route.degraded")
	if len(subs) != 2 {
		t.Fatalf("event match: %+v", subs)
	}
	subs, _ = m.GetSubscriptionsForEvent(ctx, "route.resolved")
	if len(subs) != 1 || subs[0].ID != wild.ID {
		t.Fatalf("wildcard match: %+v", subs)
	}

	listed, _ := m.ListSubscriptions(ctx)
	for _, s := range listed {
		if s.Secret != "" {
			t.Fatal("list must not expose secrets")
		}
	}

	id, err := m.EnqueueWebhook(ctx, sub.ID, "route.degraded", sub.URL, "s", []byte(`{}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("due: %+v", due)
	}
	// in_flight items are not due again
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("double fetch: %+v", due)
	}

	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 12); err != nil {
		t.Fatalf("mark: %v", err)
	}
	// backed off into the future, still not due
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("backoff ignored: %+v", due)
	}

	if err := m.FailWebhookDelivery(ctx, id, "gave up", 500, 12); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("delete sub: %v", err)
	}
}
