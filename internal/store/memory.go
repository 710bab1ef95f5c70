package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecomap/internal/model"
)

// MemoryStore is the default store for local runs and tests.
type MemoryStore struct {
	mu         sync.Mutex
	depots     map[string]model.Depot
	points     map[string]model.WastePoint
	results    map[string]model.OptimizationResult
	subs       map[string]model.Subscription
	deliveries map[string]*memDelivery
}

type memDelivery struct {
	WebhookDelivery
	nextAttemptAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		depots:     map[string]model.Depot{},
		points:     map[string]model.WastePoint{},
		results:    map[string]model.OptimizationResult{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *MemoryStore) CreateDepot(_ context.Context, in model.DepotInput) (model.Depot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := model.Depot{ID: uuid.NewString(), IsActive: true}
	applyDepotInput(&d, in)
	m.depots[d.ID] = d
	return d, nil
}

func (m *MemoryStore) ListDepots(_ context.Context) ([]model.Depot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Depot, 0, len(m.depots))
	for _, d := range m.depots {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetDepot(_ context.Context, id string) (model.Depot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.depots[id]
	if !ok {
		return model.Depot{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) PatchDepot(_ context.Context, id string, in model.DepotInput) (model.Depot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.depots[id]
	if !ok {
		return model.Depot{}, ErrNotFound
	}
	applyDepotInput(&d, in)
	m.depots[id] = d
	return d, nil
}

func (m *MemoryStore) DeleteDepot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.depots[id]; !ok {
		return ErrNotFound
	}
	delete(m.depots, id)
	return nil
}

func (m *MemoryStore) CreateWastePoint(_ context.Context, in model.WastePointIn) (model.WastePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := model.WastePoint{
		ID:         uuid.NewString(),
		Lat:        in.Lat,
		Lng:        in.Lng,
		Type:       in.Type,
		Status:     model.StatusReported,
		Zone:       in.Zone,
		ReportedAt: time.Now().UTC(),
	}
	m.points[p.ID] = p
	return p, nil
}

func (m *MemoryStore) ListWastePoints(_ context.Context, status, wasteType, zone string, limit int) ([]model.WastePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.WastePoint{}
	for _, p := range m.points {
		if status != "" && p.Status != status {
			continue
		}
		if wasteType != "" && p.Type != wasteType {
			continue
		}
		if zone != "" && !strings.EqualFold(p.Zone, zone) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportedAt.After(out[j].ReportedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetWastePoint(_ context.Context, id string) (model.WastePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[id]
	if !ok {
		return model.WastePoint{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) UpdateWastePointStatus(_ context.Context, id, status string) (model.WastePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[id]
	if !ok {
		return model.WastePoint{}, ErrNotFound
	}
	p.Status = status
	m.points[id] = p
	return p, nil
}

func (m *MemoryStore) SaveOptimizationResult(_ context.Context, res model.OptimizationResult) (model.OptimizationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.ReceivedAt.IsZero() {
		res.ReceivedAt = time.Now().UTC()
	}
	m.results[res.ID] = res
	return res, nil
}

func (m *MemoryStore) GetOptimizationResult(_ context.Context, id string) (model.OptimizationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return model.OptimizationResult{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) LatestOptimizationResult(_ context.Context) (model.OptimizationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest model.OptimizationResult
	found := false
	for _, r := range m.results {
		if !found || r.ReceivedAt.After(latest.ReceivedAt) {
			latest, found = r, true
		}
	}
	if !found {
		return model.OptimizationResult{}, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) ListOptimizationResults(_ context.Context, limit int) ([]model.OptimizationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.OptimizationResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateSubscription(_ context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.NewString(), URL: req.URL, Events: append([]string{}, req.Events...), Secret: req.Secret}
	m.subs[s.ID] = s
	return s, nil
}

func (m *MemoryStore) GetSubscriptionsForEvent(_ context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) ListSubscriptions(_ context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		s.Secret = ""
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *MemoryStore) EnqueueWebhook(_ context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        append([]byte{}, payload...),
			Status:         "pending",
		},
		nextAttemptAt: time.Now().UTC(),
	}
	return id, nil
}

func (m *MemoryStore) FetchDueWebhookDeliveries(_ context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if d.Status != "pending" || d.nextAttemptAt.After(now) {
			continue
		}
		d.Status = "in_flight"
		out = append(out, d.WebhookDelivery)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkWebhookDelivery(_ context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	if success {
		d.Status = "delivered"
		return nil
	}
	d.Status = "pending"
	if nextAttemptAt != nil {
		d.nextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *MemoryStore) FailWebhookDelivery(_ context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	return nil
}

func applyDepotInput(d *model.Depot, in model.DepotInput) {
	if in.Name != "" {
		d.Name = in.Name
	}
	if in.Lat != nil {
		d.Lat = *in.Lat
	}
	if in.Lng != nil {
		d.Lng = *in.Lng
	}
	if in.CapacityMax != nil {
		d.CapacityMax = *in.CapacityMax
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
}
