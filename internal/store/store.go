package store

import (
	"context"
	"errors"
	"time"

	"ecomap/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Depots
	CreateDepot(ctx context.Context, in model.DepotInput) (model.Depot, error)
	ListDepots(ctx context.Context) ([]model.Depot, error)
	GetDepot(ctx context.Context, id string) (model.Depot, error)
	PatchDepot(ctx context.Context, id string, in model.DepotInput) (model.Depot, error)
	DeleteDepot(ctx context.Context, id string) error

	// Waste points
	CreateWastePoint(ctx context.Context, in model.WastePointIn) (model.WastePoint, error)
	ListWastePoints(ctx context.Context, status, wasteType, zone string, limit int) ([]model.WastePoint, error)
	GetWastePoint(ctx context.Context, id string) (model.WastePoint, error)
	UpdateWastePointStatus(ctx context.Context, id, status string) (model.WastePoint, error)

	// Optimization results (resolved geometry is never persisted)
	SaveOptimizationResult(ctx context.Context, res model.OptimizationResult) (model.OptimizationResult, error)
	GetOptimizationResult(ctx context.Context, id string) (model.OptimizationResult, error)
	LatestOptimizationResult(ctx context.Context) (model.OptimizationResult, error)
	ListOptimizationResults(ctx context.Context, limit int) ([]model.OptimizationResult, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

var ErrNotFound = errors.New("not found")
