package model

// SubscriptionRequest registers a webhook endpoint for map events
// (optimization.received, route.resolved, route.degraded,
// wastepoint.status.changed).
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
