package routing

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"ecomap/internal/metrics"
	"ecomap/internal/model"
)

// Resolver turns route assignments into drawable polylines. Each assignment
// resolves independently and concurrently; a failure degrades only its own
// route. Resolutions are keyed by the optimization result's id (the epoch):
// a settle arriving after a newer result has been dispatched is discarded so
// it can never overwrite newer state.
type Resolver struct {
	Client  RouteClient
	Timeout time.Duration
	Log     *slog.Logger

	mu     sync.Mutex
	epoch  string
	routes map[int]model.ResolvedRoute
}

func NewResolver(client RouteClient, timeout time.Duration, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{Client: client, Timeout: timeout, Log: log, routes: map[int]model.ResolvedRoute{}}
}

// Resolve fetches road geometry for one waypoint chain. Chains shorter than 2
// points return ok=false without any network call. Every failure mode ends in
// the straight-line fallback; this is the terminal error boundary, so Resolve
// never returns an error.
func (r *Resolver) Resolve(ctx context.Context, routeIndex int, chain []model.GeoPoint) (model.ResolvedRoute, bool) {
	if len(chain) < 2 {
		metrics.RouteResolutions.WithLabelValues("skipped").Inc()
		return model.ResolvedRoute{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	road, err := r.Client.Route(ctx, chain)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		r.Log.Warn("route resolution failed, using straight-line fallback",
			"routeIndex", routeIndex, "error", err)
		metrics.RouteResolutions.WithLabelValues("degraded").Inc()
		metrics.ResolutionLatency.WithLabelValues("degraded").Observe(elapsed)
		fallback := make([]model.GeoPoint, len(chain))
		copy(fallback, chain)
		return model.ResolvedRoute{RouteIndex: routeIndex, Coordinates: fallback, Degraded: true}, true
	}
	metrics.RouteResolutions.WithLabelValues("resolved").Inc()
	metrics.ResolutionLatency.WithLabelValues("resolved").Observe(elapsed)
	km := road.DistanceM / 1000
	min := int(math.Round(road.DurationSec / 60))
	return model.ResolvedRoute{
		RouteIndex:      routeIndex,
		Coordinates:     road.Coordinates,
		DistanceKm:      &km,
		DurationMinutes: &min,
	}, true
}

// Begin starts resolution for a new optimization result. Prior epoch state is
// dropped immediately; in-flight resolutions from the prior epoch are
// discarded when they settle. onSettle fires once per stored route, in
// whatever order the network returns.
func (r *Resolver) Begin(epoch string, assignments []model.RouteAssignment, onSettle func(model.ResolvedRoute)) {
	r.mu.Lock()
	r.epoch = epoch
	r.routes = make(map[int]model.ResolvedRoute, len(assignments))
	r.mu.Unlock()

	for _, a := range assignments {
		go func(a model.RouteAssignment) {
			rr, ok := r.Resolve(context.Background(), a.RouteIndex, a.WaypointChain())
			if !ok {
				return
			}
			r.mu.Lock()
			if r.epoch != epoch {
				r.mu.Unlock()
				metrics.RouteResolutions.WithLabelValues("stale").Inc()
				r.Log.Debug("discarding stale route resolution", "epoch", epoch, "routeIndex", a.RouteIndex)
				return
			}
			r.routes[a.RouteIndex] = rr
			r.mu.Unlock()
			if onSettle != nil {
				onSettle(rr)
			}
		}(a)
	}
}

// Snapshot returns the settled routes for the given epoch, or ok=false when a
// newer result has superseded it.
func (r *Resolver) Snapshot(epoch string) (map[int]model.ResolvedRoute, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		return nil, false
	}
	out := make(map[int]model.ResolvedRoute, len(r.routes))
	for k, v := range r.routes {
		out[k] = v
	}
	return out, true
}

// Epoch reports the id of the optimization result currently being resolved.
func (r *Resolver) Epoch() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}
