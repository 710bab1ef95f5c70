package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecomap/internal/mapview"
	"ecomap/internal/model"
	"ecomap/internal/webhooks"
)

// HealthzHandler reports liveness.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyzHandler reports readiness; the store must answer a list call.
func (s *Server) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListDepots(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// DepotsHandler handles GET/POST /v1/depots.
func (s *Server) DepotsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		depots, err := s.Store.ListDepots(r.Context())
		if err != nil {
			writeStoreErr(w, err, "List depots failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": depots})
	case http.MethodPost:
		if !canWrite(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var in model.DepotInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateDepotInput(in, true); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid depot", err.Error(), r.URL.Path)
			return
		}
		d, err := s.Store.CreateDepot(r.Context(), in)
		if err != nil {
			writeStoreErr(w, err, "Create depot failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DepotByIDHandler handles GET/PATCH/DELETE /v1/depots/{id}.
func (s *Server) DepotByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/depots/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		d, err := s.Store.GetDepot(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err, "Depot not found", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPatch:
		if !canWrite(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var in model.DepotInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateDepotInput(in, false); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid depot", err.Error(), r.URL.Path)
			return
		}
		d, err := s.Store.PatchDepot(r.Context(), id, in)
		if err != nil {
			writeStoreErr(w, err, "Patch depot failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if !s.getPrincipal(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeleteDepot(r.Context(), id); err != nil {
			writeStoreErr(w, err, "Delete depot failed", r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// WastePointsHandler handles GET/POST /v1/waste-points.
func (s *Server) WastePointsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		points, err := s.Store.ListWastePoints(r.Context(), q.Get("status"), q.Get("type"), q.Get("zone"), limit)
		if err != nil {
			writeStoreErr(w, err, "List waste points failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": points})
	case http.MethodPost:
		if !canWrite(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var in model.WastePointIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateWastePointIn(in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid waste point", err.Error(), r.URL.Path)
			return
		}
		p, err := s.Store.CreateWastePoint(r.Context(), in)
		if err != nil {
			writeStoreErr(w, err, "Create waste point failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// WastePointByIDHandler handles GET /v1/waste-points/{id} and
// PATCH /v1/waste-points/{id}/status.
func (s *Server) WastePointByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/waste-points/")
	if rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 1 && parts[1] == "status" {
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !canWrite(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if !model.ValidWasteStatus(body.Status) {
			writeProblem(w, http.StatusBadRequest, "Invalid status", fmt.Sprintf("unknown status %q", body.Status), r.URL.Path)
			return
		}
		p, err := s.Store.UpdateWastePointStatus(r.Context(), id, body.Status)
		if err != nil {
			writeStoreErr(w, err, "Update status failed", r.URL.Path)
			return
		}
		s.Pub.Emit(r.Context(), webhooks.EventWastePointStatus, p)
		s.Broker.Publish(mapTopic, Event{Type: webhooks.EventWastePointStatus, Data: map[string]any{
			"id": p.ID, "status": p.Status,
		}})
		writeJSON(w, http.StatusOK, p)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, err := s.Store.GetWastePoint(r.Context(), id)
	if err != nil {
		writeStoreErr(w, err, "Waste point not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// OptimizationsHandler handles POST/GET /v1/optimizations. POST ingests an
// externally computed result and kicks off geometry resolution for each of
// its routes; the response does not wait for resolution.
func (s *Server) OptimizationsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !canWrite(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var res model.OptimizationResult
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateOptimization(&res); err != nil {
			writeProblem(w, http.StatusUnprocessableEntity, "Invalid optimization result", err.Error(), r.URL.Path)
			return
		}
		saved, err := s.Store.SaveOptimizationResult(r.Context(), res)
		if err != nil {
			writeStoreErr(w, err, "Save optimization result failed", r.URL.Path)
			return
		}
		depots, err := s.Store.ListDepots(r.Context())
		if err != nil {
			writeStoreErr(w, err, "List depots failed", r.URL.Path)
			return
		}
		assignments, warnings := s.Map.Assignments(&saved, depots)

		s.Pub.Emit(r.Context(), webhooks.EventOptimizationReceived, map[string]any{
			"id": saved.ID, "routes": len(saved.Itineraries), "depot": saved.DepotUsed,
		})
		s.Broker.Publish(mapTopic, Event{Type: webhooks.EventOptimizationReceived, Data: map[string]any{
			"id": saved.ID, "routes": len(saved.Itineraries),
		}})

		// Settles arrive after this handler returns; detach from the request context.
		s.Resolver.Begin(saved.ID, assignments, func(rr model.ResolvedRoute) {
			evtType := webhooks.EventRouteResolved
			if rr.Degraded {
				evtType = webhooks.EventRouteDegraded
			}
			data := map[string]any{"epoch": saved.ID, "routeIndex": rr.RouteIndex, "degraded": rr.Degraded}
			s.Broker.Publish(mapTopic, Event{Type: evtType, Data: data})
			s.Pub.Emit(context.Background(), evtType, data)
		})

		writeJSON(w, http.StatusAccepted, map[string]any{
			"result":   saved,
			"warnings": warnings,
		})
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		items, err := s.Store.ListOptimizationResults(r.Context(), limit)
		if err != nil {
			writeStoreErr(w, err, "List optimization results failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OptimizationByIDHandler handles GET /v1/optimizations/{id} and
// GET /v1/optimizations/latest.
func (s *Server) OptimizationByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/optimizations/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	var (
		res model.OptimizationResult
		err error
	)
	if id == "latest" {
		res, err = s.Store.LatestOptimizationResult(r.Context())
	} else {
		res, err = s.Store.GetOptimizationResult(r.Context(), id)
	}
	if err != nil {
		writeStoreErr(w, err, "Optimization result not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MapViewHandler handles GET /v1/map/view: the full render-ready snapshot for
// the latest optimization result, or the base map when none exists.
func (s *Server) MapViewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	depots, err := s.Store.ListDepots(r.Context())
	if err != nil {
		writeStoreErr(w, err, "List depots failed", r.URL.Path)
		return
	}
	points, err := s.Store.ListWastePoints(r.Context(), r.URL.Query().Get("status"), "", "", 0)
	if err != nil {
		writeStoreErr(w, err, "List waste points failed", r.URL.Path)
		return
	}
	var result *model.OptimizationResult
	if id := r.URL.Query().Get("optimizationId"); id != "" {
		res, err := s.Store.GetOptimizationResult(r.Context(), id)
		if err != nil {
			writeStoreErr(w, err, "Optimization result not found", r.URL.Path)
			return
		}
		result = &res
	} else if latest, err := s.Store.LatestOptimizationResult(r.Context()); err == nil {
		result = &latest
	}
	var resolved map[int]model.ResolvedRoute
	if result != nil {
		resolved, _ = s.Resolver.Snapshot(result.ID)
	}
	writeJSON(w, http.StatusOK, s.Map.BuildView(depots, points, result, resolved))
}

// ViewportHandler handles PUT /v1/map/viewport: records a user pan/zoom so
// subsequent view reads of the same optimization epoch keep it.
func (s *Server) ViewportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var vp mapview.Viewport
	if err := json.NewDecoder(r.Body).Decode(&vp); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if !vp.Center.Valid() || vp.Zoom < 1 || vp.Zoom > 22 {
		writeProblem(w, http.StatusBadRequest, "Invalid viewport", "center out of range or bad zoom", r.URL.Path)
		return
	}
	s.Map.SetUserViewport(vp)
	s.Broker.Publish(mapTopic, Event{Type: "view.changed", Data: map[string]any{
		"center": map[string]float64{"lat": vp.Center.Lat, "lng": vp.Center.Lng},
		"zoom":   vp.Zoom,
	}})
	w.WriteHeader(http.StatusNoContent)
}

// MapStreamHandler handles GET /v1/map/events/stream: SSE fan-out of map
// events with periodic heartbeats.
func (s *Server) MapStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(mapTopic)
	defer s.Broker.Unsubscribe(mapTopic, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/webhooks/subscriptions and
// DELETE /v1/webhooks/subscriptions/{id}.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/webhooks/subscriptions")
	rest = strings.TrimPrefix(rest, "/")
	if rest != "" {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.getPrincipal(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeleteSubscription(r.Context(), rest); err != nil {
			writeStoreErr(w, err, "Delete subscription failed", r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !s.getPrincipal(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeStoreErr(w, err, "Create subscription failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		if !s.getPrincipal(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeStoreErr(w, err, "List subscriptions failed", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
