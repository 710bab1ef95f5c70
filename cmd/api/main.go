package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecomap/internal/api"
	"ecomap/internal/config"
	"ecomap/internal/integrations"
	"ecomap/internal/integrations/csvfeed"
	"ecomap/internal/metrics"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Error("failed to init server", "error", err)
		os.Exit(1)
	}

	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Depots
	mux.HandleFunc("/v1/depots", srv.DepotsHandler)
	mux.HandleFunc("/v1/depots/", srv.DepotByIDHandler)

	// Waste points
	mux.HandleFunc("/v1/waste-points", srv.WastePointsHandler)
	mux.HandleFunc("/v1/waste-points/", srv.WastePointByIDHandler)

	// Optimization results
	mux.HandleFunc("/v1/optimizations", srv.OptimizationsHandler)
	mux.HandleFunc("/v1/optimizations/", srv.OptimizationByIDHandler)

	// Map
	mux.HandleFunc("/v1/map/view", srv.MapViewHandler)
	mux.HandleFunc("/v1/map/viewport", srv.ViewportHandler)
	mux.HandleFunc("/v1/map/events/stream", srv.MapStreamHandler)
	mux.HandleFunc("/v1/map/ws", srv.MapWSHandler)

	// Webhooks
	mux.HandleFunc("/v1/webhooks/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/v1/webhooks/subscriptions/", srv.SubscriptionsHandler)

	// Health, metrics, docs
	mux.HandleFunc("/healthz", srv.HealthzHandler)
	mux.HandleFunc("/readyz", srv.ReadyzHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug", srv.DebugJSON)
	mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
	mux.HandleFunc("/docs", srv.DocsHandler)

	addr := ":" + cfg.Port

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srv.NewWebhookWorker()
	worker.Start()

	if path := os.Getenv("REPORT_FEED_PATH"); path != "" {
		im := integrations.Importer{Create: srv.Store.CreateWastePoint}
		n, skipped, _, err := im.Run(context.Background(), csvfeed.Adapter{Path: path}, "")
		if err != nil {
			log.Warn("report feed import failed", "path", path, "error", err)
		} else {
			log.Info("report feed imported", "path", path, "imported", n, "skipped", skipped)
		}
	}

	log.Info("API listening", "addr", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the middleware wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps the WebSocket upgrade working through the middleware wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return hj.Hijack()
}

func logMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Info("request", "method", r.Method, "path", r.URL.Path, "status", sw.status, "duration", dur.String(), "remote", r.RemoteAddr)
	})
}
