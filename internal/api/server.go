// Package api implements the HTTP surface of the collection-map service.
package api

import (
	"log/slog"
	"os"

	"ecomap/internal/auth"
	"ecomap/internal/config"
	"ecomap/internal/mapview"
	"ecomap/internal/routing"
	"ecomap/internal/store"
	"ecomap/internal/webhooks"
)

// Topic under which all map events are published on the broker.
const mapTopic = "map"

type Server struct {
	Cfg      config.Config
	Store    store.Store
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Resolver *routing.Resolver
	Map      *mapview.Compositor
	Log      *slog.Logger
}

// NewServer wires the store, broker, resolver, and compositor from config.
// With no DATABASE_URL the in-memory store is used; with no REDIS_URL events
// stay in-process.
func NewServer(cfg config.Config) (*Server, error) {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var st store.Store
	if cfg.DatabaseURL == "" {
		st = store.NewMemoryStore()
	} else {
		sp, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Warn("migrations failed", "error", err)
			}
		}
		st = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Warn("redis broker unavailable, using in-memory broker", "error", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	client := routing.NewOSRMClient(cfg.Routing.BaseURL, cfg.Routing.Profile, cfg.Routing.Timeout, cfg.Routing.RateRPS, cfg.Routing.RateBurst)
	return &Server{
		Cfg:      cfg,
		Store:    st,
		Pub:      webhooks.NewPublisher(st),
		Auth:     auth.NewVerifierFromEnv(),
		Broker:   broker,
		Resolver: routing.NewResolver(client, cfg.Routing.Timeout, log),
		Map:      mapview.NewCompositor(cfg.Map, log),
		Log:      log,
	}, nil
}

// NewWebhookWorker creates the background delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
