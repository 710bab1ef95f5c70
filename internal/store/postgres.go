package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"ecomap/internal/model"
)

// PostgresStore backs the API with Postgres via the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// MigrateDir applies every .sql file in dir, in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS ...).
func (s *PostgresStore) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", n, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateDepot(ctx context.Context, in model.DepotInput) (model.Depot, error) {
	d := model.Depot{ID: uuid.NewString(), IsActive: true}
	applyDepotInput(&d, in)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO depots (id, name, lat, lng, capacity_max, is_active) VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.Name, d.Lat, d.Lng, d.CapacityMax, d.IsActive)
	if err != nil {
		return model.Depot{}, err
	}
	return d, nil
}

func (s *PostgresStore) ListDepots(ctx context.Context) ([]model.Depot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, lat, lng, capacity_max, is_active FROM depots ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Depot{}
	for rows.Next() {
		var d model.Depot
		if err := rows.Scan(&d.ID, &d.Name, &d.Lat, &d.Lng, &d.CapacityMax, &d.IsActive); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetDepot(ctx context.Context, id string) (model.Depot, error) {
	var d model.Depot
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, lat, lng, capacity_max, is_active FROM depots WHERE id=$1`, id).
		Scan(&d.ID, &d.Name, &d.Lat, &d.Lng, &d.CapacityMax, &d.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Depot{}, ErrNotFound
	}
	return d, err
}

func (s *PostgresStore) PatchDepot(ctx context.Context, id string, in model.DepotInput) (model.Depot, error) {
	d, err := s.GetDepot(ctx, id)
	if err != nil {
		return model.Depot{}, err
	}
	applyDepotInput(&d, in)
	_, err = s.db.ExecContext(ctx,
		`UPDATE depots SET name=$2, lat=$3, lng=$4, capacity_max=$5, is_active=$6 WHERE id=$1`,
		id, d.Name, d.Lat, d.Lng, d.CapacityMax, d.IsActive)
	if err != nil {
		return model.Depot{}, err
	}
	return d, nil
}

func (s *PostgresStore) DeleteDepot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM depots WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateWastePoint(ctx context.Context, in model.WastePointIn) (model.WastePoint, error) {
	p := model.WastePoint{
		ID:         uuid.NewString(),
		Lat:        in.Lat,
		Lng:        in.Lng,
		Type:       in.Type,
		Status:     model.StatusReported,
		Zone:       in.Zone,
		ReportedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO waste_points (id, lat, lng, type, status, zone, reported_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Lat, p.Lng, p.Type, p.Status, nullIfEmpty(p.Zone), p.ReportedAt)
	if err != nil {
		return model.WastePoint{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListWastePoints(ctx context.Context, status, wasteType, zone string, limit int) ([]model.WastePoint, error) {
	q := `SELECT id, lat, lng, type, status, COALESCE(zone,''), reported_at FROM waste_points WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if wasteType != "" {
		args = append(args, wasteType)
		q += fmt.Sprintf(" AND type=$%d", len(args))
	}
	if zone != "" {
		args = append(args, zone)
		q += fmt.Sprintf(" AND lower(zone)=lower($%d)", len(args))
	}
	q += " ORDER BY reported_at DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WastePoint{}
	for rows.Next() {
		var p model.WastePoint
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lng, &p.Type, &p.Status, &p.Zone, &p.ReportedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetWastePoint(ctx context.Context, id string) (model.WastePoint, error) {
	var p model.WastePoint
	err := s.db.QueryRowContext(ctx,
		`SELECT id, lat, lng, type, status, COALESCE(zone,''), reported_at FROM waste_points WHERE id=$1`, id).
		Scan(&p.ID, &p.Lat, &p.Lng, &p.Type, &p.Status, &p.Zone, &p.ReportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WastePoint{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) UpdateWastePointStatus(ctx context.Context, id, status string) (model.WastePoint, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE waste_points SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return model.WastePoint{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.WastePoint{}, ErrNotFound
	}
	return s.GetWastePoint(ctx, id)
}

func (s *PostgresStore) SaveOptimizationResult(ctx context.Context, res model.OptimizationResult) (model.OptimizationResult, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.ReceivedAt.IsZero() {
		res.ReceivedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return model.OptimizationResult{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO optimization_results (id, depot_used, received_at, payload) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET depot_used=EXCLUDED.depot_used, received_at=EXCLUDED.received_at, payload=EXCLUDED.payload`,
		res.ID, res.DepotUsed, res.ReceivedAt, payload)
	if err != nil {
		return model.OptimizationResult{}, err
	}
	return res, nil
}

func (s *PostgresStore) GetOptimizationResult(ctx context.Context, id string) (model.OptimizationResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM optimization_results WHERE id=$1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OptimizationResult{}, ErrNotFound
	}
	if err != nil {
		return model.OptimizationResult{}, err
	}
	return decodeResult(payload)
}

func (s *PostgresStore) LatestOptimizationResult(ctx context.Context) (model.OptimizationResult, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM optimization_results ORDER BY received_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OptimizationResult{}, ErrNotFound
	}
	if err != nil {
		return model.OptimizationResult{}, err
	}
	return decodeResult(payload)
}

func (s *PostgresStore) ListOptimizationResults(ctx context.Context, limit int) ([]model.OptimizationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM optimization_results ORDER BY received_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OptimizationResult{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		r, err := decodeResult(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{ID: uuid.NewString(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	events, _ := json.Marshal(sub.Events)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		sub.ID, sub.URL, events, sub.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (s *PostgresStore) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, events, secret FROM subscriptions WHERE events @> to_jsonb(ARRAY[$1::text]) OR events @> '["*"]'::jsonb`,
		eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows, true)
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, events, secret FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows, false)
}

func (s *PostgresStore) DeleteSubscription(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`UPDATE webhook_deliveries SET status='in_flight'
		 WHERE id IN (
		   SELECT id FROM webhook_deliveries
		   WHERE status='pending' AND next_attempt_at <= now()
		   ORDER BY next_attempt_at
		   LIMIT $1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, subscription_id, event_type, url, secret, payload, status, attempts`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := s.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, last_error=NULL,
			 response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='pending', attempts=attempts+1, last_error=$2,
		 response_code=$3, latency_ms=$4, next_attempt_at=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs, nextAttemptAt)
	return err
}

func (s *PostgresStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2,
		 response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func scanSubscriptions(rows *sql.Rows, includeSecret bool) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var sub model.Subscription
		var events []byte
		if err := rows.Scan(&sub.ID, &sub.URL, &events, &sub.Secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &sub.Events); err != nil {
			return nil, err
		}
		if !includeSecret {
			sub.Secret = ""
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func decodeResult(payload []byte) (model.OptimizationResult, error) {
	var r model.OptimizationResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return model.OptimizationResult{}, fmt.Errorf("decode optimization result: %w", err)
	}
	return r, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
