package api

import (
	"encoding/json"
	"net/http"
	"time"

	"ecomap/internal/buildinfo"
)

// DebugJSON exposes build and effective-config info for operators. Secrets are
// reported as presence flags only.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":              s.Cfg.Port,
			"OSRM_BASE_URL":     s.Cfg.Routing.BaseURL,
			"OSRM_PROFILE":      s.Cfg.Routing.Profile,
			"OSRM_TIMEOUT":      s.Cfg.Routing.Timeout.String(),
			"MAP_DEFAULT_ZOOM":  s.Cfg.Map.DefaultZoom,
			"COVERAGE_RADIUS_M": s.Cfg.Map.CoverageRadiusM,
			"PALETTE_SIZE":      len(s.Cfg.Map.Palette),
			"HAS_DATABASE_URL":  s.Cfg.DatabaseURL != "",
			"HAS_REDIS_URL":     s.Cfg.RedisURL != "",
		},
		"resolver": map[string]any{
			"epoch": s.Resolver.Epoch(),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
