package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"mpesa-recon/internal/config"
	"mpesa-recon/pkg/logger"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db        *sql.DB
	config    *config.Config
	logger    *logger.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, cfg *config.Config, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		config:    cfg,
		logger:    log,
		startTime: time.Now(),
	}
}

// CheckHealth handles GET /health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "ok"
	if err := h.db.Ping(); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	uptime := time.Since(h.startTime)

	response := map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"gateway": map[string]interface{}{
			"configured": h.config.Gateway.ConsumerKey != "",
			"base_url":   h.config.Gateway.BaseURL,
		},
		"uptime":    uptime.String(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
