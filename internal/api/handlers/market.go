package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/phwatch/internal/contracts"
	"github.com/wonny/phwatch/internal/dashboard"
	"github.com/wonny/phwatch/pkg/logger"
)

// MarketHandler serves the dashboard views
// ⭐ SSOT: market API handlers live in this struct only
type MarketHandler struct {
	service *dashboard.Service
	logger  *logger.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(service *dashboard.Service, log *logger.Logger) *MarketHandler {
	return &MarketHandler{
		service: service,
		logger:  log,
	}
}

// GetOverview returns the latest signal of every active contract
// GET /api/overview
func (h *MarketHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Overview(r.Context()))
}

// GetContract returns the signal history and KPIs of one contract
// GET /api/contracts/{code}
func (h *MarketHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	respondJSON(w, http.StatusOK, h.service.ContractDetail(r.Context(), code))
}

// GetHistory returns the price series with the aligned trade-signal overlay
// GET /api/contracts/{code}/history
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	respondJSON(w, http.StatusOK, h.service.History(r.Context(), code))
}

// GetSnapshot returns point-in-time metrics of one snapshot
// GET /api/contracts/{code}/snapshot?minute=2025-11-21T14:05:00+03:00
func (h *MarketHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var minute time.Time
	if raw := r.URL.Query().Get("minute"); raw != "" {
		parsed, err := contracts.ParseTimestamp(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'minute' (expected RFC3339)")
			return
		}
		minute = parsed
	}

	metrics, err := h.service.SnapshotMetrics(r.Context(), code, minute)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.WithContract(code).WithError(err).Error("Failed to build snapshot metrics")
		respondError(w, http.StatusInternalServerError, "Failed to build snapshot metrics")
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// GetTimeline returns recent OPEN_LONG/OPEN_SHORT signals.
// limit is capped at TIMELINE_LIMIT.
// GET /api/timeline?limit=500
func (h *MarketHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected a positive integer)")
			return
		}
		limit = n
	}

	respondJSON(w, http.StatusOK, h.service.Timeline(r.Context(), limit))
}

// GetStructure returns the date → contracts navigation index
// GET /api/structure?refresh=true
func (h *MarketHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		respondJSON(w, http.StatusOK, h.service.RefreshStructure(r.Context()))
		return
	}
	respondJSON(w, http.StatusOK, h.service.Structure(r.Context()))
}

// GetStatus returns backend connectivity
// GET /api/status
func (h *MarketHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": status.Healthy(),
		"status":  status,
	})
}
