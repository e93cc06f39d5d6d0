package handler

import (
	"net/http"

	"go.uber.org/zap"

	"majorcompass/internal/catalog"
	"majorcompass/internal/logger"
	"majorcompass/internal/service"
)

// DashboardHandler serves the admin dashboard aggregate
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats handles GET /v1/admin/dashboard
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		logger.Log.Error("dashboard aggregation failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CatalogHandler serves static catalog content
type CatalogHandler struct {
	cat *catalog.Catalog
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{cat: cat}
}

// Clusters handles GET /v1/catalog/clusters
func (h *CatalogHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": h.cat.Clusters,
	})
}
