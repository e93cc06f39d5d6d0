package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"majorcompass/internal/logger"
	"majorcompass/internal/model"
	"majorcompass/internal/service"
)

const defaultListLimit = 50

// ResultHandler handles result lookup endpoints
type ResultHandler struct {
	results *service.ResultService
	listMax int
}

// NewResultHandler creates a new result handler
func NewResultHandler(results *service.ResultService, listMax int) *ResultHandler {
	return &ResultHandler{results: results, listMax: listMax}
}

// publicRecord strips personal data from a record served by code
func publicRecord(rec *model.ResultRecord) *model.ResultRecord {
	out := *rec
	out.Identity = nil
	out.StudentID = ""
	out.Device = model.DeviceInfo{}
	return &out
}

// GetByCode handles GET /v1/results/{code}
func (h *ResultHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	rec, err := h.results.GetByCode(r.Context(), mux.Vars(r)["code"])
	if errors.Is(err, service.ErrInvalidCode) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logger.Log.Error("result lookup failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	writeJSON(w, http.StatusOK, publicRecord(rec))
}

// List handles GET /v1/admin/results
func (h *ResultHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if h.listMax > 0 && limit > h.listMax {
		limit = h.listMax
	}

	records, err := h.results.List(r.Context(), limit)
	if err != nil {
		logger.Log.Error("result list failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": records,
		"count":   len(records),
	})
}

// GetByStudentID handles GET /v1/admin/results/student/{studentId}
func (h *ResultHandler) GetByStudentID(w http.ResponseWriter, r *http.Request) {
	rec, err := h.results.GetByStudentID(r.Context(), mux.Vars(r)["studentId"])
	if errors.Is(err, service.ErrInvalidStudentID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logger.Log.Error("student lookup failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "result store unavailable")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
