package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"majorcompass/internal/identity"
	"majorcompass/internal/logger"
	"majorcompass/internal/model"
	"majorcompass/internal/service"
	"majorcompass/internal/survey"
)

const maxBodyBytes = 64 << 10

// SessionHandler handles survey session endpoints
type SessionHandler struct {
	sessions   *service.SessionService
	decoder    *identity.Decoder
	proxies    *identity.Proxies
	deviceSalt string
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionService, decoder *identity.Decoder, proxies *identity.Proxies, deviceSalt string) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		decoder:    decoder,
		proxies:    proxies,
		deviceSalt: deviceSalt,
	}
}

// CreateSessionRequest is the optional body of POST /v1/sessions
type CreateSessionRequest struct {
	PrimaryScores *model.RIASECScores `json:"primaryScores,omitempty"`
}

// ActionErrorResponse carries the session state alongside a rejected action
type ActionErrorResponse struct {
	Error   string               `json:"error"`
	Session *service.SessionView `json:"session,omitempty"`
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := h.decoder.FromQuery(r.URL.Query())
	device := identity.DeviceFromRequest(r, h.proxies.ClientIP(r), h.deviceSalt)

	view, err := h.sessions.Create(r.Context(), id, device, req.PrimaryScores)
	if err != nil {
		logger.Log.Error("failed to create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// Get handles GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, sessionErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Action handles POST /v1/sessions/{id}/actions
func (h *SessionHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req service.SessionAction
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.sessions.Apply(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		status := sessionErrorStatus(err)
		if status >= http.StatusInternalServerError && !errors.Is(err, survey.ErrFinalize) {
			logger.Log.Error("session action failed", zap.String("action", req.Action), zap.Error(err))
		}
		writeJSON(w, status, ActionErrorResponse{Error: err.Error(), Session: view})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, service.ErrMissingValue),
		errors.Is(err, model.ErrInvalidAnswer):
		return http.StatusBadRequest
	case errors.Is(err, survey.ErrInvalidAction),
		errors.Is(err, survey.ErrNotAnswered):
		return http.StatusConflict
	case errors.Is(err, survey.ErrFinalize):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
