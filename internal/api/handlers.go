package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/richgang/indice-killer/internal/engine"
	"github.com/richgang/indice-killer/internal/history"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/session"
	"github.com/richgang/indice-killer/internal/wsgateway"
	"github.com/richgang/indice-killer/pkg/logger"
)

const (
	apiName    = "Richgang FX Indice Killer API"
	apiVersion = "1.0.0"
)

// Handler serves the REST endpoints under /api
type Handler struct {
	service  *engine.Service
	calendar *session.Calendar
	history  *history.Builder
}

// NewHandler creates the REST handler
func NewHandler(service *engine.Service, calendar *session.Calendar, history *history.Builder) *Handler {
	return &Handler{
		service:  service,
		calendar: calendar,
		history:  history,
	}
}

// RegisterRoutes mounts the /api routes on router. Every route requires a
// valid token when auth is enabled; mutating routes require the owner role.
func (h *Handler) RegisterRoutes(router *mux.Router, auth *wsgateway.AuthManager) {
	api := router.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(AuthMiddleware(auth)))

	api.HandleFunc("/", h.Root).Methods("GET")
	api.HandleFunc("/auth/verify", h.VerifyToken).Methods("POST")

	api.HandleFunc("/market", h.ListMarkets).Methods("GET")
	api.HandleFunc("/market/{symbol}", h.GetMarket).Methods("GET")

	api.HandleFunc("/signals", h.ListSignals).Methods("GET")
	api.HandleFunc("/signals/pending", h.ListPendingSignals).Methods("GET")
	api.HandleFunc("/signals/generate", RequireOwner(h.GenerateSignal)).Methods("POST")

	api.HandleFunc("/direction", h.GetDirection).Methods("GET")
	api.HandleFunc("/direction/reset", RequireOwner(h.ResetDirection)).Methods("POST")

	api.HandleFunc("/sessions", h.GetSessions).Methods("GET")
	api.HandleFunc("/history/{symbol}", h.GetHistory).Methods("GET")
}

// Root handles GET /api/
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": apiName,
		"version": apiVersion,
	})
}

// VerifyToken handles POST /api/auth/verify
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"valid": true,
		"role":  claims.Role,
		"name":  claims.Name,
	})
}

// GetMarket handles GET /api/market/{symbol}
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolVar(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.service.Quote(r.Context(), symbol))
}

// ListMarkets handles GET /api/market
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.MarketSnapshot(r.Context()))
}

// ListSignals handles GET /api/signals
func (h *Handler) ListSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.service.ActiveSignals(r.Context())
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to list signals", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(signals))
}

// ListPendingSignals handles GET /api/signals/pending
func (h *Handler) ListPendingSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.service.PendingSignals(r.Context())
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to list pending signals", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}
	respondWithJSON(w, http.StatusOK, nonNil(signals))
}

// GenerateSignal handles POST /api/signals/generate?symbol=&direction=
func (h *Handler) GenerateSignal(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		symbol = models.SymbolUS30
	}
	if !models.IsSupportedSymbol(symbol) {
		respondWithError(w, http.StatusBadRequest, "Invalid symbol")
		return
	}

	force, err := models.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid direction")
		return
	}

	sig, decline, err := h.service.GenerateSignal(r.Context(), symbol, force)
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to generate signal",
			logger.String("symbol", symbol),
			logger.ErrorField(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Failed to store signal")
		return
	}
	if sig == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"message": "No valid signal at this time",
			"reason":  string(decline),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, sig)
}

// GetDirection handles GET /api/direction
func (h *Handler) GetDirection(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.Direction(r.Context()))
}

// ResetDirection handles POST /api/direction/reset
func (h *Handler) ResetDirection(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.ResetDirection(r.Context())
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to reset direction", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to store direction state")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"direction": state.CurrentDirection,
	})
}

// GetSessions handles GET /api/sessions
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.calendar.SessionStatus(h.calendar.Now()))
}

// GetHistory handles GET /api/history/{symbol}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolVar(w, r)
	if !ok {
		return
	}
	quote := h.service.Quote(r.Context(), symbol)
	respondWithJSON(w, http.StatusOK, h.history.Build(quote.Price))
}

// Helper functions

func symbolVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := mux.Vars(r)["symbol"]
	if !models.IsSupportedSymbol(symbol) {
		respondWithError(w, http.StatusBadRequest, "Invalid symbol")
		return "", false
	}
	return symbol, true
}

func nonNil(signals []*models.Signal) []*models.Signal {
	if signals == nil {
		return []*models.Signal{}
	}
	return signals
}
