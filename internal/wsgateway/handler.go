package wsgateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richgang/indice-killer/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests on /ws and registers them with the hub.
// A token is optional; when one is presented it must be valid.
type Handler struct {
	hub  *Hub
	auth *AuthManager
}

// NewHandler creates the WebSocket endpoint handler
func NewHandler(hub *Hub, auth *AuthManager) *Handler {
	return &Handler{hub: hub, auth: auth}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if limit := h.hub.config.MaxConnections; limit > 0 && h.hub.ConnectionCount() >= limit {
		logger.Warn("Max connections reached, rejecting new connection",
			logger.Int("max_connections", limit),
		)
		http.Error(w, "Max connections reached", http.StatusServiceUnavailable)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			authHeader = "Bearer " + token
		}
	}

	claims := AnonymousClaims
	if tokenString, err := h.auth.ExtractTokenFromHeader(authHeader); err == nil {
		validated, err := h.auth.ValidateToken(tokenString)
		if err != nil {
			logger.Warn("Invalid token, rejecting connection",
				logger.ErrorField(err),
			)
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}
		claims = *validated
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection",
			logger.ErrorField(err),
		)
		return
	}

	connectionID := uuid.New().String()
	h.hub.Register(NewConnection(connectionID, claims.Name, claims.Role, conn))

	logger.Info("WebSocket connection established",
		logger.String("connection_id", connectionID),
		logger.String("user_id", claims.Name),
		logger.String("remote_addr", r.RemoteAddr),
	)
}
