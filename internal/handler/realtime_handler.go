package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/middleware"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type realtimeServer interface {
	Serve(w http.ResponseWriter, r *http.Request, who realtime.Identity, opts realtime.Options) error
}

type originPolicy interface {
	Allows(origin string) bool
}

// RealtimeHandler upgrades authenticated requests to websocket connections.
type RealtimeHandler struct {
	hub       realtimeServer
	validator middleware.TokenValidator
	opts      realtime.Options
	logger    *zap.Logger
}

// NewRealtimeHandler constructs the handler.
func NewRealtimeHandler(hub realtimeServer, validator middleware.TokenValidator, origins originPolicy, opts realtime.Options, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if origins != nil {
		opts.CheckOrigin = func(r *http.Request) bool { return origins.Allows(r.Header.Get("Origin")) }
	}
	return &RealtimeHandler{hub: hub, validator: validator, opts: opts, logger: logger}
}

// Connect godoc
// @Summary Open realtime connection
// @Description Browsers cannot set headers on websocket upgrades, so the access token travels in the query string.
// @Tags Realtime
// @Param token query string true "Access token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("bearer "):])
		}
	}
	if token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetClaims(c, claims)

	who := realtime.Identity{UserID: claims.UserID, Role: string(claims.Role), Name: claims.FullName}
	if err := h.hub.Serve(c.Writer, c.Request, who, h.opts); err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
	}
}
