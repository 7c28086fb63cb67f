// Package api exposes the engine's operations over HTTP/JSON: the public
// bidding surface, the read endpoints and the JWT-guarded admin actions.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo"

	"github.com/bidflow/auction-engine/internal/adapters/cache"
	"github.com/bidflow/auction-engine/internal/apperrors"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
	"github.com/bidflow/auction-engine/internal/domain/bids"
	"github.com/bidflow/auction-engine/pkg/auth"
)

// Handler carries the wired services behind the HTTP surface.
type Handler struct {
	registry  *auctions.Service
	ledger    *bids.Service
	viewCache *cache.AuctionViewCache
	validate  *validator.Validate
	logger    *slog.Logger

	jwtSecret          []byte
	adminPassphraseArg string // argon2id hash of the admin passphrase
}

// Config carries the handler's non-service wiring.
type Config struct {
	JWTSecret           []byte
	AdminPassphraseHash string
	Logger              *slog.Logger
}

// NewHandler creates the HTTP handler. viewCache may be nil; reads then
// always hit the database.
func NewHandler(registry *auctions.Service, ledger *bids.Service, viewCache *cache.AuctionViewCache, cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Handler{
		registry:           registry,
		ledger:             ledger,
		viewCache:          viewCache,
		validate:           validator.New(validator.WithRequiredStructEnabled()),
		logger:             logger,
		jwtSecret:          cfg.JWTSecret,
		adminPassphraseArg: cfg.AdminPassphraseHash,
	}
}

// SetupRoutes registers all routes on the echo instance.
func (h *Handler) SetupRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.POST("/auth/token", h.IssueToken)

	api.GET("/auctions", h.ListAuctions)
	api.GET("/auctions/:id", h.GetAuction)
	api.GET("/auctions/:id/bids", h.ListBids)

	api.POST("/auctions/:id/bids", h.PlaceBid)
	api.DELETE("/auctions/:id/auto-bid", h.CancelAutoBid)
	api.PUT("/auctions/:id/watchers", h.Watch)
	api.DELETE("/auctions/:id/watchers", h.Unwatch)

	admin := api.Group("", auth.RequireAdmin(h.jwtSecret))
	admin.POST("/auctions", h.CreateAuction)
	admin.PATCH("/auctions/:id", h.UpdateAuction)
	admin.DELETE("/auctions/:id", h.DeleteAuction)
	admin.POST("/auctions/:id/close", h.CloseAuction)
	admin.POST("/auctions/:id/cancel", h.CancelAuction)
	admin.POST("/auctions/:id/extend", h.ExtendAuction)
	admin.GET("/auctions/:id/watchers", h.ListWatchers)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

type errorResponse struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// respondError maps the error taxonomy onto HTTP statuses. Every rejected
// bid carries its specific code so bidders can decide whether to re-bid.
func (h *Handler) respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindState:
		status = http.StatusUnprocessableEntity
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindConcurrency:
		status = http.StatusServiceUnavailable
	case apperrors.KindUnauthorized:
		status = http.StatusForbidden
	case apperrors.KindUnavailable:
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("unhandled error", "error", err)
		return c.JSON(status, errorResponse{Reason: "internal error"})
	}
	return c.JSON(status, errorResponse{Reason: err.Error(), Code: apperrors.CodeOf(err)})
}

func (h *Handler) bindAndValidate(c echo.Context, input any) error {
	if err := c.Bind(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "input data is not formed correctly")
	}
	if err := h.validate.Struct(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func parseIDParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid auction id")
	}
	return id, nil
}

// invalidate drops the cached view after a successful commit. Cache failures
// only shorten staleness guarantees, never fail the request.
func (h *Handler) invalidate(c echo.Context, id uuid.UUID) {
	if h.viewCache == nil {
		return
	}
	if err := h.viewCache.Invalidate(c.Request().Context(), id); err != nil {
		h.logger.Warn("failed to invalidate auction view", "auction_id", id, "error", err)
	}
}

type issueTokenInput struct {
	Subject    string `json:"subject" validate:"required,max=100"`
	Passphrase string `json:"passphrase" validate:"required"`
}

// IssueToken exchanges the admin passphrase for a short-lived admin JWT.
func (h *Handler) IssueToken(c echo.Context) error {
	var input issueTokenInput
	if err := h.bindAndValidate(c, &input); err != nil {
		return err
	}

	ok, err := auth.VerifyPassphrase(h.adminPassphraseArg, input.Passphrase)
	if err != nil || !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid passphrase")
	}

	token, err := auth.IssueAdminToken(h.jwtSecret, input.Subject, time.Now())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}
