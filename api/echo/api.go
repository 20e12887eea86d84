package echo

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	bridge "github.com/appboost/bridge"
	"github.com/appboost/bridge/domain"
	apperrors "github.com/appboost/bridge/errors"
	"github.com/appboost/bridge/internal/mailer"
	"github.com/appboost/bridge/middleware"
)

// BridgeAPI struct to hold dependencies.
type BridgeAPI struct {
	exchange *bridge.ExchangeService
	webhooks *bridge.WebhookService
	mail     mailer.Mailer
}

// NewBridgeAPI initializes the HTTP API.
func NewBridgeAPI(
	exchange *bridge.ExchangeService,
	webhooks *bridge.WebhookService,
	mail mailer.Mailer,
) *BridgeAPI {
	return &BridgeAPI{
		exchange: exchange,
		webhooks: webhooks,
		mail:     mail,
	}
}

// RegisterRoutes registers the auth and billing routes.
func (ba *BridgeAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/token/exchange", ba.TokenExchangeHandler)
	e.POST("/auth/token/refresh", ba.TokenRefreshHandler)
	e.GET("/auth/session", ba.SessionHandler, middleware.RequireSession(ba.exchange))

	e.POST("/billing/webhook", ba.WebhookHandler)
	e.POST("/billing/email", ba.PaymentEmailHandler, middleware.RequireSession(ba.exchange))

	e.GET("/healthz", ba.HealthHandler)
}

// TokenExchangeRequest is the body of a token exchange call.
type TokenExchangeRequest struct {
	AccessToken string              `json:"access_token"`
	ProfileData *domain.ProfileData `json:"profile_data,omitempty"`
}

// TokenRefreshRequest is the body of a refresh call.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenExchangeHandler swaps a parent platform token for a local session.
// The request body carries the parent access token plus optional profile
// hints used when the user is seen for the first time.
func (ba *BridgeAPI) TokenExchangeHandler(c echo.Context) error {
	var req TokenExchangeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apperrors.NewValidation("invalid request body"))
	}

	session, err := ba.exchange.Exchange(c.Request().Context(), req.AccessToken, req.ProfileData)
	if err != nil {
		return writeError(c, err, "Token exchange failed")
	}

	return c.JSON(http.StatusOK, session)
}

// TokenRefreshHandler mints a fresh session from a refresh token.
func (ba *BridgeAPI) TokenRefreshHandler(c echo.Context) error {
	var req TokenRefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apperrors.NewValidation("invalid request body"))
	}

	session, err := ba.exchange.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err, "Token refresh failed")
	}

	return c.JSON(http.StatusOK, session)
}

// SessionHandler returns the profile behind the bearer token.
func (ba *BridgeAPI) SessionHandler(c echo.Context) error {
	profileID := middleware.ProfileID(c)

	profile, err := ba.exchange.GetProfile(c.Request().Context(), profileID)
	if err != nil {
		return writeError(c, err, "Session lookup failed")
	}

	return c.JSON(http.StatusOK, profile)
}

// WebhookHandler receives billing provider webhook deliveries. The raw body
// is needed for signature verification, so the payload is read before any
// JSON decoding happens.
func (ba *BridgeAPI) WebhookHandler(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "Webhook Error: failed to read request body")
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	if err := ba.webhooks.ProcessWebhook(c.Request().Context(), payload, signature); err != nil {
		log.Error().Err(err).Msg("Webhook processing failed")

		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return c.String(appErr.HTTPStatus(), "Webhook Error: "+appErr.Message)
		}
		return c.String(http.StatusInternalServerError, "Webhook Error: "+err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// PaymentEmailRequest is the body of a payment notification email call.
type PaymentEmailRequest struct {
	To          string `json:"to"`
	Name        string `json:"name,omitempty"`
	PlanName    string `json:"planName"`
	AmountCents int64  `json:"amountCents"`
	Type        string `json:"type"`
	InvoiceURL  string `json:"invoiceUrl,omitempty"`
	ReceiptURL  string `json:"receiptUrl,omitempty"`
	PortalURL   string `json:"portalUrl,omitempty"`
}

// PaymentEmailHandler sends a payment notification email on behalf of the
// caller's session.
func (ba *BridgeAPI) PaymentEmailHandler(c echo.Context) error {
	var req PaymentEmailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apperrors.NewValidation("invalid request body"))
	}

	email := &mailer.PaymentEmail{
		To:          req.To,
		Name:        req.Name,
		PlanName:    req.PlanName,
		AmountCents: req.AmountCents,
		Type:        req.Type,
		InvoiceURL:  req.InvoiceURL,
		ReceiptURL:  req.ReceiptURL,
		PortalURL:   req.PortalURL,
	}
	if err := email.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, apperrors.NewValidation(err.Error()))
	}

	id, err := ba.mail.SendPaymentEmail(c.Request().Context(), email)
	if err != nil {
		log.Error().Err(err).Str("type", req.Type).Msg("Failed to send payment email")
		return c.JSON(http.StatusInternalServerError, apperrors.NewUpstream("failed to send email"))
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "id": id})
}

// HealthHandler reports process liveness.
func (ba *BridgeAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// writeError maps service errors onto HTTP responses. Typed errors carry
// their own status; anything else is an opaque 500.
func writeError(c echo.Context, err error, logMsg string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus() >= http.StatusInternalServerError {
			log.Error().Err(err).Msg(logMsg)
		}
		return c.JSON(appErr.HTTPStatus(), appErr)
	}

	log.Error().Err(err).Msg(logMsg)
	return c.JSON(http.StatusInternalServerError, apperrors.NewUpstream("internal server error"))
}
