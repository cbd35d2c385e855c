package explorehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"modpackBack/internal/acquisition"
	"modpackBack/internal/explore/access"
	"modpackBack/internal/explore/pay"
	"modpackBack/internal/explore/payments"
)

// Logger is the logging contract used by the handlers.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// AccessService decides and grants access.
type AccessService interface {
	Check(ctx context.Context, modpackID string, userID int64) (access.Decision, error)
	ValidatePassword(ctx context.Context, modpackID string, userID int64, password string) (bool, error)
	AcquireTwitch(ctx context.Context, modpackID string, userID int64) error
}

// PaymentService opens checkouts and applies gateway updates.
type PaymentService interface {
	Purchase(ctx context.Context, userID int64, modpackID, gateway, country string) (payments.Purchase, error)
	Apply(ctx context.Context, gateway pay.Kind, u pay.Update) (bool, error)
}

// WebhookStore keeps raw webhook payloads.
type WebhookStore interface {
	SaveWebhook(ctx context.Context, provider, signature string, payload []byte) error
}

// Gateways groups the webhook capable gateways. Nil members are disabled.
type Gateways struct {
	Stripe      StripeWebhooks
	PayPal      PayPalWebhooks
	MercadoPago MercadoPagoWebhooks
}

// Server handles HTTP endpoints for the explore module.
type Server struct {
	logger   Logger
	access   AccessService
	payments PaymentService
	webhooks WebhookStore
	gateways Gateways
	realtime http.Handler
}

// NewServer constructs Server. realtime serves the payments websocket.
func NewServer(logger Logger, acc AccessService, pays PaymentService, webhooks WebhookStore, gateways Gateways, realtime http.Handler) *Server {
	return &Server{
		logger:   logger,
		access:   acc,
		payments: pays,
		webhooks: webhooks,
		gateways: gateways,
		realtime: realtime,
	}
}

// RegisterRoutes registers the explore routes. optional resolves a user when a
// token is present, authed requires one.
func (s *Server) RegisterRoutes(mux *pat.PatternServeMux, public, optional, authed alice.Chain) {
	mux.Get("/explore/modpacks/:id/check-access", optional.ThenFunc(s.handleCheckAccess))
	mux.Post("/explore/modpacks/:id/validate-password", authed.ThenFunc(s.handleValidatePassword))
	mux.Post("/explore/modpacks/:id/acquire/purchase", authed.ThenFunc(s.handlePurchase))
	mux.Post("/explore/modpacks/:id/acquire/twitch", authed.ThenFunc(s.handleAcquireTwitch))

	mux.Post("/webhooks/stripe", public.ThenFunc(s.handleStripeWebhook))
	mux.Post("/webhooks/paypal", public.ThenFunc(s.handlePayPalWebhook))
	mux.Post("/webhooks/mercadopago", public.ThenFunc(s.handleMercadoPagoWebhook))

	if s.realtime != nil {
		mux.Get("/ws/payments", s.realtime)
	}
}

func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	d, err := s.access.Check(ctx, modpackID(r), userID(r))
	if err != nil {
		s.writeServiceError(w, "check access", err)
		return
	}
	info := d.Info
	writeJSON(w, http.StatusOK, acquisition.AccessResponse{
		CanAccess: d.CanAccess,
		Reason:    d.Reason,
		ModpackAccessInfo: &acquisition.AccessInfo{
			ID:                         info.ID,
			Name:                       info.Name,
			Price:                      info.Price(),
			Currency:                   info.Currency,
			AccessMethod:               info.AccessMethod,
			RequiresPassword:           info.RequiresPassword,
			RequiresTwitchSubscription: info.RequiresTwitchSubscription,
			TwitchChannels:             info.TwitchChannels,
		},
	})
}

func (s *Server) handleValidatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	ok, err := s.access.ValidatePassword(ctx, modpackID(r), userID(r), req.Password)
	if err != nil {
		s.writeServiceError(w, "validate password", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, acquisition.PasswordResponse{Valid: false, Message: "Incorrect password"})
		return
	}
	writeJSON(w, http.StatusOK, acquisition.PasswordResponse{Valid: true})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req acquisition.PurchaseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	id := modpackID(r)
	p, err := s.payments.Purchase(ctx, userID(r), id, req.GatewayType, req.CountryCode)
	if err != nil {
		s.writeServiceError(w, "purchase", err)
		return
	}
	if p.Granted {
		writeJSON(w, http.StatusOK, acquisition.PurchaseResponse{Success: true, IsFree: true})
		return
	}
	writeJSON(w, http.StatusCreated, acquisition.PurchaseResponse{
		Success:     true,
		PaymentID:   p.PaymentID,
		ApprovalURL: p.ApprovalURL,
		QRCode:      p.QRPayload,
		GatewayType: string(p.Gateway),
		Amount:      pay.FormatAmount(p.AmountCents),
		Currency:    p.Currency,
		Status:      string(p.Status),
		Metadata:    map[string]string{"modpackId": id},
	})
}

func (s *Server) handleAcquireTwitch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	err := s.access.AcquireTwitch(ctx, modpackID(r), userID(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, acquisition.TwitchResponse{Success: true})
	case errors.Is(err, access.ErrTwitchNotLinked):
		writeJSON(w, http.StatusOK, acquisition.TwitchResponse{Message: "Link your Twitch account first"})
	case errors.Is(err, access.ErrNotSubscribed):
		writeJSON(w, http.StatusOK, acquisition.TwitchResponse{Message: "You are not subscribed to any of the required channels"})
	default:
		s.writeServiceError(w, "acquire twitch", err)
	}
}
