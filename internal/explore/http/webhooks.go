package explorehttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"modpackBack/internal/explore/fsm"
	"modpackBack/internal/explore/metrics"
	"modpackBack/internal/explore/pay"
	"modpackBack/internal/explore/repo"
)

const webhookBodyLimit = 1 << 20

// StripeWebhooks verifies and decodes Stripe events.
type StripeWebhooks interface {
	ParseWebhook(payload []byte, sigHeader string) (pay.Update, bool, error)
}

// PayPalWebhooks verifies and decodes PayPal events and captures approved orders.
type PayPalWebhooks interface {
	VerifyWebhook(ctx context.Context, h http.Header, body []byte) (bool, error)
	ParseWebhook(body []byte) (pay.Update, bool, bool, error)
	CaptureOrder(ctx context.Context, orderID string) (fsm.Status, error)
}

// MercadoPagoWebhooks verifies notifications and fetches the referenced payment.
type MercadoPagoWebhooks interface {
	VerifySignature(xSignature, xRequestID, dataID string) bool
	GetPayment(ctx context.Context, id string) (pay.MercadoPagoPayment, error)
}

func (s *Server) readWebhook(w http.ResponseWriter, r *http.Request, provider, signature string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if err := s.webhooks.SaveWebhook(r.Context(), provider, signature, body); err != nil {
		s.logger.Errorf("save %s webhook failed: %v", provider, err)
	}
	return body, true
}

func observeWebhook(gateway pay.Kind, start time.Time, status *int) {
	metrics.WebhookRequestsTotal.WithLabelValues(string(gateway), strconv.Itoa(*status)).Inc()
	metrics.WebhookDuration.WithLabelValues(string(gateway)).Observe(time.Since(start).Seconds())
}

// applyUpdate applies a gateway update and returns the HTTP status to answer with.
// Unknown payments are acknowledged so the gateway stops retrying.
func (s *Server) applyUpdate(ctx context.Context, gateway pay.Kind, u pay.Update) (bool, int) {
	applied, err := s.payments.Apply(ctx, gateway, u)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Infof("%s webhook for unknown payment %q (ref %q)", gateway, u.PaymentID, u.GatewayRef)
			return false, http.StatusOK
		}
		s.logger.Errorf("%s webhook apply failed: %v", gateway, err)
		return false, http.StatusInternalServerError
	}
	return applied, http.StatusOK
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	start, status := time.Now(), http.StatusOK
	defer observeWebhook(pay.KindStripe, start, &status)

	if s.gateways.Stripe == nil {
		status = http.StatusServiceUnavailable
		writeError(w, status, "gateway disabled")
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		status = http.StatusBadRequest
		writeError(w, status, "missing Stripe signature")
		return
	}
	body, ok := s.readWebhook(w, r, string(pay.KindStripe), sig)
	if !ok {
		status = http.StatusBadRequest
		return
	}
	u, relevant, err := s.gateways.Stripe.ParseWebhook(body, sig)
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "invalid Stripe signature")
		return
	}
	if relevant {
		_, status = s.applyUpdate(r.Context(), pay.KindStripe, u)
	}
	s.ack(w, status)
}

func (s *Server) handlePayPalWebhook(w http.ResponseWriter, r *http.Request) {
	start, status := time.Now(), http.StatusOK
	defer observeWebhook(pay.KindPayPal, start, &status)

	if s.gateways.PayPal == nil {
		status = http.StatusServiceUnavailable
		writeError(w, status, "gateway disabled")
		return
	}
	body, ok := s.readWebhook(w, r, string(pay.KindPayPal), r.Header.Get("Paypal-Transmission-Sig"))
	if !ok {
		status = http.StatusBadRequest
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	verified, err := s.gateways.PayPal.VerifyWebhook(ctx, r.Header, body)
	if err != nil || !verified {
		if err != nil {
			s.logger.Errorf("paypal webhook verification failed: %v", err)
		}
		status = http.StatusUnauthorized
		writeError(w, status, "invalid signature")
		return
	}
	u, needsCapture, relevant, err := s.gateways.PayPal.ParseWebhook(body)
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "invalid payload")
		return
	}
	applied := false
	if relevant {
		applied, status = s.applyUpdate(ctx, pay.KindPayPal, u)
	}
	// Only the delivery that moved the order to processing captures it.
	if applied && needsCapture {
		captured, err := s.gateways.PayPal.CaptureOrder(ctx, u.GatewayRef)
		if err != nil {
			s.logger.Errorf("paypal capture %s failed: %v", u.GatewayRef, err)
			captured = fsm.StatusFailed
		}
		u.Status, u.Message = captured, ""
		if captured == fsm.StatusFailed {
			u.Message = "Payment could not be captured"
		}
		_, status = s.applyUpdate(ctx, pay.KindPayPal, u)
	}
	s.ack(w, status)
}

type mercadoPagoNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (n mercadoPagoNotification) dataID() string {
	raw := strings.TrimSpace(string(n.Data.ID))
	return strings.Trim(raw, `"`)
}

func (s *Server) handleMercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	start, status := time.Now(), http.StatusOK
	defer observeWebhook(pay.KindMercadoPago, start, &status)

	if s.gateways.MercadoPago == nil {
		status = http.StatusServiceUnavailable
		writeError(w, status, "gateway disabled")
		return
	}
	xSig := r.Header.Get("X-Signature")
	body, ok := s.readWebhook(w, r, string(pay.KindMercadoPago), xSig)
	if !ok {
		status = http.StatusBadRequest
		return
	}

	var n mercadoPagoNotification
	_ = json.Unmarshal(body, &n)
	q := r.URL.Query()
	dataID := q.Get("data.id")
	if dataID == "" {
		dataID = n.dataID()
	}
	kind := q.Get("type")
	if kind == "" {
		kind = n.Type
	}

	if !s.gateways.MercadoPago.VerifySignature(xSig, r.Header.Get("X-Request-Id"), dataID) {
		status = http.StatusUnauthorized
		writeError(w, status, "invalid signature")
		return
	}
	if kind != "payment" || dataID == "" {
		s.ack(w, status)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()
	mp, err := s.gateways.MercadoPago.GetPayment(ctx, dataID)
	if err != nil {
		s.logger.Errorf("mercadopago payment %s lookup failed: %v", dataID, err)
		status = http.StatusBadGateway
		writeError(w, status, "payment lookup failed")
		return
	}
	_, status = s.applyUpdate(ctx, pay.KindMercadoPago, mp.Update())
	s.ack(w, status)
}

func (s *Server) ack(w http.ResponseWriter, status int) {
	if status != http.StatusOK {
		writeError(w, status, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
