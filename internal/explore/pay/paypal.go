package pay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"modpackBack/internal/explore/fsm"
)

// PayPalConfig holds REST credentials for PayPal.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
}

// PayPalGateway creates PayPal orders and processes their webhooks.
type PayPalGateway struct {
	cfg        PayPalConfig
	httpClient *http.Client
}

// NewPayPalGateway returns a gateway whose HTTP client fetches and caches
// client-credentials tokens.
func NewPayPalGateway(ctx context.Context, cfg PayPalConfig) *PayPalGateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/v1/oauth2/token",
	}
	return &PayPalGateway{cfg: cfg, httpClient: cc.Client(ctx)}
}

func (g *PayPalGateway) Kind() Kind { return KindPayPal }

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrder struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

// CreateCheckout creates a CAPTURE order and returns its approval link.
func (g *PayPalGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.ModpackID,
			"custom_id":    req.PaymentID,
			"description":  req.ModpackName,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         FormatAmount(req.AmountCents),
			},
		}},
		"application_context": map[string]string{
			"return_url":  g.cfg.ReturnURL,
			"cancel_url":  g.cfg.CancelURL,
			"user_action": "PAY_NOW",
		},
	}
	var order paypalOrder
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return Checkout{}, err
	}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return Checkout{GatewayRef: order.ID, ApprovalURL: l.Href}, nil
		}
	}
	return Checkout{}, fmt.Errorf("paypal: order %s has no approval link", order.ID)
}

// CaptureOrder captures an approved order and maps the result to a payment status.
func (g *PayPalGateway) CaptureOrder(ctx context.Context, orderID string) (fsm.Status, error) {
	var order paypalOrder
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{}, &order); err != nil {
		return "", err
	}
	return paypalStatus(order.Status), nil
}

func paypalStatus(s string) fsm.Status {
	switch strings.ToUpper(s) {
	case "COMPLETED":
		return fsm.StatusCompleted
	case "DECLINED", "DENIED", "VOIDED", "FAILED":
		return fsm.StatusFailed
	case "APPROVED", "PENDING", "SAVED":
		return fsm.StatusProcessing
	}
	return fsm.StatusPending
}

// VerifyWebhook asks PayPal to validate the transmission headers of a webhook.
func (g *PayPalGateway) VerifyWebhook(ctx context.Context, h http.Header, body []byte) (bool, error) {
	payload := map[string]interface{}{
		"auth_algo":         h.Get("Paypal-Auth-Algo"),
		"cert_url":          h.Get("Paypal-Cert-Url"),
		"transmission_id":   h.Get("Paypal-Transmission-Id"),
		"transmission_sig":  h.Get("Paypal-Transmission-Sig"),
		"transmission_time": h.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}
	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &resp); err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// PayPalEvent is the subset of a webhook event used for payment updates.
type PayPalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

// ParseWebhook decodes a PayPal webhook. needsCapture is set for approved
// orders that the caller must capture before the payment completes.
func (g *PayPalGateway) ParseWebhook(body []byte) (u Update, needsCapture, ok bool, err error) {
	var ev PayPalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Update{}, false, false, fmt.Errorf("paypal: decode event: %w", err)
	}
	paymentID := ev.Resource.CustomID
	if paymentID == "" && len(ev.Resource.PurchaseUnits) > 0 {
		paymentID = ev.Resource.PurchaseUnits[0].CustomID
	}
	orderID := ev.Resource.SupplementaryData.RelatedIDs.OrderID

	switch ev.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		return Update{PaymentID: paymentID, GatewayRef: ev.Resource.ID, Status: fsm.StatusProcessing, Message: "Processing payment"}, true, true, nil
	case "PAYMENT.CAPTURE.COMPLETED":
		return Update{PaymentID: paymentID, GatewayRef: orderID, Status: fsm.StatusCompleted}, false, true, nil
	case "PAYMENT.CAPTURE.PENDING":
		return Update{PaymentID: paymentID, GatewayRef: orderID, Status: fsm.StatusProcessing, Message: "Payment is pending review"}, false, true, nil
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		return Update{PaymentID: paymentID, GatewayRef: orderID, Status: fsm.StatusFailed, Message: "Payment was declined"}, false, true, nil
	case "CHECKOUT.ORDER.VOIDED":
		return Update{PaymentID: paymentID, GatewayRef: ev.Resource.ID, Status: fsm.StatusFailed, Message: "Order was cancelled"}, false, true, nil
	}
	return Update{}, false, false, nil
}

func (g *PayPalGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Gateway: KindPayPal, Code: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
