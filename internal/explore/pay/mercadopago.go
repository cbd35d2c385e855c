package pay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"modpackBack/internal/explore/fsm"
)

// MercadoPagoConfig holds the Checkout Pro credentials.
type MercadoPagoConfig struct {
	AccessToken     string
	WebhookSecret   string
	BaseURL         string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
}

// MercadoPagoGateway creates checkout preferences. The init point doubles as
// the QR payload shown in the launcher.
type MercadoPagoGateway struct {
	cfg        MercadoPagoConfig
	httpClient *http.Client
}

// NewMercadoPagoGateway returns a gateway authenticated with the static access token.
func NewMercadoPagoGateway(ctx context.Context, cfg MercadoPagoConfig) *MercadoPagoGateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mercadopago.com"
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	return &MercadoPagoGateway{cfg: cfg, httpClient: oauth2.NewClient(ctx, ts)}
}

func (g *MercadoPagoGateway) Kind() Kind { return KindMercadoPago }

// CreateCheckout creates a preference referencing the payment id.
func (g *MercadoPagoGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	payload := map[string]interface{}{
		"items": []map[string]interface{}{{
			"id":          req.ModpackID,
			"title":       req.ModpackName,
			"quantity":    1,
			"currency_id": strings.ToUpper(req.Currency),
			"unit_price":  json.Number(FormatAmount(req.AmountCents)),
		}},
		"external_reference": req.PaymentID,
		"notification_url":   g.cfg.NotificationURL,
		"back_urls": map[string]string{
			"success": g.cfg.SuccessURL,
			"failure": g.cfg.FailureURL,
			"pending": g.cfg.SuccessURL,
		},
	}
	var pref struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := g.do(ctx, http.MethodPost, "/checkout/preferences", payload, &pref); err != nil {
		return Checkout{}, err
	}
	if pref.InitPoint == "" {
		return Checkout{}, fmt.Errorf("mercadopago: preference %s has no init point", pref.ID)
	}
	return Checkout{GatewayRef: pref.ID, ApprovalURL: pref.InitPoint, QRPayload: pref.InitPoint}, nil
}

// MercadoPagoPayment is the subset of a payment resource used for updates.
type MercadoPagoPayment struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
}

// GetPayment fetches a payment by its MercadoPago id.
func (g *MercadoPagoGateway) GetPayment(ctx context.Context, id string) (MercadoPagoPayment, error) {
	var p MercadoPagoPayment
	err := g.do(ctx, http.MethodGet, "/v1/payments/"+id, nil, &p)
	return p, err
}

// Update maps a fetched payment to a payment update.
func (p MercadoPagoPayment) Update() Update {
	u := Update{PaymentID: p.ExternalReference, Status: mercadoPagoStatus(p.Status)}
	switch u.Status {
	case fsm.StatusFailed:
		u.Message = "Payment was rejected"
		if p.StatusDetail != "" {
			u.Message += " (" + p.StatusDetail + ")"
		}
	case fsm.StatusProcessing:
		u.Message = "Processing payment"
	}
	return u
}

func mercadoPagoStatus(s string) fsm.Status {
	switch s {
	case "approved":
		return fsm.StatusCompleted
	case "in_process", "authorized", "in_mediation":
		return fsm.StatusProcessing
	case "rejected", "cancelled", "refunded", "charged_back":
		return fsm.StatusFailed
	}
	return fsm.StatusPending
}

// VerifySignature checks the x-signature header ("ts=...,v1=...") against the
// manifest built from the notification's data id and request id.
func (g *MercadoPagoGateway) VerifySignature(xSignature, xRequestID, dataID string) bool {
	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return false
	}
	manifest := mercadoPagoManifest(strings.ToLower(dataID), xRequestID, ts)
	return VerifyHMAC([]byte(manifest), v1, g.cfg.WebhookSecret)
}

func mercadoPagoManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + dataID + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func (g *MercadoPagoGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Gateway: KindMercadoPago, Code: resp.StatusCode, Body: string(msg)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
