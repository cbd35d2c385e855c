package pay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"modpackBack/internal/explore/fsm"
)

// SessionCreator creates Stripe checkout sessions.
type SessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway creates Stripe Checkout sessions.
type StripeGateway struct {
	successURL    string
	cancelURL     string
	webhookSecret string
	create        SessionCreator
}

// NewStripeGateway configures the global Stripe key and returns a gateway.
func NewStripeGateway(apiKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	stripe.Key = strings.TrimSpace(apiKey)
	return &StripeGateway{
		successURL:    successURL,
		cancelURL:     cancelURL,
		webhookSecret: webhookSecret,
		create:        stripesession.New,
	}
}

// WithSessionCreator replaces the Stripe API call, used in tests.
func (g *StripeGateway) WithSessionCreator(create SessionCreator) *StripeGateway {
	g.create = create
	return g
}

func (g *StripeGateway) Kind() Kind { return KindStripe }

// CreateCheckout opens a one-off payment session for the modpack.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.PaymentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ModpackName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"payment_id": req.PaymentID,
			"modpack_id": req.ModpackID,
		},
	}
	params.Context = ctx

	session, err := g.create(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("stripe: create session: %w", err)
	}
	if session == nil || session.URL == "" {
		return Checkout{}, errors.New("stripe: session without url")
	}
	return Checkout{GatewayRef: session.ID, ApprovalURL: session.URL}, nil
}

type stripeSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

// ParseWebhook verifies a Stripe webhook and maps it to a payment update.
// ok is false for event types that do not affect payments.
func (g *StripeGateway) ParseWebhook(payload []byte, sigHeader string) (Update, bool, error) {
	if strings.TrimSpace(g.webhookSecret) == "" {
		return Update{}, false, errors.New("stripe: webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Update{}, false, fmt.Errorf("stripe: %w", err)
	}

	var status fsm.Status
	var message string
	switch string(event.Type) {
	case "checkout.session.completed":
		status = fsm.StatusProcessing
	case "checkout.session.async_payment_succeeded":
		status = fsm.StatusCompleted
	case "checkout.session.async_payment_failed":
		status, message = fsm.StatusFailed, "Payment failed"
	case "checkout.session.expired":
		status, message = fsm.StatusFailed, "Checkout expired"
	default:
		return Update{}, false, nil
	}

	var s stripeSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return Update{}, false, fmt.Errorf("stripe: decode checkout.session: %w", err)
	}
	if status == fsm.StatusProcessing && s.PaymentStatus == "paid" {
		status = fsm.StatusCompleted
	}
	id := s.ClientReferenceID
	if id == "" {
		id = s.Metadata["payment_id"]
	}
	return Update{PaymentID: id, GatewayRef: s.ID, Status: status, Message: message}, true, nil
}
