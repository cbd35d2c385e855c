package pay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modpackBack/internal/explore/fsm"
)

// Kind names a payment gateway.
type Kind string

const (
	KindStripe      Kind = "stripe"
	KindPayPal      Kind = "paypal"
	KindMercadoPago Kind = "mercadopago"
)

// ParseKind normalises a client supplied gateway name.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindStripe:
		return KindStripe, true
	case KindPayPal:
		return KindPayPal, true
	case KindMercadoPago, "mercado_pago":
		return KindMercadoPago, true
	}
	return "", false
}

// ErrGatewayUnavailable is returned when no configured gateway can serve a request.
var ErrGatewayUnavailable = errors.New("pay: gateway unavailable")

// CheckoutRequest describes the purchase a gateway should collect.
type CheckoutRequest struct {
	PaymentID   string
	UserID      int64
	ModpackID   string
	ModpackName string
	AmountCents int64
	Currency    string
	CountryCode string
}

// Checkout is what the customer needs to complete a payment.
type Checkout struct {
	GatewayRef  string
	ApprovalURL string
	QRPayload   string
}

// Update is a gateway-reported change of a payment.
type Update struct {
	PaymentID  string
	GatewayRef string
	Status     fsm.Status
	Message    string
}

// Gateway creates hosted checkouts.
type Gateway interface {
	Kind() Kind
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
}

// StatusError reports a non-2xx gateway response.
type StatusError struct {
	Gateway Kind
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Gateway, e.Code, e.Body)
}

// FormatAmount renders minor units as a decimal string, e.g. 500 -> "5.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

var latinAmerica = map[string]struct{}{
	"AR": {}, "BO": {}, "BR": {}, "CL": {}, "CO": {}, "CR": {}, "EC": {}, "GT": {},
	"HN": {}, "MX": {}, "NI": {}, "PA": {}, "PE": {}, "PY": {}, "SV": {}, "UY": {}, "VE": {},
}

// Registry resolves gateways by kind or by buyer country.
type Registry struct {
	gateways map[Kind]Gateway
}

// NewRegistry builds a registry from the configured gateways. Nil entries are skipped.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[Kind]Gateway)}
	for _, g := range gateways {
		if g == nil {
			continue
		}
		r.gateways[g.Kind()] = g
	}
	return r
}

// Get returns the gateway of the given kind.
func (r *Registry) Get(kind Kind) (Gateway, bool) {
	g, ok := r.gateways[kind]
	return g, ok
}

// Resolve picks the gateway for a purchase. An explicit kind wins; otherwise
// Latin-American buyers use MercadoPago and everyone else PayPal, falling back
// to Stripe.
func (r *Registry) Resolve(kind, countryCode string) (Gateway, error) {
	if strings.TrimSpace(kind) != "" {
		k, ok := ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("%w: unknown gateway %q", ErrGatewayUnavailable, kind)
		}
		g, ok := r.gateways[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not configured", ErrGatewayUnavailable, k)
		}
		return g, nil
	}
	order := []Kind{KindPayPal, KindStripe, KindMercadoPago}
	if _, latam := latinAmerica[strings.ToUpper(strings.TrimSpace(countryCode))]; latam {
		order = []Kind{KindMercadoPago, KindPayPal, KindStripe}
	}
	for _, k := range order {
		if g, ok := r.gateways[k]; ok {
			return g, nil
		}
	}
	return nil, ErrGatewayUnavailable
}
