package explore

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	defaultPaymentExpiry     = 30 * time.Minute
	defaultExpiryTick        = time.Minute
	defaultPaymentsChannel   = "explore:payments"
	defaultCheckoutReturnURL = "https://modpacks.example/checkout/return"
)

// ExploreConfig holds runtime configuration for the explore module.
type ExploreConfig struct {
	PaymentExpiry   time.Duration
	ExpiryTick      time.Duration
	PaymentsChannel string

	StripeAPIKey        string
	StripeWebhookSecret string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string
	PayPalWebhookID    string

	MercadoPagoAccessToken     string
	MercadoPagoWebhookSecret   string
	MercadoPagoBaseURL         string
	MercadoPagoNotificationURL string

	CheckoutReturnURL string
	CheckoutCancelURL string

	TwitchClientID     string
	TwitchClientSecret string
}

// StripeEnabled reports whether Stripe credentials are present.
func (c ExploreConfig) StripeEnabled() bool { return c.StripeAPIKey != "" }

// PayPalEnabled reports whether PayPal credentials are present.
func (c ExploreConfig) PayPalEnabled() bool { return c.PayPalClientID != "" }

// MercadoPagoEnabled reports whether MercadoPago credentials are present.
func (c ExploreConfig) MercadoPagoEnabled() bool { return c.MercadoPagoAccessToken != "" }

// TwitchEnabled reports whether the Twitch integration is configured.
func (c ExploreConfig) TwitchEnabled() bool { return c.TwitchClientID != "" }

// LoadExploreConfig reads configuration from environment variables and applies defaults.
func LoadExploreConfig() (ExploreConfig, error) {
	cfg := ExploreConfig{
		PaymentExpiry:   defaultPaymentExpiry,
		ExpiryTick:      defaultExpiryTick,
		PaymentsChannel: defaultPaymentsChannel,
	}

	if v, err := readIntEnv("PAYMENT_EXPIRY_MINUTES"); err != nil {
		return ExploreConfig{}, fmt.Errorf("parse PAYMENT_EXPIRY_MINUTES: %w", err)
	} else if v != nil {
		cfg.PaymentExpiry = time.Duration(*v) * time.Minute
	}

	if v, err := readIntEnv("PAYMENT_EXPIRY_TICK_SECONDS"); err != nil {
		return ExploreConfig{}, fmt.Errorf("parse PAYMENT_EXPIRY_TICK_SECONDS: %w", err)
	} else if v != nil {
		cfg.ExpiryTick = time.Duration(*v) * time.Second
	}

	if v := os.Getenv("PAYMENT_EVENTS_CHANNEL"); v != "" {
		cfg.PaymentsChannel = v
	}

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")

	cfg.PayPalClientID = os.Getenv("PAYPAL_CLIENT_ID")
	cfg.PayPalClientSecret = os.Getenv("PAYPAL_CLIENT_SECRET")
	cfg.PayPalBaseURL = os.Getenv("PAYPAL_BASE_URL")
	cfg.PayPalWebhookID = os.Getenv("PAYPAL_WEBHOOK_ID")

	cfg.MercadoPagoAccessToken = os.Getenv("MERCADOPAGO_ACCESS_TOKEN")
	cfg.MercadoPagoWebhookSecret = os.Getenv("MERCADOPAGO_WEBHOOK_SECRET")
	cfg.MercadoPagoBaseURL = os.Getenv("MERCADOPAGO_BASE_URL")
	cfg.MercadoPagoNotificationURL = os.Getenv("MERCADOPAGO_NOTIFICATION_URL")

	cfg.CheckoutReturnURL = os.Getenv("CHECKOUT_RETURN_URL")
	if cfg.CheckoutReturnURL == "" {
		cfg.CheckoutReturnURL = defaultCheckoutReturnURL
	}
	cfg.CheckoutCancelURL = os.Getenv("CHECKOUT_CANCEL_URL")
	if cfg.CheckoutCancelURL == "" {
		cfg.CheckoutCancelURL = cfg.CheckoutReturnURL
	}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	if err := cfg.validate(); err != nil {
		return ExploreConfig{}, err
	}
	return cfg, nil
}

func (c ExploreConfig) validate() error {
	if c.PaymentExpiry <= 0 || c.ExpiryTick <= 0 {
		return fmt.Errorf("payment expiry values must be positive")
	}
	if c.StripeEnabled() && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE configuration incomplete")
	}
	if c.PayPalEnabled() && (c.PayPalClientSecret == "" || c.PayPalWebhookID == "") {
		return fmt.Errorf("PAYPAL configuration incomplete")
	}
	if c.MercadoPagoEnabled() && c.MercadoPagoWebhookSecret == "" {
		return fmt.Errorf("MERCADOPAGO configuration incomplete")
	}
	if !c.StripeEnabled() && !c.PayPalEnabled() && !c.MercadoPagoEnabled() {
		return fmt.Errorf("at least one payment gateway must be configured")
	}
	if c.TwitchEnabled() && c.TwitchClientSecret == "" {
		return fmt.Errorf("TWITCH configuration incomplete")
	}
	return nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
