package explore

import (
	"context"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"modpackBack/internal/explore/access"
	"modpackBack/internal/explore/events"
	explorehttp "modpackBack/internal/explore/http"
	"modpackBack/internal/explore/pay"
	"modpackBack/internal/explore/payments"
	"modpackBack/internal/explore/repo"
	"modpackBack/internal/explore/twitch"
	"modpackBack/internal/explore/ws"
)

type moduleState struct {
	relay    *events.RedisBus
	payments *payments.Service
	server   *explorehttp.Server
}

func ensureModule(deps *ExploreDeps) (*moduleState, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.module != nil {
		return deps.module, nil
	}
	cfg := deps.Config
	ctx := context.Background()

	conn := repo.NewConn(deps.DB, repo.DialectFor(deps.DBDriver))
	modpacksRepo := repo.NewModpacksRepo(conn)
	purchasesRepo := repo.NewPurchasesRepo(conn)
	paymentsRepo := repo.NewPaymentsRepo(conn)
	accountsRepo := repo.NewAccountsRepo(conn)

	hub := ws.NewPaymentHub(deps.AuthenticateWS, deps.Logger)
	var bus events.Bus = events.NewLocalBus(hub)
	var relay *events.RedisBus
	if deps.RDB != nil {
		relay = events.NewRedisBus(deps.RDB, cfg.PaymentsChannel, hub, deps.Logger)
		bus = relay
	}

	var subs access.SubscriptionChecker
	if cfg.TwitchEnabled() {
		subs = twitch.NewClient(twitch.Config{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}, accountsRepo)
	}
	accessSvc := access.NewService(modpacksRepo, purchasesRepo, accountsRepo, subs)

	var gateways []pay.Gateway
	var webhooks explorehttp.Gateways
	if cfg.StripeEnabled() {
		g := pay.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.CheckoutReturnURL, cfg.CheckoutCancelURL)
		gateways = append(gateways, g)
		webhooks.Stripe = g
	}
	if cfg.PayPalEnabled() {
		g := pay.NewPayPalGateway(ctx, pay.PayPalConfig{
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			BaseURL:      cfg.PayPalBaseURL,
			WebhookID:    cfg.PayPalWebhookID,
			ReturnURL:    cfg.CheckoutReturnURL,
			CancelURL:    cfg.CheckoutCancelURL,
		})
		gateways = append(gateways, g)
		webhooks.PayPal = g
	}
	if cfg.MercadoPagoEnabled() {
		g := pay.NewMercadoPagoGateway(ctx, pay.MercadoPagoConfig{
			AccessToken:     cfg.MercadoPagoAccessToken,
			WebhookSecret:   cfg.MercadoPagoWebhookSecret,
			BaseURL:         cfg.MercadoPagoBaseURL,
			NotificationURL: cfg.MercadoPagoNotificationURL,
			SuccessURL:      cfg.CheckoutReturnURL,
			FailureURL:      cfg.CheckoutCancelURL,
		})
		gateways = append(gateways, g)
		webhooks.MercadoPago = g
	}

	paymentsSvc := payments.NewService(paymentsRepo, modpacksRepo, accessSvc, pay.NewRegistry(gateways...), bus, deps.Logger)
	server := explorehttp.NewServer(deps.Logger, accessSvc, paymentsSvc, paymentsRepo, webhooks, http.HandlerFunc(hub.ServeWS))

	deps.module = &moduleState{
		relay:    relay,
		payments: paymentsSvc,
		server:   server,
	}
	return deps.module, nil
}

// RegisterExploreRoutes wires HTTP and WebSocket routes into the provided mux.
func RegisterExploreRoutes(mux *pat.PatternServeMux, deps *ExploreDeps, public, optional, authed alice.Chain) error {
	module, err := ensureModule(deps)
	if err != nil {
		return err
	}
	module.server.RegisterRoutes(mux, public, optional, authed)
	return nil
}

// StartExploreWorkers launches the cross-instance event relay.
func StartExploreWorkers(ctx context.Context, deps *ExploreDeps) error {
	module, err := ensureModule(deps)
	if err != nil {
		return err
	}
	if module.relay != nil {
		go func() {
			if err := module.relay.Run(ctx); err != nil && ctx.Err() == nil {
				deps.Logger.Errorf("payment relay stopped: %v", err)
			}
		}()
	}
	return nil
}

// ExpireStalePayments fails pending payments older than the configured expiry.
func ExpireStalePayments(ctx context.Context, deps *ExploreDeps) (int, error) {
	module, err := ensureModule(deps)
	if err != nil {
		return 0, err
	}
	return module.payments.ExpireStale(ctx, deps.Config.PaymentExpiry)
}

// ExpiryTick is the interval between stale payment sweeps.
func (d *ExploreDeps) ExpiryTick() time.Duration {
	if d.Config.ExpiryTick <= 0 {
		return defaultExpiryTick
	}
	return d.Config.ExpiryTick
}
