package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"modpackBack/internal/explore/access"
	"modpackBack/internal/explore/events"
	"modpackBack/internal/explore/fsm"
	"modpackBack/internal/explore/metrics"
	"modpackBack/internal/explore/pay"
	"modpackBack/internal/explore/repo"
)

// Logger is the logging contract used by the service.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// PaymentStore persists payments.
type PaymentStore interface {
	Create(ctx context.Context, p repo.Payment) error
	Get(ctx context.Context, id string) (repo.Payment, error)
	GetByGatewayRef(ctx context.Context, gateway, ref string) (repo.Payment, error)
	AttachCheckout(ctx context.Context, id, gatewayRef, approvalURL, qrPayload string) error
	Transition(ctx context.Context, p repo.Payment, to fsm.Status, message string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]repo.Payment, error)
}

// ModpackStore loads modpacks.
type ModpackStore interface {
	Get(ctx context.Context, id string) (repo.Modpack, error)
}

// Access answers ownership and grants free modpacks.
type Access interface {
	Check(ctx context.Context, modpackID string, userID int64) (access.Decision, error)
	ClaimFree(ctx context.Context, modpackID string, userID int64) error
}

// Purchase is the result of an acquire/purchase call.
type Purchase struct {
	Granted     bool
	PaymentID   string
	Gateway     pay.Kind
	ApprovalURL string
	QRPayload   string
	AmountCents int64
	Currency    string
	Status      fsm.Status
}

// Service drives the payment lifecycle.
type Service struct {
	payments PaymentStore
	modpacks ModpackStore
	access   Access
	gateways *pay.Registry
	bus      events.Bus
	logger   Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(payments PaymentStore, modpacks ModpackStore, acc Access, gateways *pay.Registry, bus events.Bus, logger Logger) *Service {
	return &Service{
		payments: payments,
		modpacks: modpacks,
		access:   acc,
		gateways: gateways,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Purchase acquires a free modpack directly or opens a checkout for a paid one.
func (s *Service) Purchase(ctx context.Context, userID int64, modpackID, gateway, country string) (Purchase, error) {
	m, err := s.modpacks.Get(ctx, modpackID)
	if err != nil {
		return Purchase{}, err
	}
	d, err := s.access.Check(ctx, modpackID, userID)
	if err != nil {
		return Purchase{}, err
	}
	if d.CanAccess {
		return Purchase{Granted: true}, nil
	}
	if access.IsFree(m) {
		if err := s.access.ClaimFree(ctx, modpackID, userID); err != nil {
			return Purchase{}, err
		}
		return Purchase{Granted: true}, nil
	}
	if m.AccessMethod != access.MethodPaid {
		return Purchase{}, access.ErrMethodMismatch
	}
	return s.start(ctx, userID, m, gateway, country)
}

func (s *Service) start(ctx context.Context, userID int64, m repo.Modpack, gateway, country string) (Purchase, error) {
	gw, err := s.gateways.Resolve(gateway, country)
	if err != nil {
		return Purchase{}, err
	}
	p := repo.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		ModpackID:   m.ID,
		Gateway:     string(gw.Kind()),
		AmountCents: m.PriceCents,
		Currency:    m.Currency,
		Status:      fsm.StatusPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return Purchase{}, fmt.Errorf("create payment: %w", err)
	}

	checkout, err := gw.CreateCheckout(ctx, pay.CheckoutRequest{
		PaymentID:   p.ID,
		UserID:      userID,
		ModpackID:   m.ID,
		ModpackName: m.Name,
		AmountCents: m.PriceCents,
		Currency:    m.Currency,
		CountryCode: strings.ToUpper(country),
	})
	if err != nil {
		if terr := s.payments.Transition(ctx, p, fsm.StatusFailed, "Checkout could not be created"); terr != nil {
			s.logger.Errorf("payment %s: mark failed: %v", p.ID, terr)
		}
		metrics.AcquisitionsTotal.WithLabelValues(access.MethodPaid, "gateway_error").Inc()
		return Purchase{}, fmt.Errorf("%s checkout: %w", gw.Kind(), err)
	}
	if err := s.payments.AttachCheckout(ctx, p.ID, checkout.GatewayRef, checkout.ApprovalURL, checkout.QRPayload); err != nil {
		return Purchase{}, fmt.Errorf("attach checkout: %w", err)
	}
	metrics.AcquisitionsTotal.WithLabelValues(access.MethodPaid, "checkout").Inc()
	s.logger.Infof("payment %s opened via %s for modpack %s user %d", p.ID, gw.Kind(), m.ID, userID)

	return Purchase{
		PaymentID:   p.ID,
		Gateway:     gw.Kind(),
		ApprovalURL: checkout.ApprovalURL,
		QRPayload:   checkout.QRPayload,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Status:      p.Status,
	}, nil
}

// Lookup finds the payment an update refers to, by our id or the gateway's.
func (s *Service) Lookup(ctx context.Context, gateway pay.Kind, u pay.Update) (repo.Payment, error) {
	if u.PaymentID != "" {
		return s.payments.Get(ctx, u.PaymentID)
	}
	if u.GatewayRef != "" {
		return s.payments.GetByGatewayRef(ctx, string(gateway), u.GatewayRef)
	}
	return repo.Payment{}, repo.ErrNotFound
}

// Apply moves a payment to the reported status and notifies the buyer.
// Duplicate, late and backward updates are ignored; applied reports whether
// anything changed.
func (s *Service) Apply(ctx context.Context, gateway pay.Kind, u pay.Update) (applied bool, err error) {
	p, err := s.Lookup(ctx, gateway, u)
	if err != nil {
		return false, err
	}
	if p.Gateway != string(gateway) {
		return false, fmt.Errorf("payment %s belongs to %s, not %s", p.ID, p.Gateway, gateway)
	}
	if _, ok := fsm.Parse(string(u.Status)); !ok {
		s.logger.Errorf("payment %s: unknown status %q ignored", p.ID, u.Status)
		return false, nil
	}
	if p.Status == u.Status || fsm.IsTerminal(p.Status) || !fsm.CanTransition(p.Status, u.Status) {
		return false, nil
	}

	msg := u.Message
	if msg == "" {
		msg = defaultMessage(u.Status)
	}
	if err := s.payments.Transition(ctx, p, u.Status, msg); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			s.logger.Infof("payment %s: concurrent update, %s dropped", p.ID, u.Status)
			return false, nil
		}
		return false, err
	}
	metrics.PaymentTransitionsTotal.WithLabelValues(p.Gateway, string(u.Status)).Inc()
	s.logger.Infof("payment %s: %s -> %s", p.ID, p.Status, u.Status)

	if err := s.bus.Publish(ctx, p.UserID, events.NewPaymentEvent(p.ID, p.ModpackID, u.Status, msg)); err != nil {
		s.logger.Errorf("payment %s: publish %s: %v", p.ID, u.Status, err)
	}
	return true, nil
}

// ExpireStale fails pending payments untouched for longer than maxAge.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.payments.ListStale(ctx, s.now().Add(-maxAge), 100)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, p := range stale {
		ok, err := s.Apply(ctx, pay.Kind(p.Gateway), pay.Update{PaymentID: p.ID, Status: fsm.StatusFailed, Message: "Payment expired"})
		if err != nil {
			s.logger.Errorf("expire payment %s: %v", p.ID, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func defaultMessage(st fsm.Status) string {
	switch st {
	case fsm.StatusProcessing:
		return "Processing payment"
	case fsm.StatusCompleted:
		return "Payment completed"
	case fsm.StatusFailed:
		return "Payment failed"
	}
	return ""
}
