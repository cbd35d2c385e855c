package acquisition

import (
	"context"
	"fmt"
	"strings"

	"modpackBack/internal/explore/fsm"
)

type strategy func(ctx context.Context, subject Subject, token string, creds Credentials) (Outcome, error)

// Selector dispatches an acquisition to the strategy bound to the subject's gating method.
// It does not deduplicate concurrent calls.
type Selector struct {
	remote     Remote
	identity   *Identity
	strategies map[GatingMethod]strategy
}

// NewSelector constructs a Selector for the given identity.
func NewSelector(remote Remote, identity *Identity) *Selector {
	s := &Selector{remote: remote, identity: identity}
	s.strategies = map[GatingMethod]strategy{
		MethodFree:     s.acquireFree,
		MethodPaid:     s.acquirePaid,
		MethodPassword: s.acquirePassword,
		MethodTwitch:   s.acquireTwitch,
	}
	return s
}

// Acquire runs the strategy for subject.Method.
func (s *Selector) Acquire(ctx context.Context, subject Subject, creds Credentials) (Outcome, error) {
	run, ok := s.strategies[subject.Method]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, subject.Method)
	}
	if s.identity.Anonymous() {
		return Outcome{}, missing(FieldIdentity)
	}
	return run(ctx, subject, s.identity.token(), creds)
}

func (s *Selector) acquirePassword(ctx context.Context, subject Subject, token string, creds Credentials) (Outcome, error) {
	password := strings.TrimSpace(creds.Password)
	if password == "" {
		return Outcome{}, missing(FieldPassword)
	}
	resp, err := s.remote.ValidatePassword(ctx, subject.ID, token, password)
	if err != nil {
		return Outcome{}, reject(err)
	}
	if !resp.Valid {
		return Outcome{}, reject(&RejectedError{Message: resp.Message})
	}
	return Outcome{Granted: true}, nil
}

func (s *Selector) acquireTwitch(ctx context.Context, subject Subject, token string, _ Credentials) (Outcome, error) {
	if !s.identity.TwitchLinked {
		return Outcome{}, missing(FieldTwitchLink)
	}
	resp, err := s.remote.AcquireTwitch(ctx, subject.ID, token)
	if err != nil {
		return Outcome{}, reject(err)
	}
	if !resp.Success {
		return Outcome{}, reject(&RejectedError{Message: resp.Message})
	}
	return Outcome{Granted: true}, nil
}

func (s *Selector) acquireFree(ctx context.Context, subject Subject, token string, _ Credentials) (Outcome, error) {
	resp, err := s.remote.Purchase(ctx, subject.ID, token, PurchaseRequest{})
	if err != nil {
		return Outcome{}, reject(err)
	}
	if !resp.Success {
		return Outcome{}, reject(&RejectedError{Message: resp.Message})
	}
	return Outcome{Granted: true}, nil
}

func (s *Selector) acquirePaid(ctx context.Context, subject Subject, token string, creds Credentials) (Outcome, error) {
	gateway := strings.TrimSpace(creds.Gateway)
	if gateway == "" {
		return Outcome{}, missing(FieldGateway)
	}
	resp, err := s.remote.Purchase(ctx, subject.ID, token, PurchaseRequest{
		GatewayType: gateway,
		CountryCode: strings.ToUpper(strings.TrimSpace(creds.CountryCode)),
	})
	if err != nil {
		return Outcome{}, reject(err)
	}
	if !resp.Success {
		return Outcome{}, reject(&RejectedError{Message: resp.Message})
	}
	if resp.IsFree {
		return Outcome{Granted: true}, nil
	}
	if resp.PaymentID == "" {
		return Outcome{}, reject(&RejectedError{Message: "payment could not be initiated"})
	}

	status := fsm.StatusPending
	if st, ok := fsm.Parse(resp.Status); ok {
		status = st
	}
	kind := resp.GatewayType
	if kind == "" {
		kind = gateway
	}
	amount, currency := resp.Amount, resp.Currency
	if amount == "" {
		amount = subject.Price
	}
	if currency == "" {
		currency = subject.Currency
	}
	return Outcome{Checkout: &Checkout{
		PaymentID:   resp.PaymentID,
		ApprovalURL: resp.ApprovalURL,
		QRPayload:   resp.QRCode,
		GatewayKind: kind,
		Amount:      amount,
		Currency:    currency,
		Status:      status,
	}}, nil
}
