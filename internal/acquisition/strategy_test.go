package acquisition

import (
	"context"
	"errors"
	"testing"
)

func TestCheckerAnonymousNeverCallsRemote(t *testing.T) {
	remote := &fakeRemote{access: AccessResponse{CanAccess: true}}
	checker := NewChecker(remote)

	for _, identity := range []*Identity{nil, {Token: "   "}} {
		check, err := checker.Check(context.Background(), "m1", identity)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if check.Decision.CanAccess {
			t.Fatal("anonymous identity must not have access")
		}
	}
	if remote.networkCalls() != 0 {
		t.Fatalf("expected no remote calls, got %d", remote.networkCalls())
	}
}

func TestCheckerRemoteFailure(t *testing.T) {
	cause := errors.New("connection refused")
	checker := NewChecker(&fakeRemote{err: cause})

	_, err := checker.Check(context.Background(), "m1", &Identity{Token: "t"})
	var checkErr *AccessCheckFailedError
	if !errors.As(err, &checkErr) {
		t.Fatalf("expected AccessCheckFailedError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to be preserved")
	}
}

func TestCheckerReturnsSubjectAndChannels(t *testing.T) {
	remote := &fakeRemote{access: AccessResponse{
		CanAccess: false,
		ModpackAccessInfo: &AccessInfo{
			ID:                         "m3",
			Name:                       "Sky Factory",
			AccessMethod:               "twitch_subscription",
			RequiresTwitchSubscription: true,
			TwitchChannels:             []string{"streamer_a", "streamer_b"},
		},
	}}
	check, err := NewChecker(remote).Check(context.Background(), "m3", &Identity{Token: " tok "})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if check.Subject == nil || check.Subject.Method != MethodTwitch {
		t.Fatalf("unexpected subject %+v", check.Subject)
	}
	if len(check.Decision.RequiredChannels) != 2 {
		t.Fatalf("expected required channels, got %v", check.Decision.RequiredChannels)
	}
	if remote.tokens[0] != "tok" {
		t.Fatalf("expected trimmed token, got %q", remote.tokens[0])
	}
}

func TestPasswordStrategyRejectsBlankInputLocally(t *testing.T) {
	remote := &fakeRemote{password: PasswordResponse{Valid: true}}
	selector := NewSelector(remote, &Identity{Token: "t"})
	subject := Subject{ID: "m1", Method: MethodPassword}

	for _, pw := range []string{"", "   ", "\t\n"} {
		_, err := selector.Acquire(context.Background(), subject, Credentials{Password: pw})
		if !errors.Is(err, ErrMissingInput) {
			t.Fatalf("password %q: expected ErrMissingInput, got %v", pw, err)
		}
	}
	if remote.networkCalls() != 0 {
		t.Fatalf("expected no network calls, got %d", remote.networkCalls())
	}
}

func TestPasswordStrategyWrongPassword(t *testing.T) {
	remote := &fakeRemote{password: PasswordResponse{Valid: false, Message: "Incorrect password"}}
	selector := NewSelector(remote, &Identity{Token: "t"})

	_, err := selector.Acquire(context.Background(), Subject{ID: "m1", Method: MethodPassword}, Credentials{Password: " secret "})
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Message != "Incorrect password" {
		t.Fatalf("expected server message verbatim, got %q", rejected.Message)
	}
	if remote.passwordCalls[0] != "secret" {
		t.Fatalf("expected trimmed password, got %q", remote.passwordCalls[0])
	}
}

func TestTwitchStrategyRequiresLinkedAccount(t *testing.T) {
	remote := &fakeRemote{twitch: TwitchResponse{Success: true}}
	selector := NewSelector(remote, &Identity{Token: "t", TwitchLinked: false})

	_, err := selector.Acquire(context.Background(), Subject{ID: "m1", Method: MethodTwitch}, Credentials{})
	var missingErr *MissingInputError
	if !errors.As(err, &missingErr) || missingErr.Field != FieldTwitchLink {
		t.Fatalf("expected missing twitch link, got %v", err)
	}
	if remote.twitchCalls != 0 {
		t.Fatal("twitch endpoint must not be called without a linked account")
	}
}

func TestTwitchStrategyRejectedWithoutMessage(t *testing.T) {
	remote := &fakeRemote{twitch: TwitchResponse{Success: false}}
	selector := NewSelector(remote, &Identity{Token: "t", TwitchLinked: true})

	_, err := selector.Acquire(context.Background(), Subject{ID: "m1", Method: MethodTwitch}, Credentials{})
	if got := UserMessage(err); got != genericRejection {
		t.Fatalf("expected generic rejection, got %q", got)
	}
}

func TestFreeStrategyNeedsNoGateway(t *testing.T) {
	remote := &fakeRemote{purchase: PurchaseResponse{Success: true, IsFree: true}}
	selector := NewSelector(remote, &Identity{Token: "t"})

	out, err := selector.Acquire(context.Background(), Subject{ID: "m1", Method: MethodFree}, Credentials{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !out.Granted {
		t.Fatal("expected free acquisition to grant access")
	}
	if remote.purchaseCalls[0].GatewayType != "" {
		t.Fatalf("free acquisition must not send a gateway, got %q", remote.purchaseCalls[0].GatewayType)
	}
}

func TestAnonymousAcquisitionIsMissingIdentity(t *testing.T) {
	remote := &fakeRemote{purchase: PurchaseResponse{Success: true}}
	_, err := NewSelector(remote, nil).Acquire(context.Background(), Subject{ID: "m1", Method: MethodFree}, Credentials{})
	var missingErr *MissingInputError
	if !errors.As(err, &missingErr) || missingErr.Field != FieldIdentity {
		t.Fatalf("expected missing identity, got %v", err)
	}
	if remote.networkCalls() != 0 {
		t.Fatal("expected no network calls")
	}
}

func TestPaidStrategyOpensCheckout(t *testing.T) {
	remote := &fakeRemote{purchase: PurchaseResponse{
		Success:     true,
		IsFree:      false,
		PaymentID:   "p1",
		Status:      "pending",
		ApprovalURL: "https://pay/p1",
		QRCode:      "https://pay/p1?qr",
	}}
	selector := NewSelector(remote, &Identity{Token: "t"})
	subject := Subject{ID: "m2", Method: MethodPaid, Price: "5.00", Currency: "USD"}

	if _, err := selector.Acquire(context.Background(), subject, Credentials{}); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected missing gateway, got %v", err)
	}

	out, err := selector.Acquire(context.Background(), subject, Credentials{Gateway: "paypal", CountryCode: "ar"})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if out.Granted {
		t.Fatal("paid checkout must not grant access directly")
	}
	c := out.Checkout
	if c == nil || c.PaymentID != "p1" || c.Status != "pending" {
		t.Fatalf("unexpected checkout %+v", c)
	}
	if c.ApprovalURL != "https://pay/p1" || c.QRPayload != "https://pay/p1?qr" {
		t.Fatalf("gateway fields must be kept verbatim: %+v", c)
	}
	if c.Amount != "5.00" || c.Currency != "USD" || c.GatewayKind != "paypal" {
		t.Fatalf("expected subject defaults, got %+v", c)
	}
	if len(remote.purchaseCalls) != 1 || remote.purchaseCalls[0].CountryCode != "AR" {
		t.Fatalf("unexpected purchase calls %+v", remote.purchaseCalls)
	}
}

func TestPaidStrategyWaivedPriceGrants(t *testing.T) {
	remote := &fakeRemote{purchase: PurchaseResponse{Success: true, IsFree: true}}
	out, err := NewSelector(remote, &Identity{Token: "t"}).Acquire(context.Background(),
		Subject{ID: "m2", Method: MethodPaid}, Credentials{Gateway: "stripe"})
	if err != nil || !out.Granted {
		t.Fatalf("expected grant, got %+v %v", out, err)
	}
}

func TestRemoteErrorsAreClassified(t *testing.T) {
	transport := &TransportError{Op: "purchase", Cause: errors.New("dial tcp: timeout")}
	selector := NewSelector(&fakeRemote{err: transport}, &Identity{Token: "t"})
	_, err := selector.Acquire(context.Background(), Subject{ID: "m1", Method: MethodFree}, Credentials{})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	selector = NewSelector(&fakeRemote{err: errors.New("boom")}, &Identity{Token: "t"})
	_, err = selector.Acquire(context.Background(), Subject{ID: "m1", Method: MethodFree}, Credentials{})
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Message != genericRejection {
		t.Fatalf("expected generic RejectedError, got %v", err)
	}
}

func TestUnsupportedMethod(t *testing.T) {
	_, err := NewSelector(&fakeRemote{}, &Identity{Token: "t"}).Acquire(context.Background(), Subject{Method: "gift"}, Credentials{})
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}
