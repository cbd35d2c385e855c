package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"modpackBack/internal/acquisition"
	"modpackBack/internal/explore/fsm"
	"modpackBack/internal/launcher/api"
	"modpackBack/internal/launcher/realtime"
	"modpackBack/utils"
)

var errPaymentTimeout = errors.New("timed out waiting for the payment")

type acquireOptions struct {
	password string
	gateway  string
	country  string
	action   string
	instance string
	params   map[string]string
	wait     time.Duration
}

func acquireCmd(opts *options) *cobra.Command {
	a := &acquireOptions{}
	cmd := &cobra.Command{
		Use:   "acquire [modpack-id]",
		Short: "Acquire a modpack and resume the gated action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAcquire(cmd, opts, a, args[0])
		},
	}

	cmd.Flags().StringVarP(&a.password, "password", "p", "", "Modpack password")
	cmd.Flags().StringVarP(&a.gateway, "gateway", "g", "", "Payment gateway (stripe, paypal, mercadopago)")
	cmd.Flags().StringVar(&a.country, "country", "", "Two-letter country code used for gateway routing")
	cmd.Flags().StringVar(&a.action, "action", string(acquisition.ActionShowOptions), "Action to resume (show_options, show_create, create, update)")
	cmd.Flags().StringVar(&a.instance, "instance", "", "Instance to update")
	cmd.Flags().StringToStringVar(&a.params, "param", nil, "Action parameters as key=value")
	cmd.Flags().DurationVar(&a.wait, "wait", 10*time.Minute, "How long to wait for a payment to settle")
	return cmd
}

func runAcquire(cmd *cobra.Command, opts *options, a *acquireOptions, modpackID string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()
	id := identity(opts)
	closed := make(chan struct{})

	deps := acquisition.DialogDeps{
		Remote:   api.NewClient(nil, opts.apiURL),
		Identity: id,
		Actions:  &consoleActions{out: out},
		Notifier: &consoleNotifier{out: out},
		OnClose:  func() { close(closed) },
	}

	var rt *realtime.Client
	if opts.wsURL != "" && id != nil {
		rt = realtime.NewClient(opts.wsURL, id.Token, utils.NewLogger(opts.logLevel, cmd.ErrOrStderr()))
		deps.Events = rt
		go rt.Run(ctx)
	}

	dialog := acquisition.NewDialog(modpackID, deps)
	defer dialog.Close()

	if _, err := dialog.Load(ctx); err != nil {
		return err
	}

	action := acquisition.PendingAction{
		Kind:       acquisition.ActionKind(a.action),
		ModpackID:  modpackID,
		InstanceID: a.instance,
		Params:     a.params,
	}
	ran, err := dialog.Attempt(ctx, action)
	if err != nil {
		return err
	}
	if ran {
		fmt.Fprintln(out, "Access already granted")
		return nil
	}

	// A failure can arrive before Acquire returns.
	failed := make(chan string, 8)
	if rt != nil {
		unsubscribe := rt.Subscribe(func(ev acquisition.PaymentEvent) {
			if ev.Status != string(fsm.StatusFailed) {
				return
			}
			select {
			case failed <- ev.PaymentID:
			default:
			}
		})
		defer unsubscribe()
	}

	outcome, err := dialog.Acquire(ctx, acquisition.Credentials{
		Password:    a.password,
		Gateway:     a.gateway,
		CountryCode: a.country,
	})
	if err != nil {
		return err
	}
	if outcome.Granted || outcome.Checkout == nil {
		return nil
	}

	c := outcome.Checkout
	fmt.Fprintf(out, "Payment:   %s (%s %s via %s)\n", c.PaymentID, c.Amount, c.Currency, c.GatewayKind)
	if c.ApprovalURL != "" {
		fmt.Fprintf(out, "Approve:   %s\n", c.ApprovalURL)
	}
	if c.QRPayload != "" && c.QRPayload != c.ApprovalURL {
		fmt.Fprintf(out, "QR:        %s\n", c.QRPayload)
	}
	if dialog.Closed() {
		return nil
	}
	if session, ok := dialog.Payment(); ok && session.Status == fsm.StatusFailed {
		return fmt.Errorf("payment %s failed", c.PaymentID)
	}
	if rt == nil {
		fmt.Fprintln(out, "Realtime updates are disabled; run check once the payment settles")
		return nil
	}

	return waitForPayment(ctx, c.PaymentID, closed, failed, a.wait)
}

func waitForPayment(ctx context.Context, paymentID string, closed <-chan struct{}, failed <-chan string, wait time.Duration) error {
	timeout := time.NewTimer(wait)
	defer timeout.Stop()
	for {
		select {
		case <-closed:
			return nil
		case id := <-failed:
			if id == paymentID {
				return fmt.Errorf("payment %s failed", paymentID)
			}
		case <-timeout.C:
			return errPaymentTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
