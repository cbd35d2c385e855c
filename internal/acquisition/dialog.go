package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"modpackBack/internal/explore/fsm"
)

// EventSource delivers realtime payment events. The returned func unsubscribes.
type EventSource interface {
	Subscribe(handler func(PaymentEvent)) (unsubscribe func())
}

// DialogDeps groups the dependencies of a Dialog.
type DialogDeps struct {
	Remote   Remote
	Identity *Identity
	Actions  Actions
	Notifier Notifier
	// Events is optional; without it paid sessions only change through HandleEvent.
	Events    EventSource
	Scheduler Scheduler
	// CompletionDelay defaults to CompletionDelay.
	CompletionDelay time.Duration
	// OnClose runs once when the dialog closes.
	OnClose func()
}

// Dialog is one acquisition session for a single modpack. It owns its access decision,
// pending action and payment session; dialogs never share state.
type Dialog struct {
	subjectID    string
	identity     *Identity
	checker      *Checker
	selector     *Selector
	tracker      *Tracker
	continuation *Continuation
	notifier     Notifier
	events       EventSource
	onClose      func()

	mu          sync.Mutex
	decision    AccessDecision
	subject     *Subject
	inFlight    bool
	closed      bool
	unsubscribe func()
}

// NewDialog constructs a Dialog for subjectID.
func NewDialog(subjectID string, deps DialogDeps) *Dialog {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	d := &Dialog{
		subjectID:    subjectID,
		identity:     deps.Identity,
		checker:      NewChecker(deps.Remote),
		selector:     NewSelector(deps.Remote, deps.Identity),
		continuation: NewContinuation(deps.Actions),
		notifier:     notifier,
		events:       deps.Events,
		onClose:      deps.OnClose,
	}
	d.tracker = NewTracker(notifier, deps.Scheduler, deps.CompletionDelay, d.finishPayment)
	return d
}

// Load checks access and caches the subject snapshot for this session.
func (d *Dialog) Load(ctx context.Context) (AccessDecision, error) {
	if d.Closed() {
		return AccessDecision{}, ErrDialogClosed
	}

	check, err := d.checker.Check(ctx, d.subjectID, d.identity)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return AccessDecision{}, ErrDialogClosed
	}
	if err != nil {
		d.decision = AccessDecision{}
		d.mu.Unlock()
		d.notifier.Notify(LevelError, UserMessage(err))
		return AccessDecision{}, err
	}
	d.decision = check.Decision
	if check.Subject != nil {
		d.subject = check.Subject
	}
	decision := d.decision
	d.mu.Unlock()
	return decision, nil
}

// Decision returns the current access decision.
func (d *Dialog) Decision() AccessDecision {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decision
}

// Subject returns the loaded subject snapshot.
func (d *Dialog) Subject() (Subject, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subject == nil {
		return Subject{}, false
	}
	return *d.subject, true
}

// Payment returns the open payment session.
func (d *Dialog) Payment() (PaymentSession, bool) {
	return d.tracker.Session()
}

// Pending returns the deferred action, if any.
func (d *Dialog) Pending() (PendingAction, bool) {
	return d.continuation.Pending()
}

// Attempt runs action right away when access is held; otherwise it is deferred until
// access is granted. It reports whether the action ran.
func (d *Dialog) Attempt(ctx context.Context, action PendingAction) (bool, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false, ErrDialogClosed
	}
	canAccess := d.decision.CanAccess
	d.continuation.Defer(action)
	d.mu.Unlock()

	if !canAccess {
		return false, nil
	}
	return d.continuation.Resolve(ctx)
}

// Acquire runs the strategy bound to the subject's gating method. Immediate grants flip
// access, replay the deferred action and close the dialog. Paid checkouts open a payment
// session that is resolved by realtime events.
func (d *Dialog) Acquire(ctx context.Context, creds Credentials) (Outcome, error) {
	d.mu.Lock()
	var early error
	switch {
	case d.closed:
		early = ErrDialogClosed
	case d.inFlight:
		early = ErrAcquisitionInFlight
	case d.identity.Anonymous():
		early = missing(FieldIdentity)
	case d.subject == nil:
		early = ErrNotLoaded
	}
	if early != nil {
		d.mu.Unlock()
		d.notifier.Notify(LevelError, UserMessage(early))
		return Outcome{}, early
	}
	d.inFlight = true
	subject := *d.subject
	d.mu.Unlock()

	outcome, err := d.selector.Acquire(ctx, subject, creds)

	d.mu.Lock()
	d.inFlight = false
	if d.closed {
		d.mu.Unlock()
		return Outcome{}, ErrDialogClosed
	}
	d.mu.Unlock()

	if err != nil {
		d.notifier.Notify(LevelError, UserMessage(err))
		return Outcome{}, err
	}

	if outcome.Granted {
		d.grant(ctx)
		return outcome, nil
	}

	session := d.tracker.Open(*outcome.Checkout)
	switch session.Status {
	case fsm.StatusCompleted:
		d.grant(ctx)
		return outcome, nil
	case fsm.StatusFailed:
		d.notifier.Notify(LevelError, eventMessage(session.Status, ""))
		return outcome, nil
	}
	d.subscribe()
	name := subject.Name
	if name == "" {
		name = "the modpack"
	}
	d.notifier.Notify(LevelInfo, "Complete the payment to unlock "+name)
	return outcome, nil
}

// HandleEvent feeds a realtime payment event into the tracker.
func (d *Dialog) HandleEvent(ev PaymentEvent) {
	if d.Closed() {
		return
	}
	session, changed := d.tracker.ApplyEvent(ev)
	if !changed {
		return
	}
	d.applyTerminal(session)
}

func (d *Dialog) applyTerminal(session PaymentSession) {
	if session.Status != fsm.StatusCompleted {
		return
	}
	d.mu.Lock()
	d.decision = AccessDecision{CanAccess: true}
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Close discards all session state. Results arriving afterwards are ignored.
func (d *Dialog) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.decision = AccessDecision{}
	d.subject = nil
	onClose := d.onClose
	d.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	d.tracker.Discard()
	d.continuation.Clear()
	if onClose != nil {
		onClose()
	}
}

// Closed reports whether the dialog was closed.
func (d *Dialog) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dialog) grant(ctx context.Context) {
	d.mu.Lock()
	d.decision = AccessDecision{CanAccess: true}
	d.mu.Unlock()

	d.notifier.Notify(LevelSuccess, "Access granted")
	d.resume(ctx)
	d.Close()
}

// finishPayment runs after the completion delay.
func (d *Dialog) finishPayment() {
	if d.Closed() {
		return
	}
	d.resume(context.Background())
	d.Close()
}

func (d *Dialog) resume(ctx context.Context) {
	if _, err := d.continuation.Resolve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		d.notifier.Notify(LevelError, "Could not resume the action: "+err.Error())
	}
}

func (d *Dialog) subscribe() {
	if d.events == nil {
		return
	}
	d.mu.Lock()
	if d.unsubscribe != nil || d.closed {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	unsubscribe := d.events.Subscribe(d.HandleEvent)

	d.mu.Lock()
	if d.closed || d.unsubscribe != nil {
		d.mu.Unlock()
		unsubscribe()
		return
	}
	d.unsubscribe = unsubscribe
	d.mu.Unlock()
}
