package acquisition

import (
	"sync"
	"time"

	"modpackBack/internal/explore/fsm"
)

// CompletionDelay is how long a completed payment stays visible before the continuation runs.
const CompletionDelay = 2000 * time.Millisecond

// Tracker holds the state of one payment session and reconciles it against status events.
type Tracker struct {
	notifier    Notifier
	scheduler   Scheduler
	delay       time.Duration
	onCompleted func()

	mu      sync.Mutex
	session *PaymentSession
	timer   Timer
}

// NewTracker constructs a Tracker. onCompleted runs once, delay after a session completes.
func NewTracker(notifier Notifier, scheduler Scheduler, delay time.Duration, onCompleted func()) *Tracker {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if scheduler == nil {
		scheduler = realScheduler{}
	}
	if delay <= 0 {
		delay = CompletionDelay
	}
	return &Tracker{notifier: notifier, scheduler: scheduler, delay: delay, onCompleted: onCompleted}
}

// Open starts tracking a checkout, replacing any previous session.
func (t *Tracker) Open(c Checkout) PaymentSession {
	status := c.Status
	if _, ok := fsm.Parse(string(status)); !ok {
		status = fsm.StatusPending
	}
	session := PaymentSession{
		PaymentID:   c.PaymentID,
		ApprovalURL: c.ApprovalURL,
		QRPayload:   c.QRPayload,
		GatewayKind: c.GatewayKind,
		Amount:      c.Amount,
		Currency:    c.Currency,
		Status:      status,
	}

	t.mu.Lock()
	t.stopTimerLocked()
	t.session = &session
	t.mu.Unlock()
	return session
}

// Session returns a copy of the tracked session.
func (t *Tracker) Session() (PaymentSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return PaymentSession{}, false
	}
	return *t.session, true
}

// ApplyEvent reconciles a status event. It returns the session and whether it changed.
// Events for another payment, events after a terminal status, unknown statuses and
// backwards moves leave the session unchanged.
func (t *Tracker) ApplyEvent(ev PaymentEvent) (PaymentSession, bool) {
	t.mu.Lock()
	if t.session == nil {
		t.mu.Unlock()
		return PaymentSession{}, false
	}
	current := *t.session
	next, ok := fsm.Parse(ev.Status)
	if ev.PaymentID != current.PaymentID || fsm.IsTerminal(current.Status) || !ok ||
		next == current.Status || !fsm.CanTransition(current.Status, next) {
		t.mu.Unlock()
		return current, false
	}

	t.session.Status = next
	updated := *t.session
	if next == fsm.StatusCompleted && t.onCompleted != nil {
		t.timer = t.scheduler.AfterFunc(t.delay, t.onCompleted)
	}
	t.mu.Unlock()

	t.notifier.Notify(levelFor(next), eventMessage(next, ev.Message))
	return updated, true
}

// Discard drops the session and cancels a scheduled completion.
func (t *Tracker) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	t.session = nil
}

func (t *Tracker) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func levelFor(s PaymentStatus) Level {
	switch s {
	case fsm.StatusCompleted:
		return LevelSuccess
	case fsm.StatusFailed:
		return LevelError
	}
	return LevelInfo
}

func eventMessage(s PaymentStatus, message string) string {
	if message != "" {
		return message
	}
	switch s {
	case fsm.StatusProcessing:
		return "Payment is being processed"
	case fsm.StatusCompleted:
		return "Payment completed"
	case fsm.StatusFailed:
		return "Payment failed"
	}
	return "Payment pending"
}
