package acquisition

import (
	"context"
	"sync"
	"time"
)

type fakeRemote struct {
	mu sync.Mutex

	access   AccessResponse
	password PasswordResponse
	purchase PurchaseResponse
	twitch   TwitchResponse
	err      error

	checkCalls    int
	passwordCalls []string
	purchaseCalls []PurchaseRequest
	twitchCalls   int
	tokens        []string

	// block, when set, holds the purchase call until released.
	block chan struct{}
}

func (f *fakeRemote) CheckAccess(ctx context.Context, modpackID, token string) (AccessResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	f.tokens = append(f.tokens, token)
	return f.access, f.err
}

func (f *fakeRemote) ValidatePassword(ctx context.Context, modpackID, token, password string) (PasswordResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordCalls = append(f.passwordCalls, password)
	return f.password, f.err
}

func (f *fakeRemote) Purchase(ctx context.Context, modpackID, token string, req PurchaseRequest) (PurchaseResponse, error) {
	f.mu.Lock()
	block := f.block
	f.purchaseCalls = append(f.purchaseCalls, req)
	resp, err := f.purchase, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeRemote) AcquireTwitch(ctx context.Context, modpackID, token string) (TwitchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.twitchCalls++
	return f.twitch, f.err
}

func (f *fakeRemote) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls + len(f.passwordCalls) + len(f.purchaseCalls) + f.twitchCalls
}

type note struct {
	level   Level
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	n.notes = append(n.notes, note{level: level, message: message})
	n.mu.Unlock()
}

func (n *recordingNotifier) last() note {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notes) == 0 {
		return note{}
	}
	return n.notes[len(n.notes)-1]
}

type call struct {
	op         string
	modpackID  string
	instanceID string
	params     map[string]string
}

type recordingActions struct {
	mu    sync.Mutex
	calls []call
	onRun func()
	err   error
}

func (a *recordingActions) record(c call) error {
	a.mu.Lock()
	a.calls = append(a.calls, c)
	onRun := a.onRun
	a.mu.Unlock()
	if onRun != nil {
		onRun()
	}
	return a.err
}

func (a *recordingActions) ShowInstallOptions(ctx context.Context, modpackID string) error {
	return a.record(call{op: "show_options", modpackID: modpackID})
}

func (a *recordingActions) OpenUpdate(ctx context.Context, modpackID, instanceID string) error {
	return a.record(call{op: "open_update", modpackID: modpackID, instanceID: instanceID})
}

func (a *recordingActions) OpenCreate(ctx context.Context, modpackID string) error {
	return a.record(call{op: "open_create", modpackID: modpackID})
}

func (a *recordingActions) Create(ctx context.Context, modpackID string, params map[string]string) error {
	return a.record(call{op: "create", modpackID: modpackID, params: params})
}

func (a *recordingActions) Update(ctx context.Context, modpackID, instanceID string, params map[string]string) error {
	return a.record(call{op: "update", modpackID: modpackID, instanceID: instanceID, params: params})
}

func (a *recordingActions) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type manualTimer struct {
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type scheduled struct {
	delay time.Duration
	fn    func()
	timer *manualTimer
}

// manualScheduler records callbacks so tests decide when they fire.
type manualScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{}
	s.jobs = append(s.jobs, scheduled{delay: d, fn: f, timer: t})
	return t
}

func (s *manualScheduler) fire() int {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()
	fired := 0
	for _, j := range jobs {
		if j.timer.stopped {
			continue
		}
		j.fn()
		fired++
	}
	return fired
}

func (s *manualScheduler) pending() []scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scheduled, len(s.jobs))
	copy(out, s.jobs)
	return out
}

type fakeEvents struct {
	mu           sync.Mutex
	handlers     map[int]func(PaymentEvent)
	next         int
	unsubscribed int
}

func (f *fakeEvents) Subscribe(handler func(PaymentEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[int]func(PaymentEvent))
	}
	id := f.next
	f.next++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.handlers[id]; ok {
			delete(f.handlers, id)
			f.unsubscribed++
		}
	}
}

func (f *fakeEvents) emit(ev PaymentEvent) {
	f.mu.Lock()
	handlers := make([]func(PaymentEvent), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeEvents) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}
