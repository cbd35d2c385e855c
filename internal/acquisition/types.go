package acquisition

import (
	"strings"

	"modpackBack/internal/explore/fsm"
)

// GatingMethod is the mechanism controlling access to a modpack.
type GatingMethod string

const (
	MethodFree     GatingMethod = "free"
	MethodPaid     GatingMethod = "paid"
	MethodPassword GatingMethod = "password"
	MethodTwitch   GatingMethod = "twitch_subscription"
)

// Valid reports whether m is one of the known gating methods.
func (m GatingMethod) Valid() bool {
	switch m {
	case MethodFree, MethodPaid, MethodPassword, MethodTwitch:
		return true
	}
	return false
}

// Subject is the snapshot of a gated modpack fetched for one dialog session.
type Subject struct {
	ID                         string
	Name                       string
	Price                      string
	Currency                   string
	Method                     GatingMethod
	RequiresPassword           bool
	RequiresTwitchSubscription bool
	TwitchChannels             []string
}

// Identity carries the caller's credentials. A nil Identity or an empty token is anonymous.
type Identity struct {
	Token        string
	TwitchLinked bool
}

// Anonymous reports whether the identity has no bearer token.
func (i *Identity) Anonymous() bool {
	return i == nil || strings.TrimSpace(i.Token) == ""
}

func (i *Identity) token() string {
	if i == nil {
		return ""
	}
	return strings.TrimSpace(i.Token)
}

// AccessDecision is the result of one access check.
type AccessDecision struct {
	CanAccess        bool
	Reason           string
	RequiredChannels []string
}

// Check bundles an access decision with the subject metadata returned alongside it.
type Check struct {
	Decision AccessDecision
	Subject  *Subject
}

// Credentials are the user-supplied inputs of an acquisition attempt.
type Credentials struct {
	Password    string
	Gateway     string
	CountryCode string
}

// PaymentStatus is the status of a tracked payment.
type PaymentStatus = fsm.Status

// Checkout is what a paid purchase call returns when the gateway needs user approval.
type Checkout struct {
	PaymentID   string
	ApprovalURL string
	QRPayload   string
	GatewayKind string
	Amount      string
	Currency    string
	Status      PaymentStatus
}

// Outcome is the result of a successful strategy call.
// Granted is true when access was obtained immediately; otherwise Checkout is set.
type Outcome struct {
	Granted  bool
	Checkout *Checkout
}

// PaymentSession is the in-memory lifecycle of one checkout attempt.
type PaymentSession struct {
	PaymentID   string
	ApprovalURL string
	QRPayload   string
	GatewayKind string
	Amount      string
	Currency    string
	Status      PaymentStatus
}

// PaymentEvent is a status update delivered by the realtime channel.
type PaymentEvent struct {
	PaymentID string
	Status    string
	Message   string
}

// ActionKind identifies a deferred user action.
type ActionKind string

const (
	ActionUpdate      ActionKind = "update"
	ActionCreate      ActionKind = "create"
	ActionShowOptions ActionKind = "show_options"
	ActionShowCreate  ActionKind = "show_create"
)

// PendingAction is an access-gated user action captured for replay.
type PendingAction struct {
	Kind       ActionKind
	ModpackID  string
	InstanceID string
	Params     map[string]string
}
