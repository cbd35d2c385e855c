package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"modpackBack/internal/explore/fsm"
)

// PaymentEvent is the realtime message delivered to the purchasing user.
type PaymentEvent struct {
	Type      string `json:"type"`
	PaymentID string `json:"paymentId"`
	ModpackID string `json:"modpackId,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// NewPaymentEvent builds the event for a payment status.
func NewPaymentEvent(paymentID, modpackID string, status fsm.Status, message string) PaymentEvent {
	return PaymentEvent{
		Type:      fsm.EventName(status),
		PaymentID: paymentID,
		ModpackID: modpackID,
		Status:    string(status),
		Message:   message,
	}
}

// Pusher delivers events to locally connected users.
type Pusher interface {
	PushPaymentEvent(userID int64, ev PaymentEvent)
}

// Bus publishes payment events to every API instance.
type Bus interface {
	Publish(ctx context.Context, userID int64, ev PaymentEvent) error
}

// Logger is the logging contract used by the relay.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LocalBus delivers straight to the in-process hub.
type LocalBus struct {
	pusher Pusher
}

// NewLocalBus constructs a LocalBus.
func NewLocalBus(p Pusher) *LocalBus { return &LocalBus{pusher: p} }

func (b *LocalBus) Publish(ctx context.Context, userID int64, ev PaymentEvent) error {
	b.pusher.PushPaymentEvent(userID, ev)
	return nil
}

type envelope struct {
	UserID int64        `json:"user_id"`
	Event  PaymentEvent `json:"event"`
}

// RedisBus relays events through a Redis pub/sub channel so that the
// instance holding the user's websocket receives them.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	pusher  Pusher
	logger  Logger
}

// NewRedisBus constructs a RedisBus.
func NewRedisBus(rdb *redis.Client, channel string, pusher Pusher, logger Logger) *RedisBus {
	if channel == "" {
		channel = "explore:payments"
	}
	return &RedisBus{rdb: rdb, channel: channel, pusher: pusher, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, userID int64, ev PaymentEvent) error {
	payload, err := json.Marshal(envelope{UserID: userID, Event: ev})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Run subscribes to the channel and delivers messages until ctx is done.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Infof("payment relay subscribed to %s", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.deliver([]byte(msg.Payload)); err != nil {
				b.logger.Errorf("payment relay: %v", err)
			}
		}
	}
}

func (b *RedisBus) deliver(payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.UserID == 0 || env.Event.PaymentID == "" {
		return fmt.Errorf("incomplete envelope %q", payload)
	}
	b.pusher.PushPaymentEvent(env.UserID, env.Event)
	return nil
}
