package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"modpackBack/internal/explore/metrics"
	"modpackBack/internal/explore/pay"
	"modpackBack/internal/explore/repo"
	"modpackBack/internal/explore/twitch"
)

// Gating methods stored in modpacks.access_method.
const (
	MethodFree     = "free"
	MethodPaid     = "paid"
	MethodPassword = "password"
	MethodTwitch   = "twitch_subscription"
)

var (
	// ErrMethodMismatch is returned when an acquisition does not match the modpack's gating method.
	ErrMethodMismatch = errors.New("access: modpack is not acquired this way")
	// ErrTwitchNotLinked is returned when the user has no linked Twitch account.
	ErrTwitchNotLinked = errors.New("access: twitch account not linked")
	// ErrNotSubscribed is returned when the user subscribes to none of the required channels.
	ErrNotSubscribed = errors.New("access: not subscribed to a required channel")
)

// ModpackStore loads modpack gating settings.
type ModpackStore interface {
	Get(ctx context.Context, id string) (repo.Modpack, error)
	TwitchChannels(ctx context.Context, id string) ([]string, error)
}

// PurchaseStore reads and records grants.
type PurchaseStore interface {
	HasAccess(ctx context.Context, modpackID string, userID int64) (bool, error)
	Grant(ctx context.Context, modpackID string, userID int64, method string, paymentID sql.NullString) error
}

// LinkStore loads linked Twitch accounts.
type LinkStore interface {
	TwitchLink(ctx context.Context, userID int64) (repo.TwitchLink, error)
}

// SubscriptionChecker asks Twitch whether a user subscribes to any channel.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, link repo.TwitchLink, logins []string) (bool, error)
}

// Info describes how a modpack is gated.
type Info struct {
	ID                         string
	Name                       string
	PriceCents                 int64
	Currency                   string
	AccessMethod               string
	RequiresPassword           bool
	RequiresTwitchSubscription bool
	TwitchChannels             []string
}

// Price renders the price as a decimal string.
func (i Info) Price() string { return pay.FormatAmount(i.PriceCents) }

// Decision is the outcome of an access check.
type Decision struct {
	CanAccess bool
	Reason    string
	Info      Info
}

// Service decides and grants modpack access.
type Service struct {
	modpacks  ModpackStore
	purchases PurchaseStore
	links     LinkStore
	twitch    SubscriptionChecker
}

// NewService constructs a Service. twitch may be nil when the integration is disabled.
func NewService(modpacks ModpackStore, purchases PurchaseStore, links LinkStore, twitch SubscriptionChecker) *Service {
	return &Service{modpacks: modpacks, purchases: purchases, links: links, twitch: twitch}
}

// Check computes whether userID may use the modpack. userID 0 is anonymous.
func (s *Service) Check(ctx context.Context, modpackID string, userID int64) (Decision, error) {
	m, err := s.modpacks.Get(ctx, modpackID)
	if err != nil {
		return Decision{}, err
	}
	info := Info{
		ID:                         m.ID,
		Name:                       m.Name,
		PriceCents:                 m.PriceCents,
		Currency:                   m.Currency,
		AccessMethod:               m.AccessMethod,
		RequiresPassword:           m.AccessMethod == MethodPassword,
		RequiresTwitchSubscription: m.AccessMethod == MethodTwitch,
	}
	if info.RequiresTwitchSubscription {
		if info.TwitchChannels, err = s.modpacks.TwitchChannels(ctx, modpackID); err != nil {
			return Decision{}, fmt.Errorf("twitch channels: %w", err)
		}
	}

	d := Decision{Info: info}
	switch {
	case userID == 0:
		d.Reason = "authentication required"
		metrics.AccessChecksTotal.WithLabelValues("anonymous").Inc()
		return d, nil
	case m.OwnerID == userID:
		d.CanAccess, d.Reason = true, "owner"
	default:
		has, err := s.purchases.HasAccess(ctx, modpackID, userID)
		if err != nil {
			return Decision{}, err
		}
		if has {
			d.CanAccess, d.Reason = true, "acquired"
		} else {
			d.Reason = "acquisition required"
		}
	}
	if d.CanAccess {
		metrics.AccessChecksTotal.WithLabelValues("granted").Inc()
	} else {
		metrics.AccessChecksTotal.WithLabelValues("denied").Inc()
	}
	return d, nil
}

// ValidatePassword grants access when password matches the modpack's hash.
func (s *Service) ValidatePassword(ctx context.Context, modpackID string, userID int64, password string) (bool, error) {
	m, err := s.modpacks.Get(ctx, modpackID)
	if err != nil {
		return false, err
	}
	if m.AccessMethod != MethodPassword || !m.PasswordHash.Valid {
		return false, ErrMethodMismatch
	}
	if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash.String), []byte(strings.TrimSpace(password))) != nil {
		metrics.AcquisitionsTotal.WithLabelValues(MethodPassword, "rejected").Inc()
		return false, nil
	}
	if err := s.purchases.Grant(ctx, modpackID, userID, repo.GrantPassword, sql.NullString{}); err != nil {
		return false, err
	}
	metrics.AcquisitionsTotal.WithLabelValues(MethodPassword, "granted").Inc()
	return true, nil
}

// AcquireTwitch grants access when the user subscribes to any required channel.
func (s *Service) AcquireTwitch(ctx context.Context, modpackID string, userID int64) error {
	m, err := s.modpacks.Get(ctx, modpackID)
	if err != nil {
		return err
	}
	if m.AccessMethod != MethodTwitch || s.twitch == nil {
		return ErrMethodMismatch
	}
	link, err := s.links.TwitchLink(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrTwitchNotLinked
	}
	if err != nil {
		return err
	}
	channels, err := s.modpacks.TwitchChannels(ctx, modpackID)
	if err != nil {
		return err
	}
	ok, err := s.twitch.IsSubscribed(ctx, link, channels)
	if errors.Is(err, twitch.ErrNotLinked) {
		return ErrTwitchNotLinked
	}
	if err != nil {
		return err
	}
	if !ok {
		metrics.AcquisitionsTotal.WithLabelValues(MethodTwitch, "rejected").Inc()
		return ErrNotSubscribed
	}
	if err := s.purchases.Grant(ctx, modpackID, userID, repo.GrantTwitch, sql.NullString{}); err != nil {
		return err
	}
	metrics.AcquisitionsTotal.WithLabelValues(MethodTwitch, "granted").Inc()
	return nil
}

// ClaimFree grants a free modpack, or a paid one whose price is zero.
func (s *Service) ClaimFree(ctx context.Context, modpackID string, userID int64) error {
	m, err := s.modpacks.Get(ctx, modpackID)
	if err != nil {
		return err
	}
	if !IsFree(m) {
		return ErrMethodMismatch
	}
	if err := s.purchases.Grant(ctx, modpackID, userID, repo.GrantFree, sql.NullString{}); err != nil {
		return err
	}
	metrics.AcquisitionsTotal.WithLabelValues(m.AccessMethod, "granted").Inc()
	return nil
}

// IsFree reports whether acquiring m costs nothing.
func IsFree(m repo.Modpack) bool {
	return m.AccessMethod == MethodFree || (m.AccessMethod == MethodPaid && m.PriceCents <= 0)
}
