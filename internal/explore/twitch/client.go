package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"modpackBack/internal/explore/repo"
)

// ErrNotLinked is returned when the user has no linked streaming account.
var ErrNotLinked = errors.New("twitch: account not linked")

// TokenStore persists refreshed user tokens.
type TokenStore interface {
	SaveTwitchToken(ctx context.Context, userID int64, access, refresh string, expiry time.Time) error
}

// Config holds the application credentials registered with Twitch.
type Config struct {
	ClientID     string
	ClientSecret string
	HelixURL     string
	TokenURL     string
}

// Client checks channel subscriptions through the Helix API.
type Client struct {
	oauth    oauth2.Config
	helixURL string
	store    TokenStore
}

// NewClient constructs a Client.
func NewClient(cfg Config, store TokenStore) *Client {
	if cfg.HelixURL == "" {
		cfg.HelixURL = "https://api.twitch.tv/helix"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://id.twitch.tv/oauth2/token"
	}
	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
			Scopes:       []string{"user:read:subscriptions"},
		},
		helixURL: strings.TrimRight(cfg.HelixURL, "/"),
		store:    store,
	}
}

// IsSubscribed reports whether the linked user subscribes to any of the
// broadcaster logins. Refreshed tokens are written back to the store.
func (c *Client) IsSubscribed(ctx context.Context, link repo.TwitchLink, logins []string) (bool, error) {
	if link.TwitchUserID == "" {
		return false, ErrNotLinked
	}
	if len(logins) == 0 {
		return false, nil
	}

	current := &oauth2.Token{
		AccessToken:  link.AccessToken,
		RefreshToken: link.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       link.Expiry,
	}
	ts := oauth2.ReuseTokenSource(current, c.oauth.TokenSource(ctx, current))
	httpClient := oauth2.NewClient(ctx, ts)
	defer c.persist(ctx, link, ts)

	broadcasters, err := c.broadcasterIDs(ctx, httpClient, logins)
	if err != nil {
		return false, err
	}
	for _, id := range broadcasters {
		ok, err := c.checkSubscription(ctx, httpClient, id, link.TwitchUserID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) persist(ctx context.Context, link repo.TwitchLink, ts oauth2.TokenSource) {
	if c.store == nil {
		return
	}
	tok, err := ts.Token()
	if err != nil || tok.AccessToken == link.AccessToken {
		return
	}
	_ = c.store.SaveTwitchToken(ctx, link.UserID, tok.AccessToken, tok.RefreshToken, tok.Expiry)
}

func (c *Client) broadcasterIDs(ctx context.Context, httpClient *http.Client, logins []string) ([]string, error) {
	q := url.Values{}
	for _, l := range logins {
		q.Add("login", strings.ToLower(strings.TrimSpace(l)))
	}
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	status, err := c.get(ctx, httpClient, "/users?"+q.Encode(), &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("twitch: users lookup status %d", status)
	}
	ids := make([]string, 0, len(out.Data))
	for _, d := range out.Data {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (c *Client) checkSubscription(ctx context.Context, httpClient *http.Client, broadcasterID, userID string) (bool, error) {
	q := url.Values{"broadcaster_id": {broadcasterID}, "user_id": {userID}}
	var out struct {
		Data []struct {
			Tier string `json:"tier"`
		} `json:"data"`
	}
	status, err := c.get(ctx, httpClient, "/subscriptions/user?"+q.Encode(), &out)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return len(out.Data) > 0, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("twitch: subscription check status %d", status)
}

func (c *Client) get(ctx context.Context, httpClient *http.Client, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.helixURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Client-Id", c.oauth.ClientID)

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("twitch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}
