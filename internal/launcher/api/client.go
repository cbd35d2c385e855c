package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"modpackBack/internal/acquisition"
)

// Client talks to the explore REST API on behalf of the launcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient constructs a client for baseURL. A nil httpClient gets a 15s timeout.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

var _ acquisition.Remote = (*Client)(nil)

func (c *Client) CheckAccess(ctx context.Context, modpackID, token string) (acquisition.AccessResponse, error) {
	var out acquisition.AccessResponse
	err := c.do(ctx, "check access", http.MethodGet, modpackPath(modpackID, "check-access"), token, nil, &out)
	return out, err
}

func (c *Client) ValidatePassword(ctx context.Context, modpackID, token, password string) (acquisition.PasswordResponse, error) {
	var out acquisition.PasswordResponse
	body := map[string]string{"password": password}
	err := c.do(ctx, "validate password", http.MethodPost, modpackPath(modpackID, "validate-password"), token, body, &out)
	return out, err
}

func (c *Client) Purchase(ctx context.Context, modpackID, token string, req acquisition.PurchaseRequest) (acquisition.PurchaseResponse, error) {
	var out acquisition.PurchaseResponse
	err := c.do(ctx, "purchase", http.MethodPost, modpackPath(modpackID, "acquire/purchase"), token, req, &out)
	return out, err
}

func (c *Client) AcquireTwitch(ctx context.Context, modpackID, token string) (acquisition.TwitchResponse, error) {
	var out acquisition.TwitchResponse
	err := c.do(ctx, "twitch", http.MethodPost, modpackPath(modpackID, "acquire/twitch"), token, struct{}{}, &out)
	return out, err
}

func modpackPath(id, action string) string {
	return "/explore/modpacks/" + url.PathEscape(id) + "/" + action
}

// errorBody is the error envelope written by the server.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &acquisition.TransportError{Op: op, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &acquisition.TransportError{Op: op, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return &acquisition.RejectedError{
			Message: msg,
			Cause:   fmt.Errorf("%s: http %s: %s", op, resp.Status, strings.TrimSpace(string(raw))),
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// IsTransport reports whether err is a network failure.
func IsTransport(err error) bool {
	var te *acquisition.TransportError
	return errors.As(err, &te)
}
