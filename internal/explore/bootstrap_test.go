package explore

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bmizerany/pat"
	"github.com/gorilla/websocket"
	"github.com/justinas/alice"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func newTestRouter(t *testing.T) *httptest.Server {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	deps := &ExploreDeps{
		DB:       db,
		DBDriver: "mysql",
		Logger:   nopLogger{},
		Config: ExploreConfig{
			PaymentsChannel:        defaultPaymentsChannel,
			MercadoPagoAccessToken: "TEST-token",
			MercadoPagoBaseURL:     "http://127.0.0.1:0",
			CheckoutReturnURL:      defaultCheckoutReturnURL,
			CheckoutCancelURL:      defaultCheckoutReturnURL,
		},
		AuthenticateWS: func(r *http.Request) (int64, error) {
			if r.Header.Get("Authorization") != "Bearer user-5" {
				return 0, errors.New("unauthorized")
			}
			return 5, nil
		},
	}

	mux := pat.New()
	if err := RegisterExploreRoutes(mux, deps, alice.New(), alice.New(), alice.New()); err != nil {
		t.Fatalf("RegisterExploreRoutes: %v", err)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisterExploreRoutesServesPaymentsSocket(t *testing.T) {
	srv := newTestRouter(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payments"

	header := http.Header{}
	header.Set("Authorization", "Bearer user-5")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if string(msg) != "pong" {
		t.Fatalf("expected pong, got %q", msg)
	}
}

func TestRegisterExploreRoutesRejectsAnonymousSocket(t *testing.T) {
	srv := newTestRouter(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payments"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestRegisterExploreRoutesDisabledGateway(t *testing.T) {
	srv := newTestRouter(t)

	resp, err := http.Post(srv.URL+"/webhooks/stripe", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for a disabled gateway, got %d", resp.StatusCode)
	}
}
