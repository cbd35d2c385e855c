package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckPrintsDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"canAccess":false,"reason":"acquisition required","modpackAccessInfo":{"id":"m1","name":"Sky Factory","price":"4.99","currency":"USD","accessMethod":"paid"}}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "check", "m1", "--api", srv.URL, "--token", "tok")
	require.NoError(t, err)
	require.Contains(t, out, "Access:    false")
	require.Contains(t, out, "Sky Factory (m1)")
	require.Contains(t, out, "Price:     4.99 USD")
}

func TestAcquireFreeResumesAction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/explore/modpacks/m1/check-access", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"canAccess":false,"modpackAccessInfo":{"id":"m1","name":"Starter","accessMethod":"free"}}`))
	})
	mux.HandleFunc("/explore/modpacks/m1/acquire/purchase", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"isFree":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := runCLI(t, "acquire", "m1", "--api", srv.URL, "--token", "tok", "--action", "create", "--param", "name=Mine")
	require.NoError(t, err)
	require.Contains(t, out, "[success] Access granted")
	require.Contains(t, out, "-> creating instance from m1 (name=Mine)")
}

func TestAcquirePasswordRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/explore/modpacks/m1/check-access", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"canAccess":false,"modpackAccessInfo":{"id":"m1","accessMethod":"password","requiresPassword":true}}`))
	})
	mux.HandleFunc("/explore/modpacks/m1/validate-password", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":false,"message":"Incorrect password"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := runCLI(t, "acquire", "m1", "--api", srv.URL, "--token", "tok", "--password", "nope")
	require.Error(t, err)
	require.Contains(t, out, "[error] Incorrect password")
}

func TestAcquirePaidWithoutRealtime(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/explore/modpacks/m2/check-access", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"canAccess":false,"modpackAccessInfo":{"id":"m2","name":"Paid","price":"5.00","currency":"USD","accessMethod":"paid"}}`))
	})
	mux.HandleFunc("/explore/modpacks/m2/acquire/purchase", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"paymentId":"p1","approvalUrl":"https://pay/p1","gatewayType":"stripe","amount":"5.00","currency":"USD","status":"pending"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := runCLI(t, "acquire", "m2", "--api", srv.URL, "--token", "tok", "--gateway", "stripe")
	require.NoError(t, err)
	require.Contains(t, out, "Approve:   https://pay/p1")
	require.Contains(t, out, "Realtime updates are disabled")
}

func TestFormatParams(t *testing.T) {
	require.Equal(t, "", formatParams(nil))
	require.Equal(t, " (a=1, b=2)", formatParams(map[string]string{"b": "2", "a": "1"}))
}

func TestWaitForPaymentSeesEarlyFailure(t *testing.T) {
	failed := make(chan string, 8)
	failed <- "other"
	failed <- "p1"

	start := time.Now()
	err := waitForPayment(context.Background(), "p1", make(chan struct{}), failed, time.Minute)
	require.EqualError(t, err, "payment p1 failed")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitForPaymentCompletedAndTimeout(t *testing.T) {
	closed := make(chan struct{})
	close(closed)
	require.NoError(t, waitForPayment(context.Background(), "p1", closed, make(chan string), time.Minute))

	err := waitForPayment(context.Background(), "p1", make(chan struct{}), make(chan string), 10*time.Millisecond)
	require.ErrorIs(t, err, errPaymentTimeout)
}
