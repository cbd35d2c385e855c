package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"modpackBack/utils"
)

var errNoToken = errors.New("authorization header missing or invalid")

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Frame-Options", "deny")
		next.ServeHTTP(w, r)
	})
}

func makeResponseJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.WithFields(logrus.Fields{
			"remote": r.RemoteAddr,
			"proto":  r.Proto,
			"method": r.Method,
			"uri":    r.URL.RequestURI(),
		}).Info("request")
		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.logger.WithField("uri", r.URL.RequestURI()).Errorf("panic: %v", err)
				http.Error(w, fmt.Sprintf(`{"error":"internal","message":"%s"}`, http.StatusText(http.StatusInternalServerError)), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", errNoToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

// requireAuth rejects requests without a valid access token.
func (app *application) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			http.Error(w, `{"error":"unauthorized","message":"Authorization header missing or invalid"}`, http.StatusUnauthorized)
			return
		}
		claims, err := app.tokens.Parse(token)
		if err != nil {
			http.Error(w, `{"error":"unauthorized","message":"Invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(utils.WithClaims(r.Context(), claims)))
	})
}

// optionalAuth attaches claims when a valid token is present and otherwise
// lets the request through as anonymous.
func (app *application) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, err := bearerToken(r); err == nil {
			if claims, err := app.tokens.Parse(token); err == nil {
				r = r.WithContext(utils.WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// wsAuthenticator resolves the user of a websocket handshake from the
// Authorization header or the token query parameter.
func (app *application) wsAuthenticator(r *http.Request) (int64, error) {
	token, err := bearerToken(r)
	if err != nil {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			return 0, errNoToken
		}
	}
	claims, err := app.tokens.Parse(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
