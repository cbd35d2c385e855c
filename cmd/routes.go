package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modpackBack/internal/explore"
)

func (app *application) routes() (http.Handler, error) {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	optional := alice.New(app.optionalAuth)
	authed := alice.New(app.requireAuth)

	mux := pat.New()

	if err := explore.RegisterExploreRoutes(mux, app.explore, alice.New(), optional, authed); err != nil {
		return nil, err
	}

	mux.Get("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", standardMiddleware.Then(mux))
	return root, nil
}
