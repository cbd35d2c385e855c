package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"modpackBack/internal/explore"
	"modpackBack/utils"
)

type application struct {
	logger  *logrus.Logger
	tokens  *utils.Manager
	explore *explore.ExploreDeps
}

func initializeApp(logger *logrus.Logger, tokens *utils.Manager, deps *explore.ExploreDeps) *application {
	app := &application{
		logger:  logger,
		tokens:  tokens,
		explore: deps,
	}
	deps.AuthenticateWS = app.wsAuthenticator
	return app
}

// openDB accepts the driver names registered above: mysql and pgx.
func openDB(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = "mysql"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	db.SetMaxIdleConns(35)
	return db, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// newStdLogger routes net/http server errors into logrus.
func newStdLogger(logger *logrus.Logger) *log.Logger {
	return log.New(logger.WriterLevel(logrus.ErrorLevel), "", 0)
}
