package explore

import (
	"database/sql"
	"errors"

	"github.com/redis/go-redis/v9"

	"modpackBack/internal/explore/ws"
)

// Logger provides minimal logging required by the explore module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ExploreDeps groups external dependencies needed by the explore module.
type ExploreDeps struct {
	DB       *sql.DB
	DBDriver string
	// RDB is optional; without it payment events stay in-process.
	RDB    *redis.Client
	Logger Logger
	Config ExploreConfig
	// AuthenticateWS resolves the user of a payments websocket handshake.
	AuthenticateWS ws.Authenticator
	module         *moduleState
}

// Validate ensures required dependencies are provided.
func (d *ExploreDeps) Validate() error {
	if d.DB == nil {
		return errors.New("explore deps: DB is required")
	}
	if d.Logger == nil {
		return errors.New("explore deps: Logger is required")
	}
	if d.AuthenticateWS == nil {
		return errors.New("explore deps: AuthenticateWS is required")
	}
	return nil
}
