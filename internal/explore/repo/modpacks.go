package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Modpack represents the modpacks table.
type Modpack struct {
	ID           string
	Name         string
	OwnerID      int64
	PriceCents   int64
	Currency     string
	AccessMethod string
	PasswordHash sql.NullString
	Status       string
}

// ModpacksRepo provides access to modpacks and their gating settings.
type ModpacksRepo struct {
	conn *Conn
}

// NewModpacksRepo constructs a ModpacksRepo.
func NewModpacksRepo(conn *Conn) *ModpacksRepo {
	return &ModpacksRepo{conn: conn}
}

// Get loads a published modpack.
func (r *ModpacksRepo) Get(ctx context.Context, id string) (Modpack, error) {
	var m Modpack
	err := r.conn.QueryRowContext(ctx, `SELECT id, name, owner_id, price_cents, currency, access_method, password_hash, status FROM modpacks WHERE id = ? AND status = 'published'`, id).
		Scan(&m.ID, &m.Name, &m.OwnerID, &m.PriceCents, &m.Currency, &m.AccessMethod, &m.PasswordHash, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Modpack{}, ErrNotFound
	}
	if err != nil {
		return Modpack{}, fmt.Errorf("get modpack %s: %w", id, err)
	}
	return m, nil
}

// TwitchChannels lists the channel logins whose subscribers may acquire the modpack.
func (r *ModpacksRepo) TwitchChannels(ctx context.Context, id string) ([]string, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT channel_login FROM modpack_twitch_channels WHERE modpack_id = ? ORDER BY channel_login`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, err
		}
		out = append(out, login)
	}
	return out, rows.Err()
}
