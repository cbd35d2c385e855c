package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TwitchLink is a user's linked streaming account.
type TwitchLink struct {
	UserID       int64
	TwitchUserID string
	Login        string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// AccountsRepo stores linked third-party accounts.
type AccountsRepo struct {
	conn *Conn
}

// NewAccountsRepo constructs an AccountsRepo.
func NewAccountsRepo(conn *Conn) *AccountsRepo { return &AccountsRepo{conn: conn} }

// TwitchLink returns the linked account or ErrNotFound.
func (r *AccountsRepo) TwitchLink(ctx context.Context, userID int64) (TwitchLink, error) {
	var l TwitchLink
	var expiry sql.NullTime
	err := r.conn.QueryRowContext(ctx, `SELECT user_id, twitch_user_id, login, access_token, refresh_token, token_expiry FROM twitch_links WHERE user_id = ?`, userID).
		Scan(&l.UserID, &l.TwitchUserID, &l.Login, &l.AccessToken, &l.RefreshToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return TwitchLink{}, ErrNotFound
	}
	if err != nil {
		return TwitchLink{}, err
	}
	if expiry.Valid {
		l.Expiry = expiry.Time
	}
	return l, nil
}

// SaveTwitchToken persists a refreshed token pair.
func (r *AccountsRepo) SaveTwitchToken(ctx context.Context, userID int64, access, refresh string, expiry time.Time) error {
	_, err := r.conn.ExecContext(ctx, `UPDATE twitch_links SET access_token = ?, refresh_token = ?, token_expiry = ? WHERE user_id = ?`, access, refresh, expiry, userID)
	return err
}
