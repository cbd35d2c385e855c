package repo

import (
	"context"
	"database/sql"
)

// Grant methods recorded in modpack_purchases.
const (
	GrantFree     = "free"
	GrantPassword = "password"
	GrantTwitch   = "twitch_subscription"
	GrantPaid     = "paid"
)

// PurchasesRepo stores access grants.
type PurchasesRepo struct {
	conn *Conn
}

// NewPurchasesRepo constructs a PurchasesRepo.
func NewPurchasesRepo(conn *Conn) *PurchasesRepo {
	return &PurchasesRepo{conn: conn}
}

// HasAccess reports whether userID holds a grant for modpackID.
func (r *PurchasesRepo) HasAccess(ctx context.Context, modpackID string, userID int64) (bool, error) {
	var one int
	err := r.conn.QueryRowContext(ctx, `SELECT 1 FROM modpack_purchases WHERE modpack_id = ? AND user_id = ? LIMIT 1`, modpackID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Grant records access. Granting twice is not an error.
func (r *PurchasesRepo) Grant(ctx context.Context, modpackID string, userID int64, method string, paymentID sql.NullString) error {
	return grant(ctx, r.conn, modpackID, userID, method, paymentID)
}

type dialectExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Dialect() Dialect
}

// grantQuery leaves an existing grant untouched without raising an error.
func grantQuery(d Dialect) string {
	if d == DialectPostgres {
		return `INSERT INTO modpack_purchases (modpack_id, user_id, method, payment_id) VALUES (?,?,?,?) ON CONFLICT (modpack_id, user_id) DO NOTHING`
	}
	return `INSERT IGNORE INTO modpack_purchases (modpack_id, user_id, method, payment_id) VALUES (?,?,?,?)`
}

func grant(ctx context.Context, ex dialectExecer, modpackID string, userID int64, method string, paymentID sql.NullString) error {
	_, err := ex.ExecContext(ctx, grantQuery(ex.Dialect()), modpackID, userID, method, paymentID)
	return err
}
