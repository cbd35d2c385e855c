package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"modpackBack/internal/explore/fsm"
)

const pgGrant = `INSERT INTO modpack_purchases (modpack_id, user_id, method, payment_id) VALUES ($1,$2,$3,$4) ON CONFLICT (modpack_id, user_id) DO NOTHING`

func newMock(t *testing.T, dialect Dialect) (*Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConn(db, dialect), mock
}

func TestRebind(t *testing.T) {
	q := `UPDATE payments SET status = ? WHERE id = ? AND status = ?`
	require.Equal(t, q, Rebind(DialectMySQL, q))
	require.Equal(t, `UPDATE payments SET status = $1 WHERE id = $2 AND status = $3`, Rebind(DialectPostgres, q))
	require.Equal(t, DialectPostgres, DialectFor("pgx"))
	require.Equal(t, DialectMySQL, DialectFor("mysql"))
}

func TestIsDuplicate(t *testing.T) {
	require.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	require.False(t, isDuplicate(&mysql.MySQLError{Number: 1452}))
	require.True(t, isDuplicate(&pgconn.PgError{Code: "23505"}))
	require.False(t, isDuplicate(errors.New("boom")))
}

func TestGrantIsIdempotent(t *testing.T) {
	conn, mock := newMock(t, DialectMySQL)
	mock.ExpectExec(`INSERT IGNORE INTO modpack_purchases (modpack_id, user_id, method, payment_id) VALUES (?,?,?,?)`).
		WithArgs("m1", int64(7), GrantFree, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPurchasesRepo(conn).Grant(context.Background(), "m1", 7, GrantFree, sql.NullString{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantPostgresSkipsConflict(t *testing.T) {
	conn, mock := newMock(t, DialectPostgres)
	mock.ExpectExec(`INSERT INTO modpack_purchases (modpack_id, user_id, method, payment_id) VALUES ($1,$2,$3,$4) ON CONFLICT (modpack_id, user_id) DO NOTHING`).
		WithArgs("m1", int64(7), GrantPassword, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPurchasesRepo(conn).Grant(context.Background(), "m1", 7, GrantPassword, sql.NullString{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasAccess(t *testing.T) {
	conn, mock := newMock(t, DialectMySQL)
	q := `SELECT 1 FROM modpack_purchases WHERE modpack_id = ? AND user_id = ? LIMIT 1`
	mock.ExpectQuery(q).WithArgs("m1", int64(7)).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(q).WithArgs("m2", int64(7)).WillReturnError(sql.ErrNoRows)

	r := NewPurchasesRepo(conn)
	ok, err := r.HasAccess(context.Background(), "m1", 7)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.HasAccess(context.Background(), "m2", 7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestModpackGetNotFound(t *testing.T) {
	conn, mock := newMock(t, DialectMySQL)
	mock.ExpectQuery(`SELECT id, name, owner_id, price_cents, currency, access_method, password_hash, status FROM modpacks WHERE id = ? AND status = 'published'`).
		WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := NewModpacksRepo(conn).Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionCompletedGrantsInTx(t *testing.T) {
	conn, mock := newMock(t, DialectPostgres)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3`).
		WithArgs("completed", "p1", "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payments SET message = $1 WHERE id = $2`).
		WithArgs("Payment completed", "p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(pgGrant).
		WithArgs("m2", int64(7), GrantPaid, sql.NullString{String: "p1", Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := Payment{ID: "p1", UserID: 7, ModpackID: "m2", Status: fsm.StatusPending}
	err := NewPaymentsRepo(conn).Transition(context.Background(), p, fsm.StatusCompleted, "Payment completed")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A user who already owns the modpack can still complete a second checkout;
// the grant insert affects no rows and the transaction commits.
func TestTransitionCompletedWithExistingGrant(t *testing.T) {
	conn, mock := newMock(t, DialectPostgres)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3`).
		WithArgs("completed", "p2", "processing").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(pgGrant).
		WithArgs("m2", int64(7), GrantPaid, sql.NullString{String: "p2", Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	p := Payment{ID: "p2", UserID: 7, ModpackID: "m2", Status: fsm.StatusProcessing}
	err := NewPaymentsRepo(conn).Transition(context.Background(), p, fsm.StatusCompleted, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionLostRaceIsConflict(t *testing.T) {
	conn, mock := newMock(t, DialectMySQL)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`).
		WithArgs("failed", "p1", "processing").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	p := Payment{ID: "p1", Status: fsm.StatusProcessing}
	err := NewPaymentsRepo(conn).Transition(context.Background(), p, fsm.StatusFailed, "")
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsTerminalExit(t *testing.T) {
	conn, mock := newMock(t, DialectMySQL)
	mock.ExpectBegin()
	mock.ExpectRollback()

	p := Payment{ID: "p1", Status: fsm.StatusCompleted}
	err := NewPaymentsRepo(conn).Transition(context.Background(), p, fsm.StatusFailed, "")
	require.ErrorIs(t, err, fsm.ErrInvalidTransition)
}

func TestListStale(t *testing.T) {
	conn, mock := newMock(t, DialectMySQL)
	before := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cols := []string{"id", "user_id", "modpack_id", "gateway", "amount_cents", "currency", "status",
		"gateway_ref", "approval_url", "qr_payload", "message", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT ` + paymentColumns + ` FROM payments WHERE status = ? AND updated_at < ? ORDER BY updated_at LIMIT ?`).
		WithArgs("pending", before, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("p1", 7, "m2", "paypal", 500, "USD", "pending", "ORDER-1", "https://pay/p1", nil, nil, before, before))

	out, err := NewPaymentsRepo(conn).ListStale(context.Background(), before, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, fsm.StatusPending, out[0].Status)
	require.Equal(t, "ORDER-1", out[0].GatewayRef.String)
	require.False(t, out[0].QRPayload.Valid)
}
