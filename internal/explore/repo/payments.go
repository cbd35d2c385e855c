package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modpackBack/internal/explore/fsm"
)

// Payment represents the payments table.
type Payment struct {
	ID          string
	UserID      int64
	ModpackID   string
	Gateway     string
	AmountCents int64
	Currency    string
	Status      fsm.Status
	GatewayRef  sql.NullString
	ApprovalURL sql.NullString
	QRPayload   sql.NullString
	Message     sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentsRepo handles payments and payment_webhooks tables.
type PaymentsRepo struct {
	conn *Conn
}

// NewPaymentsRepo creates repo.
func NewPaymentsRepo(conn *Conn) *PaymentsRepo { return &PaymentsRepo{conn: conn} }

const paymentColumns = `id, user_id, modpack_id, gateway, amount_cents, currency, status, gateway_ref, approval_url, qr_payload, message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.ModpackID, &p.Gateway, &p.AmountCents, &p.Currency, &status,
		&p.GatewayRef, &p.ApprovalURL, &p.QRPayload, &p.Message, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payment{}, err
	}
	p.Status = fsm.Status(status)
	return p, nil
}

// Create inserts a pending payment record.
func (r *PaymentsRepo) Create(ctx context.Context, p Payment) error {
	if p.Status == "" {
		p.Status = fsm.StatusPending
	}
	_, err := r.conn.ExecContext(ctx, `INSERT INTO payments (id, user_id, modpack_id, gateway, amount_cents, currency, status) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.ModpackID, p.Gateway, p.AmountCents, p.Currency, string(p.Status))
	if err != nil && isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Get loads a payment by id.
func (r *PaymentsRepo) Get(ctx context.Context, id string) (Payment, error) {
	p, err := scanPayment(r.conn.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

// GetByGatewayRef loads a payment by the gateway's own identifier.
func (r *PaymentsRepo) GetByGatewayRef(ctx context.Context, gateway, ref string) (Payment, error) {
	p, err := scanPayment(r.conn.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway = ? AND gateway_ref = ?`, gateway, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

// AttachCheckout stores the gateway reference and the customer-facing checkout fields.
func (r *PaymentsRepo) AttachCheckout(ctx context.Context, id, gatewayRef, approvalURL, qrPayload string) error {
	res, err := r.conn.ExecContext(ctx, `UPDATE payments SET gateway_ref = ?, approval_url = ?, qr_payload = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		gatewayRef, approvalURL, nullable(qrPayload), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves a payment from one status to another. A completed payment
// grants the modpack in the same transaction. ErrConflict means the row was no
// longer in the expected status.
func (r *PaymentsRepo) Transition(ctx context.Context, p Payment, to fsm.Status, message string) error {
	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fsm.Apply(ctx, tx, p.ID, p.Status, to); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return err
	}
	if message != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE payments SET message = ? WHERE id = ?`, message, p.ID); err != nil {
			return err
		}
	}
	if to == fsm.StatusCompleted {
		ref := sql.NullString{String: p.ID, Valid: true}
		if err := grant(ctx, tx, p.ModpackID, p.UserID, GrantPaid, ref); err != nil {
			return fmt.Errorf("grant modpack %s: %w", p.ModpackID, err)
		}
	}
	return tx.Commit()
}

// ListStale returns pending payments not updated since before.
func (r *PaymentsRepo) ListStale(ctx context.Context, before time.Time, limit int) ([]Payment, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE status = ? AND updated_at < ? ORDER BY updated_at LIMIT ?`,
		string(fsm.StatusPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveWebhook stores webhook payload.
func (r *PaymentsRepo) SaveWebhook(ctx context.Context, provider, signature string, payload []byte) error {
	_, err := r.conn.ExecContext(ctx, `INSERT INTO payment_webhooks (provider, signature, body_json) VALUES (?,?,?)`, provider, signature, payload)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
