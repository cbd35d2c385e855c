package fsm

import (
	"context"
	"database/sql"
	"errors"
)

// Status is a payment lifecycle state.
type Status string

// Status constants used by the payment state machine.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusProcessing: {},
		StatusCompleted:  {},
		StatusFailed:     {},
	},
	StatusProcessing: {
		StatusCompleted: {},
		StatusFailed:    {},
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// Parse converts a raw status string. Unknown values report ok=false.
func Parse(s string) (Status, bool) {
	st := Status(s)
	_, ok := transitions[st]
	return st, ok
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition returns whether a payment can move from one status to another.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// EventName maps a status to the realtime event name delivered to clients.
func EventName(s Status) string {
	return "payment_" + string(s)
}

// Execer is satisfied by *sql.DB, *sql.Tx and the repo connection wrappers.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Apply updates a payment status using optimistic validation.
func Apply(ctx context.Context, ex Execer, paymentID string, from, to Status) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	res, err := ex.ExecContext(ctx, `UPDATE payments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`, string(to), paymentID, string(from))
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
