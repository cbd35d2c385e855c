package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect selects the placeholder style of the underlying driver.
type Dialect int

const (
	DialectMySQL Dialect = iota
	DialectPostgres
)

// DialectFor maps a database/sql driver name to a Dialect.
func DialectFor(driver string) Dialect {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres
	}
	return DialectMySQL
}

// Rebind rewrites ? placeholders into $n for Postgres.
func Rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Conn wraps *sql.DB and rebinds queries for the configured dialect.
type Conn struct {
	db      *sql.DB
	dialect Dialect
}

// NewConn constructs a Conn.
func NewConn(db *sql.DB, dialect Dialect) *Conn {
	return &Conn{db: db, dialect: dialect}
}

// DB returns the wrapped handle.
func (c *Conn) DB() *sql.DB { return c.db }

func (c *Conn) Dialect() Dialect { return c.dialect }

func (c *Conn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, Rebind(c.dialect, query), args...)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, Rebind(c.dialect, query), args...)
}

func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, Rebind(c.dialect, query), args...)
}

// BeginTx starts a transaction that rebinds like its Conn.
func (c *Conn) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, dialect: c.dialect}, nil
}

// Tx wraps *sql.Tx.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, Rebind(t.dialect, query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, Rebind(t.dialect, query), args...)
}

func (t *Tx) Dialect() Dialect { return t.dialect }

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// isDuplicate reports unique-key violations for both supported drivers.
func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
