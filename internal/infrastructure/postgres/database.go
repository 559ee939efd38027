package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	dbTracer      = otel.Tracer("fraudserve/db")
	dbMeter       = otel.Meter("fraudserve/db")
	dbDuration, _ = dbMeter.Float64Histogram("db.client.operation.duration",
		metric.WithDescription("Database call duration in seconds"),
		metric.WithUnit("s"),
	)
)

// Artifact reads happen at startup and publish time only, so the pool is small.
const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// DB is a *sql.DB whose calls are traced and timed.
type DB struct {
	*sql.DB
}

// Option tunes the connection pool.
type Option func(*sql.DB)

// WithMaxOpenConns overrides the open connection limit.
func WithMaxOpenConns(n int) Option {
	return func(db *sql.DB) { db.SetMaxOpenConns(n) }
}

// New opens and pings a postgres pool.
func New(connStr string, opts ...Option) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	for _, opt := range opts {
		opt(db)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// call is one traced database operation.
type call struct {
	span      trace.Span
	operation string
	start     time.Time
}

func startCall(ctx context.Context, name, query string) (context.Context, *call) {
	op := extractSQLVerb(query)
	ctx, span := dbTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.statement", sanitizeQuery(query)),
	))
	return ctx, &call{span: span, operation: op, start: time.Now()}
}

func (c *call) end(ctx context.Context, err error) {
	outcome := "ok"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		outcome = "error"
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	dbDuration.Record(ctx, time.Since(c.start).Seconds(), metric.WithAttributes(
		attribute.String("db.operation", c.operation),
		attribute.String("outcome", outcome),
	))
	c.span.End()
}

// QueryContext wraps sql.DB.QueryContext with tracing.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, c := startCall(ctx, "db.Query", query)
	rows, err := db.DB.QueryContext(ctx, query, args...)
	c.end(ctx, err)
	return rows, err
}

// tracedRow keeps the call open until Scan, where sql.Row surfaces its
// errors. sql.ErrNoRows is not recorded as a span error.
type tracedRow struct {
	ctx  context.Context
	row  *sql.Row
	call *call
}

func (r *tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if r.call != nil {
		r.call.end(r.ctx, err)
		r.call = nil
	}
	return err
}

// QueryRowContext wraps sql.DB.QueryRowContext with tracing.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *tracedRow {
	ctx, c := startCall(ctx, "db.QueryRow", query)
	return &tracedRow{ctx: ctx, row: db.DB.QueryRowContext(ctx, query, args...), call: c}
}

// ExecContext wraps sql.DB.ExecContext with tracing.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, c := startCall(ctx, "db.Exec", query)
	result, err := db.DB.ExecContext(ctx, query, args...)
	c.end(ctx, err)
	return result, err
}

// InTx runs fn inside a traced transaction, committing when fn succeeds.
// Statements fn runs on tx share the transaction span.
func (db *DB) InTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) (err error) {
	ctx, span := dbTracer.Start(ctx, "db.Tx", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.transaction", name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// sanitizeQuery masks string and numeric literals so traced statements never
// carry values. $N placeholders are kept.
func sanitizeQuery(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	i := 0
	for i < len(q) {
		ch := q[i]

		// Replace quoted string literals: 'value' → '?'
		if ch == '\'' {
			b.WriteString("'?'")
			i++
			for i < len(q) {
				if q[i] == '\'' {
					if i+1 < len(q) && q[i+1] == '\'' {
						i += 2 // escaped quote ''
						continue
					}
					i++ // closing quote
					break
				}
				i++
			}
			continue
		}

		// Replace bare numeric literals that aren't $N parameters
		if unicode.IsDigit(rune(ch)) && (i == 0 || !isIdentChar(q[i-1])) {
			// Check it's not a $N placeholder
			if i > 0 && q[i-1] == '$' {
				b.WriteByte(ch)
				i++
				continue
			}
			b.WriteByte('?')
			for i < len(q) && (unicode.IsDigit(rune(q[i])) || q[i] == '.') {
				i++
			}
			continue
		}

		b.WriteByte(ch)
		i++
	}

	s := strings.Join(strings.Fields(b.String()), " ")
	if len(s) > maxStatementLength {
		return s[:maxStatementLength] + "..."
	}
	return s
}

const maxStatementLength = 256

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func extractSQLVerb(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
