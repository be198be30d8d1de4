package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/localtrace/studio/internal/apierr"
	"github.com/localtrace/studio/internal/model"
)

// SQLiteStore is the SQLite-dialect backend (§4.1). The same type serves
// both the file-backed and the in-memory engine — pass ":memory:" as path
// for the latter, which is also what the test suite and the fake-store
// use-case from the original implementation collapse into (see SPEC_FULL.md).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and, if necessary, creates and migrates) a SQLite database at
// path. WAL mode is enabled so concurrent readers don't block a writer
// (§5), matching the assumption in §5 that file-backed mode runs in WAL.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	// WAL mode allows one writer with concurrent readers. Readers and
	// writers share one pool of up to four connections; SQLite's own
	// locking, with the busy timeout above, serializes the writers. Every
	// connection to ":memory:" is a separate database, so an in-memory
	// store is limited to one connection.
	maxConns := 4
	if path == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type sqlTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) Commit() error {
	if t.readOnly {
		// A read-only transaction observed a consistent snapshot; there is
		// nothing to persist, but SQLite still wants the transaction ended.
		return t.tx.Rollback()
	}
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (s *SQLiteStore) BeginRO(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, apierr.Internalf(err, "beginning read-only transaction")
	}
	return &sqlTx{tx: tx, readOnly: true}, nil
}

func (s *SQLiteStore) BeginRW(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierr.Internalf(err, "beginning read-write transaction")
	}
	return &sqlTx{tx: tx}, nil
}

func underlying(tx Tx) (*sql.Tx, error) {
	t, ok := tx.(*sqlTx)
	if !ok || t.tx == nil {
		return nil, apierr.New(apierr.Internal, "store: tx not produced by this store")
	}
	return t.tx, nil
}

func (s *SQLiteStore) SpanCreate(ctx context.Context, tx Tx, span model.Span) (model.Span, error) {
	t, err := underlying(tx)
	if err != nil {
		return model.Span{}, err
	}

	inner, err := json.Marshal(span)
	if err != nil {
		return model.Span{}, apierr.Internalf(err, "marshaling span")
	}

	var parentSpanID any
	if span.ParentSpanID != nil {
		parentSpanID = string(*span.ParentSpanID)
	}
	var scopeName, scopeVersion any
	if span.ScopeName != nil {
		scopeName = *span.ScopeName
	}
	if span.ScopeVersion != nil {
		scopeVersion = *span.ScopeVersion
	}

	_, err = t.ExecContext(ctx, `
		INSERT INTO spans (
			trace_id, span_id, parent_span_id, name, trace_state, flags,
			kind, scope_name, scope_version, start_time, end_time, inner
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(span.TraceID), string(span.SpanID), parentSpanID, span.Name,
		span.TraceState, span.Flags, string(span.Kind), scopeName, scopeVersion,
		span.StartTime.UnixSeconds(), span.EndTime.UnixSeconds(), string(inner))
	if err != nil {
		if isUniqueConstraint(err) {
			return model.Span{}, apierr.Wrap(apierr.Conflict,
				fmt.Sprintf("span %s/%s already exists", span.TraceID, span.SpanID), err)
		}
		return model.Span{}, apierr.Internalf(err, "inserting span")
	}
	return span, nil
}

func isUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	// Fall back to the driver's message for non-cgo test doubles that wrap
	// the same error text without the typed sqlite3.Error.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) SpanGet(ctx context.Context, tx Tx, traceID model.TraceID, spanID model.SpanID) (model.Span, error) {
	t, err := underlying(tx)
	if err != nil {
		return model.Span{}, err
	}
	var inner string
	err = t.QueryRowContext(ctx,
		`SELECT inner FROM spans WHERE trace_id = ? AND span_id = ?`,
		string(traceID), string(spanID)).Scan(&inner)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Span{}, apierr.Coded(apierr.NotFound, "spanNotFound",
			fmt.Sprintf("span %s/%s not found", traceID, spanID), nil)
	}
	if err != nil {
		return model.Span{}, apierr.Internalf(err, "querying span")
	}
	return decodeSpan(inner)
}

func (s *SQLiteStore) SpanListByTrace(ctx context.Context, tx Tx, traceID model.TraceID) ([]model.Span, error) {
	t, err := underlying(tx)
	if err != nil {
		return nil, err
	}
	rows, err := t.QueryContext(ctx,
		`SELECT inner FROM spans WHERE trace_id = ? ORDER BY rowid`, string(traceID))
	if err != nil {
		return nil, apierr.Internalf(err, "listing spans by trace")
	}
	defer rows.Close()
	return scanSpans(rows)
}

func (s *SQLiteStore) TracesList(ctx context.Context, tx Tx, limit int) ([]model.TraceSummary, error) {
	t, err := underlying(tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTracesListLimit
	}
	rows, err := t.QueryContext(ctx, `
		SELECT trace_id, MAX(end_time)
		FROM spans
		GROUP BY trace_id
		ORDER BY MAX(end_time) DESC, trace_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apierr.Internalf(err, "listing traces")
	}
	defer rows.Close()

	var traceIDs []model.TraceID
	for rows.Next() {
		var traceID string
		var maxEnd float64
		if err := rows.Scan(&traceID, &maxEnd); err != nil {
			return nil, apierr.Internalf(err, "scanning trace row")
		}
		traceIDs = append(traceIDs, model.TraceID(traceID))
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internalf(err, "iterating trace rows")
	}

	summaries := make([]model.TraceSummary, 0, len(traceIDs))
	for _, id := range traceIDs {
		spans, err := s.SpanListByTrace(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, model.SummarizeTrace(id, spans))
	}
	return summaries, nil
}

func (s *SQLiteStore) TraceGet(ctx context.Context, tx Tx, traceID model.TraceID) (model.TraceSummary, error) {
	spans, err := s.SpanListByTrace(ctx, tx, traceID)
	if err != nil {
		return model.TraceSummary{}, err
	}
	if len(spans) == 0 {
		return model.TraceSummary{}, apierr.Coded(apierr.NotFound, "traceNotFound",
			fmt.Sprintf("trace %s not found", traceID), nil)
	}
	return model.SummarizeTrace(traceID, spans), nil
}

func (s *SQLiteStore) SpanDelete(ctx context.Context, tx Tx, traceID model.TraceID, spanID model.SpanID) (int64, error) {
	t, err := underlying(tx)
	if err != nil {
		return 0, err
	}
	res, err := t.ExecContext(ctx,
		`DELETE FROM spans WHERE trace_id = ? AND span_id = ?`, string(traceID), string(spanID))
	if err != nil {
		return 0, apierr.Internalf(err, "deleting span")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apierr.Internalf(err, "reading rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) SpanDeleteByTrace(ctx context.Context, tx Tx, traceID model.TraceID) (int64, error) {
	t, err := underlying(tx)
	if err != nil {
		return 0, err
	}
	res, err := t.ExecContext(ctx, `DELETE FROM spans WHERE trace_id = ?`, string(traceID))
	if err != nil {
		return 0, apierr.Internalf(err, "deleting spans by trace")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apierr.Internalf(err, "reading rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) InsightsListAll(ctx context.Context, tx Tx, newerThan time.Time) ([]model.Span, error) {
	t, err := underlying(tx)
	if err != nil {
		return nil, err
	}
	seconds := float64(newerThan.UnixNano()) / 1e9
	rows, err := t.QueryContext(ctx,
		`SELECT inner FROM spans WHERE start_time >= ?`, seconds)
	if err != nil {
		return nil, apierr.Internalf(err, "listing spans for insights")
	}
	defer rows.Close()
	return scanSpans(rows)
}

func scanSpans(rows *sql.Rows) ([]model.Span, error) {
	var spans []model.Span
	for rows.Next() {
		var inner string
		if err := rows.Scan(&inner); err != nil {
			return nil, apierr.Internalf(err, "scanning span row")
		}
		sp, err := decodeSpan(inner)
		if err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internalf(err, "iterating span rows")
	}
	return spans, nil
}

func decodeSpan(inner string) (model.Span, error) {
	var sp model.Span
	if err := json.Unmarshal([]byte(inner), &sp); err != nil {
		return model.Span{}, apierr.Internalf(err, "decoding stored span")
	}
	return sp, nil
}
