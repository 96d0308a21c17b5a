package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Cetendo/EnergyLogger/internal/domain"
	"github.com/Cetendo/EnergyLogger/internal/ports"
)

var (
	// ErrUnknownCategory is returned by Latest for names that are neither a
	// table nor a category alias.
	ErrUnknownCategory = errors.New("store: unknown category")
	// ErrUnsupportedDriver is returned for storage drivers other than sqlite
	// and postgres.
	ErrUnsupportedDriver = errors.New("store: unsupported driver")
)

// DefaultRetention keeps three years of readings.
const DefaultRetention = 3 * 365 * 24 * time.Hour

// DefaultLatestLimit is used by Latest when no positive limit is given.
const DefaultLatestLimit = 100

// SQLStore writes snapshots into one table per category.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Option customizes an SQLStore.
type Option func(*SQLStore)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, opts ...Option) *SQLStore {
	s := &SQLStore{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the configured driver. SQLite databases are switched to
// WAL mode and limited to one connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dialect.Driver == SQLite.Driver {
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return New(db, dialect, opts...), nil
}

func (s *SQLStore) Name() string { return s.dialect.Driver }

// DB returns the underlying handle for custom queries.
func (s *SQLStore) DB() *sql.DB { return s.db }

// EnsureSchema creates every table and timestamp index that does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, t := range domain.Tables {
		if _, err := s.db.ExecContext(ctx, s.dialect.createTable(t)); err != nil {
			return fmt.Errorf("creating table %s: %w", t.Table, err)
		}
		if _, err := s.db.ExecContext(ctx, s.dialect.createIndex(t)); err != nil {
			return fmt.Errorf("creating index on %s: %w", t.Table, err)
		}
	}
	return nil
}

type pendingInsert struct {
	schema domain.TableSchema
	fields *domain.FieldMap
}

// SaveSnapshot inserts one row per known category, all stamped with the same
// Unix second, inside one transaction. Unknown categories are ignored. On
// error nothing is committed and the result is zero.
func (s *SQLStore) SaveSnapshot(ctx context.Context, snap domain.Snapshot) (domain.SaveResult, error) {
	pending := planInserts(snap)
	if len(pending) == 0 {
		return domain.SaveResult{}, nil
	}

	ts := s.now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("begin snapshot: %w", err)
	}

	for _, p := range pending {
		if err := s.insert(ctx, tx, ts, p); err != nil {
			_ = tx.Rollback()
			return domain.SaveResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.SaveResult{}, fmt.Errorf("commit snapshot: %w", err)
	}
	return domain.SaveResult{Snapshots: 1, Categories: len(pending)}, nil
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, ts int64, p pendingInsert) error {
	stmt, err := tx.PrepareContext(ctx, s.dialect.insert(p.schema))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", p.schema.Table, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, rowArgs(ts, p.schema, p.fields)...); err != nil {
		return fmt.Errorf("insert %s: %w", p.schema.Table, err)
	}
	return nil
}

func planInserts(snap domain.Snapshot) []pendingInsert {
	var out []pendingInsert
	for _, t := range domain.Tables {
		reading, ok := snap[t.Category]
		if !ok {
			continue
		}
		fields := reading.Fields
		if t.Subcategory != "" {
			fields = reading.Subcategories[t.Subcategory]
		}
		if fields == nil {
			continue
		}
		out = append(out, pendingInsert{schema: t, fields: fields})
	}
	return out
}

func rowArgs(ts int64, t domain.TableSchema, fields *domain.FieldMap) []any {
	args := make([]any, 0, len(t.Columns)+1)
	args = append(args, ts)

	if t.Positional {
		values := fields.Values()
		for i := range t.Columns {
			if i < len(values) && values[i] != "" {
				args = append(args, values[i])
			} else {
				args = append(args, nil)
			}
		}
		return args
	}

	for _, c := range t.Columns {
		raw, ok := fields.Get(c.Field)
		args = append(args, columnValue(c.Kind, raw, ok))
	}
	return args
}

func columnValue(kind domain.ColumnKind, raw string, present bool) any {
	if !present {
		return nil
	}
	switch kind {
	case domain.KindText:
		return raw
	case domain.KindInteger:
		v, ok := domain.Coerce(raw)
		if !ok {
			return nil
		}
		return int64(math.Trunc(v))
	default:
		v, ok := domain.Coerce(raw)
		if !ok {
			return nil
		}
		return v
	}
}

// PurgeOlderThan deletes every row whose timestamp is before now-horizon and
// returns the number of rows removed across all tables.
func (s *SQLStore) PurgeOlderThan(ctx context.Context, horizon time.Duration) (int64, error) {
	if horizon <= 0 {
		return 0, fmt.Errorf("retention horizon must be positive, got %s", horizon)
	}
	cutoff := s.now().Add(-horizon).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}

	var total int64
	for _, t := range domain.Tables {
		res, err := tx.ExecContext(ctx, s.dialect.deleteBefore(t), cutoff)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("purge %s: %w", t.Table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("purge %s: %w", t.Table, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return total, nil
}

// Latest returns up to limit of the newest rows per table, keyed by table
// name. An empty category selects every table.
func (s *SQLStore) Latest(ctx context.Context, category string, limit int) (map[string][]domain.Row, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}

	tables := domain.Tables
	if category != "" {
		t, ok := domain.LookupTable(category)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		tables = []domain.TableSchema{t}
	}

	out := make(map[string][]domain.Row, len(tables))
	for _, t := range tables {
		rows, err := s.latestFrom(ctx, t, limit)
		if err != nil {
			return nil, err
		}
		out[t.Table] = rows
	}
	return out, nil
}

func (s *SQLStore) latestFrom(ctx context.Context, t domain.TableSchema, limit int) ([]domain.Row, error) {
	rs, err := s.db.QueryContext(ctx, s.dialect.selectLatest(t), limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Table, err)
	}
	defer rs.Close()

	rows := make([]domain.Row, 0)
	for rs.Next() {
		var row domain.Row
		cells := make([]any, len(t.Columns))
		dest := make([]any, 0, len(t.Columns)+2)
		dest = append(dest, &row.ID, &row.Timestamp)
		for i, c := range t.Columns {
			switch c.Kind {
			case domain.KindText:
				cells[i] = new(sql.NullString)
			case domain.KindInteger:
				cells[i] = new(sql.NullInt64)
			default:
				cells[i] = new(sql.NullFloat64)
			}
			dest = append(dest, cells[i])
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Table, err)
		}

		row.Values = make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			row.Values[c.Name] = nullValue(cells[i])
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", t.Table, err)
	}
	return rows, nil
}

func nullValue(cell any) any {
	switch v := cell.(type) {
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	}
	return nil
}

// Stats counts the rows of every table.
func (s *SQLStore) Stats(ctx context.Context) ([]domain.TableStats, error) {
	out := make([]domain.TableStats, 0, len(domain.Tables))
	for _, t := range domain.Tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, s.dialect.count(t)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Table, err)
		}
		out = append(out, domain.TableStats{Table: t.Table, Rows: n})
	}
	return out, nil
}

// Close closes the database. Further calls return the first result.
func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

var _ ports.Store = (*SQLStore)(nil)
