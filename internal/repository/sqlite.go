package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"hostdash/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
)

// tables maps each category to its series table. Built once; categories
// are never resolved dynamically.
var tables = map[domain.Category]string{
	domain.CPUTemperature:     "cpu_temperature",
	domain.CPUUtilization:     "cpu_utilization",
	domain.MemoryUtilization:  "memory_utilization",
	domain.StorageUtilization: "storage_utilization",
}

// errNotInitialized is returned by stores used before Init.
var errNotInitialized = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, errors.New("store is not initialized"))

type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	locks  categoryLocks
	now    func() time.Time
}

func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	o := applyOptions(opts)
	return &SQLiteStore{dbPath: path, locks: newCategoryLocks(), now: o.now}
}

func (s *SQLiteStore) Init() error {
	var err error

	s.db, err = sql.Open("sqlite3", sqliteDSN(s.dbPath))
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	if err = s.db.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	for _, c := range domain.Categories() {
		createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		value TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_recorded_at ON %[1]s(recorded_at);`, tables[c])

		if _, err = s.db.Exec(createTableSQL); err != nil {
			return fmt.Errorf("error creating table %s: %w", tables[c], err)
		}
	}

	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, category domain.Category, value float64, at time.Time) error {
	table, err := tableFor(category)
	if err != nil {
		return err
	}
	if s.db == nil {
		return errNotInitialized
	}

	mu := s.locks[category]
	mu.Lock()
	defer mu.Unlock()

	query := fmt.Sprintf("INSERT INTO %s(value, recorded_at) VALUES(?, ?)", table)
	_, err = s.db.ExecContext(ctx, query, strconv.FormatFloat(value, 'f', 2, 64), at.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: error inserting into %s: %w", domain.ErrStoreUnavailable, table, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, category domain.Category, since *time.Time) (domain.Series, error) {
	var series domain.Series

	table, err := tableFor(category)
	if err != nil {
		return series, err
	}
	if s.db == nil {
		return series, errNotInitialized
	}

	query := fmt.Sprintf("SELECT value, recorded_at FROM %s", table)
	var args []interface{}
	if since != nil {
		query += " WHERE recorded_at > ?"
		args = append(args, since.UnixNano())
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return series, fmt.Errorf("%w: error querying %s: %w", domain.ErrStoreUnavailable, table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			text string
			nano int64
		)
		if err := rows.Scan(&text, &nano); err != nil {
			return domain.Series{}, fmt.Errorf("%w: error scanning %s: %w", domain.ErrStoreUnavailable, table, err)
		}
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return domain.Series{}, fmt.Errorf("%w: corrupt value %q in %s: %w", domain.ErrStoreUnavailable, text, table, err)
		}
		series.Values = append(series.Values, value)
		series.Timestamps = append(series.Timestamps, time.Unix(0, nano))
	}

	if err = rows.Err(); err != nil {
		return domain.Series{}, fmt.Errorf("%w: error during rows iteration: %w", domain.ErrStoreUnavailable, err)
	}
	return series, nil
}

// Evict deletes, per category and in one transaction each, the readings
// recorded before now-olderThan. The cutoff is fixed when Evict starts.
func (s *SQLiteStore) Evict(ctx context.Context, olderThan time.Duration) (map[domain.Category]int64, error) {
	if s.db == nil {
		return nil, errNotInitialized
	}

	cutoff := s.now().Add(-olderThan).UnixNano()
	deleted := make(map[domain.Category]int64, len(tables))

	var errs error
	for _, c := range domain.Categories() {
		n, err := s.evictCategory(ctx, c, cutoff)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted[c] = n
	}
	return deleted, errs
}

func (s *SQLiteStore) evictCategory(ctx context.Context, category domain.Category, cutoff int64) (int64, error) {
	table := tables[category]

	mu := s.locks[category]
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: error starting eviction of %s: %w", domain.ErrStoreUnavailable, table, err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE recorded_at < ?", table), cutoff)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("%w: error evicting %s: %w", domain.ErrStoreUnavailable, table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("%w: error counting evictions in %s: %w", domain.ErrStoreUnavailable, table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: error committing eviction of %s: %w", domain.ErrStoreUnavailable, table, err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// sqliteDSN builds a URI filename for path. The path is percent-encoded
// so '?', '#' and '%' stay part of the file name.
func sqliteDSN(path string) string {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_txlock", "immediate")
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + params.Encode()
}

func tableFor(category domain.Category) (string, error) {
	table, ok := tables[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCategory, string(category))
	}
	return table, nil
}

type categoryLocks map[domain.Category]*sync.Mutex

func newCategoryLocks() categoryLocks {
	locks := make(categoryLocks, len(tables))
	for _, c := range domain.Categories() {
		locks[c] = new(sync.Mutex)
	}
	return locks
}
