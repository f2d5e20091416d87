package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/theoremus-urban-solutions/routemap/ingest"
	"github.com/theoremus-urban-solutions/routemap/tracking"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	name       string
	sqlDriver  string
	migrations string
	numbered   bool // $1 placeholders instead of ?
}

var dialects = map[string]dialect{
	DriverSQLite:   {name: DriverSQLite, sqlDriver: "sqlite", migrations: "sqlite"},
	DriverPostgres: {name: DriverPostgres, sqlDriver: "pgx", migrations: "postgres", numbered: true},
}

// rebind rewrites ? placeholders for dialects that number them
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a position archive
type Store struct {
	db      *sql.DB
	dialect dialect
	log     *zap.Logger
	now     func() time.Time

	skipMigrate bool
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithoutMigrations opens the store as is; used by the migrate command
func WithoutMigrations() Option { return func(s *Store) { s.skipMigrate = true } }

// Open connects to dsn using driver ("sqlite" or "postgres") and applies migrations
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.name == DriverSQLite {
		// a single writer avoids SQLITE_BUSY between the recorder and replays
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, dialect: d, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("history")

	if s.skipMigrate {
		return s, nil
	}
	if err := s.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append stores records tagged with source. Invalid points are skipped and not counted.
func (s *Store) Append(ctx context.Context, source string, records []ingest.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(
		`INSERT INTO positions (source, entity_key, fields, ts, lat, lon, raw, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	recordedAt := s.now().Unix()
	n := 0
	for _, r := range records {
		if err := r.Point.Validate(); err != nil {
			s.log.Debug("skipping invalid point", zap.Error(err))
			continue
		}
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, fmt.Errorf("encode fields: %w", err)
		}
		var raw any
		if len(r.Point.Raw) > 0 {
			b, err := json.Marshal(r.Point.Raw)
			if err != nil {
				return 0, fmt.Errorf("encode raw: %w", err)
			}
			raw = string(b)
		}
		key := string(tracking.NewEntityKey(r.Fields))
		if _, err := stmt.ExecContext(ctx, source, key, string(fields), r.Point.TS, r.Point.Lat, r.Point.Lon, raw, recordedAt); err != nil {
			return 0, fmt.Errorf("insert position: %w", err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Query returns records with from <= ts <= to ordered by ts then insertion order
func (s *Store) Query(ctx context.Context, from, to float64) ([]ingest.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT fields, ts, lat, lon, raw FROM positions
		 WHERE ts >= ? AND ts <= ?
		 ORDER BY ts, id`), from, to)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ingest.Record
	for rows.Next() {
		var (
			fields []byte
			raw    []byte
			rec    ingest.Record
		)
		if err := rows.Scan(&fields, &rec.Point.TS, &rec.Point.Lat, &rec.Point.Lon, &raw); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Point.Raw); err != nil {
				return nil, fmt.Errorf("decode raw: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Bounds returns the oldest and newest stored timestamps. ok is false for an empty archive.
func (s *Store) Bounds(ctx context.Context) (from, to float64, ok bool, err error) {
	var minTS, maxTS sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `SELECT MIN(ts), MAX(ts) FROM positions`).Scan(&minTS, &maxTS)
	if err != nil {
		return 0, 0, false, fmt.Errorf("query bounds: %w", err)
	}
	if !minTS.Valid || !maxTS.Valid {
		return 0, 0, false, nil
	}
	return minTS.Float64, maxTS.Float64, true, nil
}

// Prune deletes records older than before and returns how many were removed
func (s *Store) Prune(ctx context.Context, before float64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM positions WHERE ts < ?`), before)
	if err != nil {
		return 0, fmt.Errorf("prune positions: %w", err)
	}
	return res.RowsAffected()
}
