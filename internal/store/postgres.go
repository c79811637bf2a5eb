package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Amsmoox/tradebot/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS watermarks (
	source                TEXT PRIMARY KEY,
	last_success_at       TIMESTAMPTZ,
	etag                  TEXT NOT NULL DEFAULT '',
	last_modified         TEXT NOT NULL DEFAULT '',
	poll_interval         INTEGER NOT NULL,
	consecutive_no_change INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	action      TEXT NOT NULL,
	entry_price TEXT NOT NULL DEFAULT '',
	stop_loss   TEXT NOT NULL DEFAULT '',
	take_profit TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	raw_text    TEXT NOT NULL DEFAULT '',
	source_url  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_fingerprint ON signals(fingerprint);
CREATE INDEX IF NOT EXISTS idx_signals_source ON signals(source);
CREATE INDEX IF NOT EXISTS idx_signals_scraped_at ON signals(scraped_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetOrCreateWatermark(ctx context.Context, source string, defaultInterval int) (*model.Watermark, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT source, last_success_at, etag, last_modified, poll_interval, consecutive_no_change
		 FROM watermarks WHERE source = $1`,
		source,
	)

	var wm model.Watermark
	var lastSuccess *time.Time
	err := row.Scan(&wm.Source, &lastSuccess, &wm.Validators.ETag, &wm.Validators.LastModified,
		&wm.PollInterval, &wm.ConsecutiveNoChange)
	if err == nil {
		wm.LastSuccessAt = lastSuccess
		return &wm, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: get watermark %s", source)
	}

	wm = model.Watermark{Source: source, PollInterval: defaultInterval}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO watermarks (source, poll_interval, consecutive_no_change) VALUES ($1, $2, 0)`,
		source, defaultInterval,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create watermark %s", source)
	}
	return &wm, nil
}

func (s *PostgresStore) SaveWatermark(ctx context.Context, wm *model.Watermark) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE watermarks
		 SET last_success_at = $1, etag = $2, last_modified = $3, poll_interval = $4, consecutive_no_change = $5
		 WHERE source = $6`,
		wm.LastSuccessAt, wm.Validators.ETag, wm.Validators.LastModified,
		wm.PollInterval, wm.ConsecutiveNoChange, wm.Source,
	)
	return eris.Wrapf(err, "postgres: save watermark %s", wm.Source)
}

func (s *PostgresStore) InsertSignal(ctx context.Context, sig model.Signal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO signals (id, source, instrument, action, entry_price, stop_loss, take_profit,
		                      status, raw_text, source_url, fingerprint, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sig.ID, sig.Source, sig.Instrument, sig.Action, sig.EntryPrice, sig.StopLoss, sig.TakeProfit,
		sig.Status, sig.RawText, sig.SourceURL, sig.Fingerprint, sig.ScrapedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateFingerprint
		}
		return eris.Wrapf(err, "postgres: insert signal %s", sig.Instrument)
	}
	return nil
}

func (s *PostgresStore) KnownFingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT fingerprint FROM signals`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: known fingerprints")
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fingerprint")
		}
		known[fp] = struct{}{}
	}
	return known, eris.Wrap(rows.Err(), "postgres: fingerprints iterate")
}

func (s *PostgresStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query := `SELECT id, source, instrument, action, entry_price, stop_loss, take_profit,
	                 status, raw_text, source_url, fingerprint, scraped_at
	          FROM signals WHERE 1=1`
	var args []any

	if filter.Source != "" {
		args = append(args, filter.Source)
		query += ` AND source = $1`
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += ` AND scraped_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY scraped_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		if err := rows.Scan(&sig.ID, &sig.Source, &sig.Instrument, &sig.Action, &sig.EntryPrice,
			&sig.StopLoss, &sig.TakeProfit, &sig.Status, &sig.RawText, &sig.SourceURL,
			&sig.Fingerprint, &sig.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "postgres: list signals iterate")
}

func (s *PostgresStore) CountSignalsSince(ctx context.Context, source string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signals WHERE source = $1 AND scraped_at >= $2`,
		source, since.UTC(),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count signals since")
}

func (s *PostgresStore) CountSignals(ctx context.Context, source string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM signals WHERE source = $1`, source,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count signals")
}

func (s *PostgresStore) DeleteSignalsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.pool.Exec(ctx,
		`DELETE FROM signals WHERE scraped_at < $1`, cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete old signals")
	}
	return int(res.RowsAffected()), nil
}

