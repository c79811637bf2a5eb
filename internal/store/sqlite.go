package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Amsmoox/tradebot/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS watermarks (
	source                TEXT PRIMARY KEY,
	last_success_at       DATETIME,
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
	scraped_at  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_signals_fingerprint ON signals(fingerprint);
CREATE INDEX IF NOT EXISTS idx_signals_source ON signals(source);
CREATE INDEX IF NOT EXISTS idx_signals_scraped_at ON signals(scraped_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOrCreateWatermark(ctx context.Context, source string, defaultInterval int) (*model.Watermark, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, last_success_at, etag, last_modified, poll_interval, consecutive_no_change
		 FROM watermarks WHERE source = ?`,
		source,
	)

	var wm model.Watermark
	var lastSuccess sql.NullTime
	err := row.Scan(&wm.Source, &lastSuccess, &wm.Validators.ETag, &wm.Validators.LastModified,
		&wm.PollInterval, &wm.ConsecutiveNoChange)
	if err == nil {
		if lastSuccess.Valid {
			t := lastSuccess.Time.UTC()
			wm.LastSuccessAt = &t
		}
		return &wm, nil
	}
	if err != sql.ErrNoRows {
		return nil, eris.Wrapf(err, "sqlite: get watermark %s", source)
	}

	wm = model.Watermark{Source: source, PollInterval: defaultInterval}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO watermarks (source, poll_interval, consecutive_no_change) VALUES (?, ?, 0)`,
		source, defaultInterval,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create watermark %s", source)
	}
	return &wm, nil
}

func (s *SQLiteStore) SaveWatermark(ctx context.Context, wm *model.Watermark) error {
	var lastSuccess any
	if wm.LastSuccessAt != nil {
		lastSuccess = wm.LastSuccessAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE watermarks
		 SET last_success_at = ?, etag = ?, last_modified = ?, poll_interval = ?, consecutive_no_change = ?
		 WHERE source = ?`,
		lastSuccess, wm.Validators.ETag, wm.Validators.LastModified,
		wm.PollInterval, wm.ConsecutiveNoChange, wm.Source,
	)
	return eris.Wrapf(err, "sqlite: save watermark %s", wm.Source)
}

func (s *SQLiteStore) InsertSignal(ctx context.Context, sig model.Signal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, source, instrument, action, entry_price, stop_loss, take_profit,
		                      status, raw_text, source_url, fingerprint, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Source, sig.Instrument, sig.Action, sig.EntryPrice, sig.StopLoss, sig.TakeProfit,
		sig.Status, sig.RawText, sig.SourceURL, sig.Fingerprint, sig.ScrapedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateFingerprint
		}
		return eris.Wrapf(err, "sqlite: insert signal %s", sig.Instrument)
	}
	return nil
}

func (s *SQLiteStore) KnownFingerprints(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM signals`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: known fingerprints")
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fingerprint")
		}
		known[fp] = struct{}{}
	}
	return known, eris.Wrap(rows.Err(), "sqlite: fingerprints iterate")
}

func (s *SQLiteStore) ListSignals(ctx context.Context, filter SignalFilter) ([]model.Signal, error) {
	query := `SELECT id, source, instrument, action, entry_price, stop_loss, take_profit,
	                 status, raw_text, source_url, fingerprint, scraped_at
	          FROM signals WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND scraped_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY scraped_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		if err := rows.Scan(&sig.ID, &sig.Source, &sig.Instrument, &sig.Action, &sig.EntryPrice,
			&sig.StopLoss, &sig.TakeProfit, &sig.Status, &sig.RawText, &sig.SourceURL,
			&sig.Fingerprint, &sig.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.ScrapedAt = sig.ScrapedAt.UTC()
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "sqlite: list signals iterate")
}

func (s *SQLiteStore) CountSignalsSince(ctx context.Context, source string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signals WHERE source = ? AND scraped_at >= ?`,
		source, since.UTC(),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count signals since")
}

func (s *SQLiteStore) CountSignals(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signals WHERE source = ?`, source,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count signals")
}

func (s *SQLiteStore) DeleteSignalsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM signals WHERE scraped_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete old signals")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
