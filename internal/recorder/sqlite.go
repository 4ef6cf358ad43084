package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"MarketScreener/internal/model"
)

// SQLiteRecorder persists the run audit log to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a run is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("component", "recorder").Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL UNIQUE,
			timestamp  INTEGER NOT NULL,
			elapsed_ms INTEGER,
			status     TEXT NOT NULL,
			regime     TEXT,
			threshold  INTEGER,
			scanned    INTEGER,
			failed     INTEGER,
			rejected   INTEGER,
			qualified  INTEGER,
			reported   INTEGER,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON screening_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS regime_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			as_of       INTEGER,
			symbol      TEXT,
			regime      TEXT NOT NULL,
			close       REAL,
			sma50       REAL,
			sma200      REAL,
			rsi         REAL,
			change5_pct REAL,
			note        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_regime_ts ON regime_history(timestamp)`,

		`CREATE TABLE IF NOT EXISTS instrument_failures (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			reason    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON instrument_failures(run_id)`,
	}

	return execAll(r.db, stmts)
}

func execAll(db *sql.DB, stmts []string) error {
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:min(40, len(s))], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO screening_runs
		(run_id, timestamp, elapsed_ms, status, regime, threshold,
		 scanned, failed, rejected, qualified, reported, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.StartedAt.Unix(), rec.Elapsed.Milliseconds(), rec.Status,
		string(rec.Regime), rec.Threshold,
		rec.Scanned, rec.Failed, rec.Rejected, rec.Qualified, rec.Reported,
		rec.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordRegime(runID string, snap model.RegimeSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var asOf any
	if !snap.AsOf.IsZero() {
		asOf = snap.AsOf.Unix()
	}
	_, err := r.db.Exec(`INSERT INTO regime_history
		(run_id, timestamp, as_of, symbol, regime, close, sma50, sma200, rsi, change5_pct, note)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		runID, time.Now().Unix(), asOf, snap.Symbol, string(snap.Regime),
		nullable(snap.Close), nullable(snap.SMA50), nullable(snap.SMA200),
		nullable(snap.RSI), nullable(snap.Change5Pct), snap.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecordFailures(evts []FailureEvent) error {
	if len(evts) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO instrument_failures (run_id, timestamp, symbol, reason) VALUES (?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, e := range evts {
		if _, err := stmt.Exec(e.RunID, now, e.Symbol, e.Reason); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert failure %s: %w", e.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Str("component", "recorder").Msg("closing sqlite recorder")
	return r.db.Close()
}

// nullable stores undefined metrics as NULL.
func nullable(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
