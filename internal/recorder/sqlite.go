package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"VolumeSentinel/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			mode        TEXT,
			trade_date  TEXT,
			instruments INTEGER,
			updated     INTEGER,
			unchanged   INTEGER,
			failed      INTEGER,
			skipped     INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS screen_hits (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			trade_date  TEXT NOT NULL,
			rule        TEXT NOT NULL,
			rank        INTEGER,
			code        TEXT NOT NULL,
			name        TEXT,
			close       TEXT,
			volume      INTEGER,
			mean_volume REAL,
			std_volume  REAL,
			zscore      REAL,
			ratio       REAL,
			pct_chg     TEXT,
			amount      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_date ON screen_hits(trade_date, rule)`,

		`CREATE TABLE IF NOT EXISTS backtest_summaries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			trade_date TEXT,
			rule       TEXT NOT NULL,
			horizon    INTEGER,
			count      INTEGER,
			avg_1d     REAL,
			win_1d     REAL,
			avg_nd     REAL,
			win_nd     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_ts ON backtest_summaries(timestamp)`,

		`CREATE TABLE IF NOT EXISTS sync_failures (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			trade_date TEXT,
			code       TEXT NOT NULL,
			name       TEXT,
			outcome    TEXT,
			reason     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_code ON sync_failures(code)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(timestamp, mode, trade_date, instruments, updated, unchanged, failed, skipped, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), run.Mode, run.TradeDate, run.Instruments,
		run.Updated, run.Unchanged, run.Failed, run.Skipped, run.Duration.Milliseconds(),
	)
	return err
}

// RecordScreenHits stores one rule's ranked hits in a single transaction.
// events must already be in rank order.
func (r *SQLiteRecorder) RecordScreenHits(tradeDate string, rule model.Rule, events []*model.SpikeEvent) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO screen_hits
		(timestamp, trade_date, rule, rank, code, name, close, volume,
		 mean_volume, std_volume, zscore, ratio, pct_chg, amount)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := r.now().Unix()
	for i, ev := range events {
		if _, err := stmt.Exec(now, tradeDate, string(rule), i+1, ev.Code, ev.Name,
			ev.Close.String(), ev.Volume, ev.Mean, ev.Std, ev.ZScore, ev.Ratio,
			ev.PctChange.String(), ev.Amount.String()); err != nil {
			return fmt.Errorf("insert hit %s: %w", ev.Code, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordBacktest(tradeDate string, summaries []model.RuleSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().Unix()
	for _, s := range summaries {
		_, err := r.db.Exec(`INSERT INTO backtest_summaries
			(timestamp, trade_date, rule, horizon, count, avg_1d, win_1d, avg_nd, win_nd)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			now, tradeDate, string(s.Rule), s.Horizon, s.Count,
			s.Avg1d, s.Win1d, s.AvgNd, s.WinNd,
		)
		if err != nil {
			return fmt.Errorf("insert summary %s: %w", s.Rule, err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSyncFailure(evt *SyncFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO sync_failures
		(timestamp, trade_date, code, name, outcome, reason)
		VALUES (?,?,?,?,?,?)`,
		r.now().Unix(), evt.TradeDate, evt.Code, evt.Name, evt.Outcome, evt.Reason,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
