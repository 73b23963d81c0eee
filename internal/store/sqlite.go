package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"VolumeSentinel/internal/model"
)

// SQLiteStore keeps every instrument's bars in one SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("sqlite bar store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			code    TEXT NOT NULL,
			date    TEXT NOT NULL,
			close   TEXT NOT NULL,
			pct_chg TEXT NOT NULL,
			volume  INTEGER NOT NULL,
			amount  TEXT NOT NULL,
			PRIMARY KEY (code, date)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(code string) (*model.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT date, close, pct_chg, volume, amount FROM bars WHERE code = ? ORDER BY date`, code)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", code, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var closePx, pct, amount string
		if err := rows.Scan(&b.Date, &closePx, &pct, &b.Volume, &amount); err != nil {
			return nil, fmt.Errorf("scan %s: %w", code, err)
		}
		if b.Close, err = decimal.NewFromString(closePx); err != nil {
			return nil, fmt.Errorf("%s %s close: %w", code, b.Date, err)
		}
		if b.PctChange, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("%s %s pct_chg: %w", code, b.Date, err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("%s %s amount: %w", code, b.Date, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", code, err)
	}
	if len(bars) == 0 {
		return nil, nil
	}
	return &model.Series{Code: code, Bars: bars}, nil
}

// Persist replaces the instrument's rows inside one transaction.
func (s *SQLiteStore) Persist(series *model.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replace(series); err != nil {
		return &model.PersistenceError{Code: series.Code, Err: err}
	}
	s.log.Debug("series persisted",
		zap.String("code", series.Code),
		zap.Int("bars", series.Len()),
		zap.String("last_date", series.LastDate()))
	return nil
}

func (s *SQLiteStore) replace(series *model.Series) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM bars WHERE code = ?`, series.Code); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO bars (code, date, close, pct_chg, volume, amount) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, b := range series.Bars {
		if _, err := stmt.Exec(series.Code, b.Date, b.Close.String(), b.PctChange.String(), b.Volume, b.Amount.String()); err != nil {
			return fmt.Errorf("insert %s: %w", b.Date, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	s.log.Info("closing sqlite bar store")
	return s.db.Close()
}
