package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/tradedate"
)

var csvHeader = []string{"date", "close", "pct_chg", "volume", "amount"}

// CSVStore keeps one <code>.csv file per instrument under Dir.
type CSVStore struct {
	Dir string
	log *zap.Logger

	rename func(oldpath, newpath string) error
}

// NewCSVStore creates the directory if needed.
func NewCSVStore(dir string, log *zap.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVStore{Dir: dir, log: log, rename: os.Rename}, nil
}

func (s *CSVStore) path(code string) string {
	return filepath.Join(s.Dir, code+".csv")
}

func (s *CSVStore) Load(code string) (*model.Series, error) {
	f, err := os.Open(s.path(code))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", code, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header %s: %w", code, err)
	}
	if header[0] != csvHeader[0] {
		return nil, fmt.Errorf("unexpected header in %s: %v", code, header)
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", code, line, err)
		}
		b, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", code, line, err)
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, nil
	}
	// stored files from older runs may hold mixed date shapes
	return Merge(code, nil, bars), nil
}

func parseRecord(rec []string) (model.Bar, error) {
	date, err := tradedate.Normalize(rec[0])
	if err != nil {
		return model.Bar{}, err
	}
	closePx, err := decimal.NewFromString(rec[1])
	if err != nil {
		return model.Bar{}, fmt.Errorf("close: %w", err)
	}
	pct, err := decimal.NewFromString(rec[2])
	if err != nil {
		return model.Bar{}, fmt.Errorf("pct_chg: %w", err)
	}
	vol, err := strconv.ParseInt(rec[3], 10, 64)
	if err != nil {
		return model.Bar{}, fmt.Errorf("volume: %w", err)
	}
	amount, err := decimal.NewFromString(rec[4])
	if err != nil {
		return model.Bar{}, fmt.Errorf("amount: %w", err)
	}
	return model.Bar{Date: date, Close: closePx, PctChange: pct, Volume: vol, Amount: amount}, nil
}

// Persist writes to a temp file in the same directory and renames it over the
// previous file, so readers only ever see a complete snapshot.
func (s *CSVStore) Persist(series *model.Series) error {
	if err := s.writeAtomic(series); err != nil {
		return &model.PersistenceError{Code: series.Code, Err: err}
	}
	s.log.Debug("series persisted",
		zap.String("code", series.Code),
		zap.Int("bars", series.Len()),
		zap.String("last_date", series.LastDate()))
	return nil
}

func (s *CSVStore) writeAtomic(series *model.Series) (err error) {
	tmp, err := os.CreateTemp(s.Dir, series.Code+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range series.Bars {
		rec := []string{
			b.Date,
			b.Close.String(),
			b.PctChange.String(),
			strconv.FormatInt(b.Volume, 10),
			b.Amount.String(),
		}
		if err = w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = s.rename(tmp.Name(), s.path(series.Code)); err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	return nil
}

func (s *CSVStore) Close() error { return nil }
