// Package store keeps the local per-instrument daily bar history.
package store

import (
	"sort"

	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/tradedate"
)

// Store loads and persists instrument series.
type Store interface {
	// Load returns nil, nil when the instrument has never been stored.
	Load(code string) (*model.Series, error)
	// Persist replaces the stored series. On error the previous snapshot is intact.
	Persist(series *model.Series) error
	Close() error
}

// Merge combines existing and incoming bars into one date-sorted series.
// Dates are normalized, duplicates keep the incoming row, and rows whose date
// cannot be normalized are dropped. Merging a series with itself or with any
// subset of its own rows returns the same series.
func Merge(code string, existing *model.Series, incoming []model.Bar) *model.Series {
	var total int
	if existing != nil {
		total = len(existing.Bars)
	}
	total += len(incoming)

	byDate := make(map[string]int, total)
	bars := make([]model.Bar, 0, total)
	add := func(b model.Bar) {
		d, err := tradedate.Normalize(b.Date)
		if err != nil {
			return
		}
		b.Date = d
		if i, ok := byDate[d]; ok {
			bars[i] = b
			return
		}
		byDate[d] = len(bars)
		bars = append(bars, b)
	}
	if existing != nil {
		for _, b := range existing.Bars {
			add(b)
		}
	}
	for _, b := range incoming {
		add(b)
	}

	// canonical dates sort lexically
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return &model.Series{Code: code, Bars: bars}
}
