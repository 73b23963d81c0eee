package model

import "github.com/shopspring/decimal"

// Bar is one trading day for one instrument.
type Bar struct {
	Date      string          // canonical YYYY-MM-DD
	Close     decimal.Decimal
	PctChange decimal.Decimal // percent vs prior close, 5.0 means +5%
	Volume    int64
	Amount    decimal.Decimal // turnover in currency units
}

// Series holds the ordered daily bars of a single instrument.
type Series struct {
	Code string
	Bars []Bar
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// LastDate returns the newest bar date, or "" for an empty series.
func (s *Series) LastDate() string {
	if s.Len() == 0 {
		return ""
	}
	return s.Bars[len(s.Bars)-1].Date
}

// IndexOf returns the position of date in the series, or -1.
func (s *Series) IndexOf(date string) int {
	for i := s.Len() - 1; i >= 0; i-- {
		if s.Bars[i].Date == date {
			return i
		}
	}
	return -1
}

// Instrument is one entry of the screening universe.
type Instrument struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}
