// Package store persists market data and the daily pick snapshot in
// PostgreSQL. One repository per table, all sharing a pgx pool.
package store

import (
	"errors"
	"time"
)

// ErrUnavailable marks any failed read or write against the backing store.
var ErrUnavailable = errors.New("storage unavailable")

// Symbol is one tradable instrument.
type Symbol struct {
	Code   string
	Name   string
	Sector *string
}

// DailyPrice is one OHLCV bar. Dates are UTC midnight.
type DailyPrice struct {
	Code   string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	VWAP   *float64
}

// Feature is one derived metric value for an instrument on a day.
type Feature struct {
	Code  string
	Date  time.Time
	Name  string
	Value float64
}

// CorporateEvent is a stored corporate/news occurrence. Type is the raw
// category; classification into scoring tags happens at scoring time.
type CorporateEvent struct {
	ID       string
	Code     string
	Date     time.Time
	Type     string
	Title    string
	Summary  string
	Source   string
	ScoreRaw *float64
}

// Pick is one persisted ranking row. Reasons and Stats hold serialized JSON.
type Pick struct {
	Date       time.Time
	Code       string
	ScoreFinal float64
	Reasons    []byte
	Stats      []byte
}
