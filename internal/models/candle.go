package models

import (
	"fmt"
	"time"
)

// Candle — одна закрытая OHLC-свеча. После конструирования не мутируется.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// SeriesKey — слот истории: символ + таймфрейм в минутах.
type SeriesKey struct {
	Symbol       string
	TimeframeMin int
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s %dmin", k.Symbol, k.TimeframeMin)
}

// CandleEvent — то, что стример отдаёт наружу (в runner).
type CandleEvent struct {
	Key    SeriesKey
	Candle Candle
}
