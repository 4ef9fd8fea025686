package detector

import (
	"signal_bot/internal/models"
)

const (
	srWindow       = 20 // support/resistance
	zoneWindow     = 10 // demand/supply + breakout-канал
	trendWindow    = 10 // окно регрессии тренда
	breakoutMinLen = 20 // меньше — фактор пробоя не считается
	hsMinLen       = 7  // меньше — фактор H&S не считается
)

const (
	BreakoutUp   = "Breakout Up"
	BreakoutDown = "Breakout Down"
	HSPattern    = "H&S pattern"
)

// Analysis — разбор окна по всем факторам. Demand/Supply сейчас не участвуют
// в скоринге, отдаются как диагностика (/status).
type Analysis struct {
	Support    float64
	Resistance float64
	Demand     float64
	Supply     float64
	SlopeHigh  float64
	SlopeLow   float64
	Breakout   string
	Pattern    string
	Confidence int
}

// Detector — чистый скоринг окна свечей. Состояния нет, один инстанс
// обслуживает все серии.
type Detector struct {
	threshold int
}

func New(threshold int) *Detector {
	if threshold <= 0 {
		threshold = 5
	}
	return &Detector{threshold: threshold}
}

func (d *Detector) Threshold() int { return d.threshold }

// Analyze считает факторы и суммарный скор (0..8):
//
//	close > support      +1
//	close < resistance   +1
//	пробой канала        +2
//	H&S                  +2
//	slope(high) > 0      +1
//	slope(low)  < 0      +1
func (d *Detector) Analyze(window []models.Candle) Analysis {
	if len(window) == 0 {
		return Analysis{}
	}

	a := Analysis{}
	a.Support = tailMinLow(window, srWindow)
	a.Resistance = tailMaxHigh(window, srWindow)
	a.Demand = tailMinLow(window, zoneWindow)
	a.Supply = tailMaxHigh(window, zoneWindow)
	a.SlopeHigh, a.SlopeLow = detectTrendline(window)
	a.Breakout = detectBreakout(window)
	a.Pattern = detectHeadShoulders(window)

	last := window[len(window)-1].Close
	if last > a.Support {
		a.Confidence++
	}
	if last < a.Resistance {
		a.Confidence++
	}
	if a.Breakout != "" {
		a.Confidence += 2
	}
	if a.Pattern != "" {
		a.Confidence += 2
	}
	if a.SlopeHigh > 0 {
		a.Confidence++
	}
	if a.SlopeLow < 0 {
		a.Confidence++
	}
	return a
}

// Detect — скор достиг порога и цена вышла за границу канала → сигнал.
// Внутри канала сигнала нет, даже при достаточном скоре: нечем якорить
// entry/stop/target.
func (d *Detector) Detect(window []models.Candle) (models.Signal, bool) {
	if len(window) == 0 {
		return models.Signal{}, false
	}

	a := d.Analyze(window)
	if a.Confidence < d.threshold {
		return models.Signal{}, false
	}

	last := window[len(window)-1].Close
	switch {
	case last > a.Resistance:
		return models.Signal{
			Direction:  models.DirectionLong,
			Entry:      last,
			Stop:       a.Support,
			Target:     a.Resistance,
			Confidence: a.Confidence,
		}, true
	case last < a.Support:
		return models.Signal{
			Direction:  models.DirectionShort,
			Entry:      last,
			Stop:       a.Resistance,
			Target:     a.Support,
			Confidence: a.Confidence,
		}, true
	}
	return models.Signal{}, false
}

// detectBreakout — закрытие за пределами канала последних 10 свечей.
// До 20 свечей истории фактор не считается вообще.
func detectBreakout(window []models.Candle) string {
	if len(window) < breakoutMinLen {
		return ""
	}
	high := tailMaxHigh(window, zoneWindow)
	low := tailMinLow(window, zoneWindow)
	last := window[len(window)-1].Close
	if last > high {
		return BreakoutUp
	}
	if last < low {
		return BreakoutDown
	}
	return ""
}

// detectHeadShoulders — голова-плечи по последним 7 закрытиям.
// Последние два конъюнкта избыточны; условие намеренно повторяется
// в исходном виде, не упрощать.
func detectHeadShoulders(window []models.Candle) string {
	if len(window) < hsMinLen {
		return ""
	}
	tail := window[len(window)-hsMinLen:]
	c := make([]float64, hsMinLen)
	for i, cd := range tail {
		c[i] = cd.Close
	}
	if c[0] < c[2] && c[2] > c[4] && c[2] > c[0] && c[2] > c[4] {
		return HSPattern
	}
	return ""
}

// detectTrendline — МНК-наклон последних 10 high и 10 low по индексу.
func detectTrendline(window []models.Candle) (slopeHigh, slopeLow float64) {
	n := trendWindow
	if len(window) < n {
		n = len(window)
	}
	tail := window[len(window)-n:]
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range tail {
		highs[i] = c.High
		lows[i] = c.Low
	}
	return linregressSlope(highs), linregressSlope(lows)
}

// linregressSlope — наклон прямой по (i, y[i]), i=0..n-1.
func linregressSlope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

func tailMaxHigh(window []models.Candle, n int) float64 {
	if len(window) < n {
		n = len(window)
	}
	tail := window[len(window)-n:]
	m := tail[0].High
	for _, c := range tail[1:] {
		if c.High > m {
			m = c.High
		}
	}
	return m
}

func tailMinLow(window []models.Candle, n int) float64 {
	if len(window) < n {
		n = len(window)
	}
	tail := window[len(window)-n:]
	m := tail[0].Low
	for _, c := range tail[1:] {
		if c.Low < m {
			m = c.Low
		}
	}
	return m
}
