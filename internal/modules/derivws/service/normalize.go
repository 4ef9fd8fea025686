package service

import (
	"strconv"
	"time"

	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// ErrMalformedEvent — битый или чужой ohlc-кадр: дропаем с логом, не фатально.
var ErrMalformedEvent = errors.New("malformed feed event")

// errNotOHLC — конверт другой формы (authorize, candles-бэкфил, ping...);
// такие кадры молча пропускаются.
var errNotOHLC = errors.New("not an ohlc event")

// Normalizer приводит сырые кадры фида к канонической свече и отсекает всё,
// что не входит в сконфигурированный набор (символ × таймфрейм).
type Normalizer struct {
	allowed map[models.SeriesKey]struct{}
}

func NewNormalizer(symbols []string, timeframes []int) *Normalizer {
	allowed := make(map[models.SeriesKey]struct{}, len(symbols)*len(timeframes))
	for _, s := range symbols {
		for _, tf := range timeframes {
			allowed[models.SeriesKey{Symbol: s, TimeframeMin: tf}] = struct{}{}
		}
	}
	return &Normalizer{allowed: allowed}
}

func (n *Normalizer) Normalize(raw []byte) (models.CandleEvent, error) {
	var frame inboundFrame
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		return models.CandleEvent{}, errors.Wrapf(ErrMalformedEvent, "decode frame: %v", err)
	}
	if frame.Ohlc == nil {
		return models.CandleEvent{}, errNotOHLC
	}

	p := frame.Ohlc
	if p.Epoch <= 0 {
		return models.CandleEvent{}, errors.Wrap(ErrMalformedEvent, "missing epoch")
	}

	key := models.SeriesKey{
		Symbol:       p.Symbol,
		TimeframeMin: int(p.Granularity / 60),
	}
	if _, ok := n.allowed[key]; !ok {
		return models.CandleEvent{}, errors.Wrapf(ErrMalformedEvent, "series %s outside subscription set", key)
	}

	open, err := parsePrice("open", p.Open)
	if err != nil {
		return models.CandleEvent{}, err
	}
	high, err := parsePrice("high", p.High)
	if err != nil {
		return models.CandleEvent{}, err
	}
	low, err := parsePrice("low", p.Low)
	if err != nil {
		return models.CandleEvent{}, err
	}
	closep, err := parsePrice("close", p.Close)
	if err != nil {
		return models.CandleEvent{}, err
	}

	return models.CandleEvent{
		Key: key,
		Candle: models.Candle{
			Time:  time.Unix(p.Epoch, 0).UTC(),
			Open:  open,
			High:  high,
			Low:   low,
			Close: closep,
		},
	}, nil
}

func parsePrice(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedEvent, "field %s: %q", field, s)
	}
	return v, nil
}
