package models

type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Signal — ответ детектора. Живёт только до Alert Gate, никуда не персистится.
type Signal struct {
	Key        SeriesKey
	Direction  Direction
	Entry      float64
	Stop       float64
	Target     float64
	Confidence int
}
