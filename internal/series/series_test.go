package series

import (
	"testing"
	"time"

	"signal_bot/internal/models"
)

func candleAt(i int) models.Candle {
	return models.Candle{
		Time:  time.Unix(int64(1700000000+i*60), 0),
		Open:  float64(i),
		High:  float64(i) + 1,
		Low:   float64(i) - 1,
		Close: float64(i) + 0.5,
	}
}

func TestAppendKeepsCapacityAndOrder(t *testing.T) {
	st := NewStore(5)
	key := models.SeriesKey{Symbol: "R_75", TimeframeMin: 1}

	for i := 0; i < 17; i++ {
		win := st.Append(key, candleAt(i))
		if len(win) > 5 {
			t.Fatalf("append %d: window len %d exceeds capacity", i, len(win))
		}
	}

	got := st.Snapshot(key)
	if len(got) != 5 {
		t.Fatalf("want 5 candles after trim, got %d", len(got))
	}
	// последние пять в порядке поступления
	for i, c := range got {
		want := candleAt(12 + i)
		if c.Close != want.Close || !c.Time.Equal(want.Time) {
			t.Fatalf("candle %d: got %+v want %+v", i, c, want)
		}
	}
}

func TestAppendCreatesSeriesPerKey(t *testing.T) {
	st := NewStore(10)
	a := models.SeriesKey{Symbol: "frxXAUUSD", TimeframeMin: 5}
	b := models.SeriesKey{Symbol: "frxXAUUSD", TimeframeMin: 10}

	st.Append(a, candleAt(0))
	st.Append(a, candleAt(1))
	st.Append(b, candleAt(2))

	if st.Len(a) != 2 || st.Len(b) != 1 {
		t.Fatalf("per-key isolation broken: len(a)=%d len(b)=%d", st.Len(a), st.Len(b))
	}
	if keys := st.Keys(); len(keys) != 2 || keys[0] != a || keys[1] != b {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	st := NewStore(10)
	key := models.SeriesKey{Symbol: "R_75S", TimeframeMin: 1}
	st.Append(key, candleAt(0))

	snap := st.Snapshot(key)
	snap[0].Close = -42

	if got := st.Snapshot(key)[0].Close; got == -42 {
		t.Fatal("snapshot shares backing array with store")
	}
}

func TestDuplicateTimestampsKeptInArrivalOrder(t *testing.T) {
	// бэкфил после реконнекта может прислать уже известные свечи —
	// стор их не склеивает, просто дописывает
	st := NewStore(10)
	key := models.SeriesKey{Symbol: "R_75", TimeframeMin: 5}

	c := candleAt(3)
	st.Append(key, c)
	c.Close = 99
	st.Append(key, c)

	got := st.Snapshot(key)
	if len(got) != 2 {
		t.Fatalf("want both duplicates kept, got %d", len(got))
	}
	if got[0].Close == got[1].Close {
		t.Fatal("arrival order not preserved")
	}
}
