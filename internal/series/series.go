package series

import (
	"sort"
	"sync"

	"signal_bot/internal/models"
)

// Store — rolling-история свечей по каждой паре (символ, таймфрейм).
// Писатель один (цикл раннера), RWMutex нужен только ради Snapshot/Len
// из health/status хэндлеров.
type Store struct {
	capacity int

	mu   sync.RWMutex
	data map[models.SeriesKey][]models.Candle
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 100
	}
	return &Store{
		capacity: capacity,
		data:     make(map[models.SeriesKey][]models.Candle),
	}
}

func (s *Store) Capacity() int { return s.capacity }

// Append дописывает свечу в конец серии (создаёт серию при первом обращении)
// и выкидывает самую старую при переполнении. Возвращает окно после вставки;
// окно валидно до следующего Append по этому же ключу, мутировать нельзя.
func (s *Store) Append(key models.SeriesKey, c models.Candle) []models.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := append(s.data[key], c)
	if len(buf) > s.capacity {
		buf = buf[1:]
	}
	s.data[key] = buf
	return buf
}

// Snapshot — копия текущего окна; для диагностики и тестов.
func (s *Store) Snapshot(key models.SeriesKey) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.data[key]
	if !ok {
		return nil
	}
	out := make([]models.Candle, len(buf))
	copy(out, buf)
	return out
}

func (s *Store) Len(key models.SeriesKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[key])
}

// Keys — отсортированный список известных серий (для /status).
func (s *Store) Keys() []models.SeriesKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]models.SeriesKey, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].TimeframeMin < keys[j].TimeframeMin
	})
	return keys
}
