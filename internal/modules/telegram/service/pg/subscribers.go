package pg

import (
	"context"
	"sort"
	"sync"

	"signal_bot/pkg/db"

	"github.com/pkg/errors"
)

// Subscribers — получатели алертов помимо основного чата. Кэш в памяти,
// Postgres подключается при наличии DSN; без него живём только в памяти
// (подписки не переживают рестарт).
type Subscribers struct {
	db *db.PgTxManager

	mu   sync.RWMutex
	data map[int64]struct{}
}

func NewSubscribers(m *db.PgTxManager) *Subscribers {
	return &Subscribers{
		db:   m,
		data: make(map[int64]struct{}),
	}
}

// Load прогревает кэш из БД.
func (s *Subscribers) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	rows, err := s.db.Conn().Query(ctx, `SELECT chat_id FROM signal_subscribers`)
	if err != nil {
		return errors.Wrap(err, "load subscribers")
	}
	defer rows.Close()

	data := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return errors.Wrap(err, "scan subscriber")
		}
		data[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate subscribers")
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *Subscribers) Add(ctx context.Context, chatID int64) error {
	if s.db != nil {
		_, err := s.db.Conn().Exec(ctx,
			`INSERT INTO signal_subscribers (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`, chatID)
		if err != nil {
			return errors.Wrap(err, "insert subscriber")
		}
	}
	s.mu.Lock()
	s.data[chatID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Subscribers) Remove(ctx context.Context, chatID int64) error {
	if s.db != nil {
		_, err := s.db.Conn().Exec(ctx,
			`DELETE FROM signal_subscribers WHERE chat_id = $1`, chatID)
		if err != nil {
			return errors.Wrap(err, "delete subscriber")
		}
	}
	s.mu.Lock()
	delete(s.data, chatID)
	s.mu.Unlock()
	return nil
}

func (s *Subscribers) All() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int64, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
