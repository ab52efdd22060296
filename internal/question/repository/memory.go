package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/quizbank/quizbank/internal/question"
)

type pairKey struct {
	text   string
	answer string
}

// MemoryRepo is an in-memory store used by default when no database is
// configured, and by unit tests.
type MemoryRepo struct {
	mu     sync.RWMutex
	seq    int64
	byPair map[pairKey]*question.Record
	latest *question.Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byPair: make(map[pairKey]*question.Record)}
}

func (m *MemoryRepo) Exists(_ context.Context, text, answer string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byPair[pairKey{text, answer}]
	return ok, nil
}

func (m *MemoryRepo) Insert(_ context.Context, text, answer string, acceptedAt time.Time) (question.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{text, answer}
	if _, ok := m.byPair[k]; ok {
		return question.Conflict(), nil
	}
	m.seq++
	rec := &question.Record{
		ID:         strconv.FormatInt(m.seq, 10),
		Text:       text,
		Answer:     answer,
		AcceptedAt: acceptedAt,
	}
	m.byPair[k] = rec
	// equal timestamps: the later insert wins
	if m.latest == nil || !acceptedAt.Before(m.latest.AcceptedAt) {
		m.latest = rec
	}
	out := *rec
	return question.Inserted(&out), nil
}

func (m *MemoryRepo) MostRecent(_ context.Context) (*question.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, nil
	}
	out := *m.latest
	return &out, nil
}

// Len returns the number of stored records.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byPair)
}

// All returns a snapshot of every stored record in insertion order.
func (m *MemoryRepo) All() []question.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]question.Record, len(m.byPair))
	for _, r := range m.byPair {
		i, _ := strconv.Atoi(r.ID)
		out[i-1] = *r
	}
	return out
}
