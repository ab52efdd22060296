package repository

import (
	"context"
	"time"

	"github.com/quizbank/quizbank/internal/question"
)

// Repository is the question store. Implementations must enforce pair
// uniqueness atomically inside Insert: two racing inserts of the same
// (text, answer) yield one OutcomeInserted and one OutcomeConflict.
type Repository interface {
	// Exists reports whether the exact (text, answer) pair is stored.
	Exists(ctx context.Context, text, answer string) (bool, error)
	// Insert stores a new record. A duplicate or transient write conflict is
	// reported as question.OutcomeConflict, not as an error.
	Insert(ctx context.Context, text, answer string, acceptedAt time.Time) (question.InsertResult, error)
	// MostRecent returns the newest record by acceptedAt (ties: latest
	// insert wins) or nil when the store is empty.
	MostRecent(ctx context.Context) (*question.Record, error)
}
