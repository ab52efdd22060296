package question

import "time"

// Record is an accepted trivia question. The (Text, Answer) pair is unique
// across the store and ID is assigned by the store on insert.
type Record struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	Text       string    `json:"text" bson:"text"`
	Answer     string    `json:"answer" bson:"answer"`
	AcceptedAt time.Time `json:"date" bson:"acceptedAt"`
}

// Candidate is one validated element of a source page. It is never stored
// as-is; CreatedAt is checked for shape only.
type Candidate struct {
	Question  string    `mapstructure:"question" validate:"required"`
	Answer    string    `mapstructure:"answer" validate:"required"`
	CreatedAt time.Time `mapstructure:"created_at" validate:"required"`
}

// Outcome tells the caller whether an insert produced a new record.
type Outcome int

const (
	// OutcomeInserted means a new record was persisted.
	OutcomeInserted Outcome = iota
	// OutcomeConflict means the pair already existed or the store reported a
	// transient write conflict; nothing was persisted.
	OutcomeConflict
)

func (o Outcome) String() string {
	if o == OutcomeConflict {
		return "conflict"
	}
	return "inserted"
}

// InsertResult is returned by a store insert. Record is set only when
// Outcome is OutcomeInserted.
type InsertResult struct {
	Outcome Outcome
	Record  *Record
}

// Inserted wraps a freshly stored record.
func Inserted(r *Record) InsertResult { return InsertResult{Outcome: OutcomeInserted, Record: r} }

// Conflict is the result for a pair that could not be added.
func Conflict() InsertResult { return InsertResult{Outcome: OutcomeConflict} }
