package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizbank/quizbank/internal/question"
)

// PostgreSQL error codes treated as a compensable conflict.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// The pair is unique on digests so long entries stay under the btree row
// size limit; Exists compares the full values after the digest match.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS questions (
	id          BIGSERIAL PRIMARY KEY,
	text        TEXT NOT NULL,
	answer      TEXT NOT NULL,
	accepted_at TIMESTAMPTZ NOT NULL
);
ALTER TABLE questions ALTER COLUMN text TYPE TEXT, ALTER COLUMN answer TYPE TEXT;
ALTER TABLE questions DROP CONSTRAINT IF EXISTS questions_text_answer_key;
CREATE UNIQUE INDEX IF NOT EXISTS questions_pair_digest_key ON questions (md5(text), md5(answer));
CREATE INDEX IF NOT EXISTS questions_accepted_at_idx ON questions (accepted_at DESC, id DESC);
`

// PostgresRepo stores questions in PostgreSQL through a pgx pool.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

// Migrate creates the questions table and its indexes when missing.
func (p *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate questions table: %w", err)
	}
	return nil
}

func (p *PostgresRepo) Exists(ctx context.Context, text, answer string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions
		  WHERE md5(text) = md5($1) AND md5(answer) = md5($2)
		    AND text = $1 AND answer = $2)`,
		text, answer,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check question exists: %w", err)
	}
	return exists, nil
}

func (p *PostgresRepo) Insert(ctx context.Context, text, answer string, acceptedAt time.Time) (question.InsertResult, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO questions (text, answer, accepted_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		text, answer, acceptedAt,
	).Scan(&id)
	if err != nil {
		// DO NOTHING returns no row for a duplicate pair
		if errors.Is(err, pgx.ErrNoRows) || isPgConflict(err) {
			return question.Conflict(), nil
		}
		return question.InsertResult{}, fmt.Errorf("failed to insert question: %w", err)
	}
	return question.Inserted(&question.Record{
		ID:         strconv.FormatInt(id, 10),
		Text:       text,
		Answer:     answer,
		AcceptedAt: acceptedAt,
	}), nil
}

func (p *PostgresRepo) MostRecent(ctx context.Context) (*question.Record, error) {
	var (
		id  int64
		rec question.Record
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, text, answer, accepted_at FROM questions
		 ORDER BY accepted_at DESC, id DESC
		 LIMIT 1`,
	).Scan(&id, &rec.Text, &rec.Answer, &rec.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get most recent question: %w", err)
	}
	rec.ID = strconv.FormatInt(id, 10)
	return &rec, nil
}

func isPgConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	return false
}
