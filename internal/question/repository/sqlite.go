package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/quizbank/quizbank/internal/question"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sqlQuestion is the gorm model for the questions table.
type sqlQuestion struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Text       string    `gorm:"type:text;not null;index:idx_questions_pair,unique,priority:1"`
	Answer     string    `gorm:"type:text;not null;index:idx_questions_pair,unique,priority:2"`
	AcceptedAt time.Time `gorm:"not null;index"`
}

func (sqlQuestion) TableName() string { return "questions" }

func (q *sqlQuestion) record() *question.Record {
	return &question.Record{
		ID:         strconv.FormatUint(q.ID, 10),
		Text:       q.Text,
		Answer:     q.Answer,
		AcceptedAt: q.AcceptedAt,
	}
}

// SQLRepo stores questions through gorm. It is used with the embedded SQLite
// driver for single-node deployments.
type SQLRepo struct {
	db *gorm.DB
}

// NewSQLRepo migrates the questions table and returns the repository.
func NewSQLRepo(db *gorm.DB) (*SQLRepo, error) {
	if err := db.AutoMigrate(&sqlQuestion{}); err != nil {
		return nil, fmt.Errorf("migrate questions table: %w", err)
	}
	return &SQLRepo{db: db}, nil
}

func (s *SQLRepo) Exists(ctx context.Context, text, answer string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&sqlQuestion{}).
		Where("text = ? AND answer = ?", text, answer).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check question exists: %w", err)
	}
	return n > 0, nil
}

func (s *SQLRepo) Insert(ctx context.Context, text, answer string, acceptedAt time.Time) (question.InsertResult, error) {
	q := &sqlQuestion{Text: text, Answer: answer, AcceptedAt: acceptedAt.UTC()}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "text"}, {Name: "answer"}}, DoNothing: true}).
		Create(q)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return question.Conflict(), nil
		}
		return question.InsertResult{}, fmt.Errorf("insert question: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return question.Conflict(), nil
	}
	return question.Inserted(q.record()), nil
}

func (s *SQLRepo) MostRecent(ctx context.Context) (*question.Record, error) {
	var q sqlQuestion
	err := s.db.WithContext(ctx).Order("accepted_at DESC").Order("id DESC").Take(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find most recent question: %w", err)
	}
	return q.record(), nil
}
