package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/quizbank/quizbank/internal/question"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestSQLRepo(t *testing.T) *SQLRepo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo, err := NewSQLRepo(db)
	require.NoError(t, err)
	return repo
}

func TestSQLRepo_InsertExistsMostRecent(t *testing.T) {
	repo := newTestSQLRepo(t)
	ctx := context.Background()

	latest, err := repo.MostRecent(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := repo.Insert(ctx, "Q1", "A1", t0)
	require.NoError(t, err)
	require.Equal(t, question.OutcomeInserted, res.Outcome)
	require.Equal(t, "1", res.Record.ID)

	ok, err := repo.Exists(ctx, "Q1", "A1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Exists(ctx, "Q1", "a1")
	require.NoError(t, err)
	require.False(t, ok)

	res, err = repo.Insert(ctx, "Q1", "A1", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, question.OutcomeConflict, res.Outcome)

	_, err = repo.Insert(ctx, "Q2", "A2", t0)
	require.NoError(t, err)

	// same acceptedAt: higher id wins
	latest, err = repo.MostRecent(ctx)
	require.NoError(t, err)
	require.Equal(t, "Q2", latest.Text)
	require.True(t, latest.AcceptedAt.Equal(t0))
}

func TestSQLRepo_LongEntries(t *testing.T) {
	repo := newTestSQLRepo(t)
	ctx := context.Background()
	text, answer := strings.Repeat("q", 5000), strings.Repeat("a", 400)

	res, err := repo.Insert(ctx, text, answer, time.Now())
	require.NoError(t, err)
	require.Equal(t, question.OutcomeInserted, res.Outcome)

	latest, err := repo.MostRecent(ctx)
	require.NoError(t, err)
	require.Equal(t, text, latest.Text)
}
