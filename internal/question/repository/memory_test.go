package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quizbank/quizbank/internal/question"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepo_InsertExistsMostRecent(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	latest, err := r.MostRecent(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)

	t0 := time.Now()
	res, err := r.Insert(ctx, "Q1", "A1", t0)
	require.NoError(t, err)
	require.Equal(t, question.OutcomeInserted, res.Outcome)
	require.NotEmpty(t, res.Record.ID)

	ok, err := r.Exists(ctx, "Q1", "A1")
	require.NoError(t, err)
	require.True(t, ok)

	// exact, case-sensitive match
	ok, err = r.Exists(ctx, "q1", "A1")
	require.NoError(t, err)
	require.False(t, ok)

	// same text with another answer is a different pair
	res, err = r.Insert(ctx, "Q1", "A2", t0.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, question.OutcomeInserted, res.Outcome)

	res, err = r.Insert(ctx, "Q1", "A1", t0.Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, question.OutcomeConflict, res.Outcome)
	require.Nil(t, res.Record)

	latest, err = r.MostRecent(ctx)
	require.NoError(t, err)
	require.Equal(t, "A2", latest.Answer)
	require.Equal(t, 2, r.Len())

	// idempotent read
	again, err := r.MostRecent(ctx)
	require.NoError(t, err)
	require.Equal(t, latest, again)
}

func TestMemoryRepo_MostRecentTieBreak(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := r.Insert(ctx, "Q1", "A1", ts)
	require.NoError(t, err)
	_, err = r.Insert(ctx, "Q2", "A2", ts)
	require.NoError(t, err)
	// older timestamp never becomes most recent
	_, err = r.Insert(ctx, "Q0", "A0", ts.Add(-time.Hour))
	require.NoError(t, err)

	latest, err := r.MostRecent(ctx)
	require.NoError(t, err)
	require.Equal(t, "Q2", latest.Text)
}

func TestMemoryRepo_ConcurrentInsertSamePair(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan question.Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Insert(ctx, "Q", "A", time.Now())
			require.NoError(t, err)
			results <- res.Outcome
		}()
	}
	wg.Wait()
	close(results)

	inserted := 0
	for o := range results {
		if o == question.OutcomeInserted {
			inserted++
		}
	}
	require.Equal(t, 1, inserted)
	require.Equal(t, 1, r.Len())
}
