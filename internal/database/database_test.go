package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), "test", 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), "test", 2, time.Millisecond, func(context.Context) (string, error) {
		calls++
		return "", errors.New("down")
	})
	require.EqualError(t, err, "down")
	require.Equal(t, 2, calls)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, "test", 5, time.Hour, func(context.Context) (int, error) {
		return 0, errors.New("down")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenSQLite(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, sqlDB.Ping())
}

func TestConnectPostgres_BadURL(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "::not a url", 0, time.Second)
	require.Error(t, err)
}
