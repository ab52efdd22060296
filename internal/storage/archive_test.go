package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	key         string
	body        []byte
	contentType string
	err         error
}

func (f *fakeUploader) Put(_ context.Context, key string, r io.Reader, size int64, ct string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return errors.New("size mismatch")
	}
	f.key, f.body, f.contentType = key, b, ct
	return nil
}

func TestPageArchive_WritesJSON(t *testing.T) {
	up := &fakeUploader{}
	a := NewPageArchive(up, "dead")
	a.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	page := []map[string]any{{"question": nil, "answer": "A"}}
	key, err := a.ArchiveRejectedPage(context.Background(), "run-1", page, errors.New("0.question: required"))
	require.NoError(t, err)
	require.Equal(t, "dead/2024-03-01/run-1.json", key)
	require.Equal(t, key, up.key)
	require.Equal(t, "application/json", up.contentType)

	var got RejectedPage
	require.NoError(t, json.Unmarshal(up.body, &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, "0.question: required", got.Reason)
	require.Len(t, got.Page, 1)
	require.Equal(t, "A", got.Page[0]["answer"])
}

func TestPageArchive_UploadError(t *testing.T) {
	a := NewPageArchive(&fakeUploader{err: errors.New("bucket gone")}, "")
	_, err := a.ArchiveRejectedPage(context.Background(), "r", nil, nil)
	require.ErrorContains(t, err, "bucket gone")
}

func TestNewObjectStore_MissingConfig(t *testing.T) {
	_, err := NewObjectStore(context.Background(), nil)
	require.Error(t, err)
	_, err = NewObjectStore(context.Background(), &MinIOConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)
}
