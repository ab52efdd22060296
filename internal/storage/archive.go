package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Putter is the part of ObjectStore the archive writes through.
type Putter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// RejectedPage is the object written for a page that failed validation.
type RejectedPage struct {
	RunID      string           `json:"runId"`
	Reason     string           `json:"reason"`
	RejectedAt time.Time        `json:"rejectedAt"`
	Page       []map[string]any `json:"page"`
}

// PageArchive writes rejected pages as JSON objects under a key prefix.
type PageArchive struct {
	up     Putter
	prefix string
	now    func() time.Time
}

// NewPageArchive returns an archive writing under prefix ("rejected/" when empty).
func NewPageArchive(up Putter, prefix string) *PageArchive {
	if prefix == "" {
		prefix = "rejected/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &PageArchive{up: up, prefix: prefix, now: time.Now}
}

// ArchiveRejectedPage stores page and returns the object key.
func (a *PageArchive) ArchiveRejectedPage(ctx context.Context, runID string, page []map[string]any, reason error) (string, error) {
	at := a.now().UTC()
	doc := RejectedPage{RunID: runID, RejectedAt: at, Page: page}
	if reason != nil {
		doc.Reason = reason.Error()
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode rejected page: %w", err)
	}
	key := fmt.Sprintf("%s%s/%s.json", a.prefix, at.Format("2006-01-02"), runID)
	if err := a.up.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("upload rejected page: %w", err)
	}
	return key, nil
}
