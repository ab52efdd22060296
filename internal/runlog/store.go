package runlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("ingestion run not found")

// Run summarizes one ingestion call.
type Run struct {
	ID         string    `bson:"runId" json:"id"`
	Requested  int       `bson:"requested" json:"requested"`
	Accepted   int       `bson:"accepted" json:"accepted"`
	Duplicates int       `bson:"duplicates" json:"duplicates"`
	Conflicts  int       `bson:"conflicts" json:"conflicts"`
	Pages      int       `bson:"pages" json:"pages"`
	Aborted    bool      `bson:"aborted" json:"aborted"`
	AbortCause string    `bson:"abortCause,omitempty" json:"abortCause,omitempty"`
	ArchiveKey string    `bson:"archiveKey,omitempty" json:"archiveKey,omitempty"`
	Error      string    `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time `bson:"startedAt" json:"startedAt"`
	FinishedAt time.Time `bson:"finishedAt" json:"finishedAt"`
}

// Store persists run summaries.
type Store interface {
	Save(ctx context.Context, r *Run) error
	Load(ctx context.Context, id string) (*Run, error)
}

// MongoStore upserts runs into a collection keyed by runId.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(ctx context.Context, col *mongo.Collection) (*MongoStore, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "runId", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("ensure run index: %w", err)
	}
	return &MongoStore{col: col}, nil
}

func (m *MongoStore) Save(ctx context.Context, r *Run) error {
	filter := bson.M{"runId": r.ID}
	opts := options.Update().SetUpsert(true)
	if _, err := m.col.UpdateOne(ctx, filter, bson.M{"$set": r}, opts); err != nil {
		return fmt.Errorf("save ingestion run: %w", err)
	}
	return nil
}

func (m *MongoStore) Load(ctx context.Context, id string) (*Run, error) {
	var r Run
	if err := m.col.FindOne(ctx, bson.M{"runId": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load ingestion run: %w", err)
	}
	return &r, nil
}

// DefaultMemoryCapacity bounds MemoryStore when no capacity is given.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent runs in process; the oldest are evicted
// once capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	runs     map[string]Run
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity, runs: make(map[string]Run)}
}

func (m *MemoryStore) Save(_ context.Context, r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		m.order = append(m.order, r.ID)
		if len(m.order) > m.capacity {
			delete(m.runs, m.order[0])
			m.order = m.order[1:]
		}
	}
	m.runs[r.ID] = *r
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}
