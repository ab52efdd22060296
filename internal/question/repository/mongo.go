package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quizbank/quizbank/internal/question"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoWriteConflict is the server code for a write conflict between
// concurrent operations; it is safe to treat like a duplicate.
const mongoWriteConflict = 112

type mongoQuestion struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Text       string             `bson:"text"`
	Answer     string             `bson:"answer"`
	AcceptedAt time.Time          `bson:"acceptedAt"`
}

func (q *mongoQuestion) record() *question.Record {
	return &question.Record{ID: q.ID.Hex(), Text: q.Text, Answer: q.Answer, AcceptedAt: q.AcceptedAt}
}

// MongoRepo stores questions in a MongoDB collection. Pair uniqueness is
// enforced by a unique compound index on {text, answer}.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo ensures the indexes exist and returns the repository.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "text", Value: 1}, {Key: "answer", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("text_answer_unique"),
		},
		{
			Keys:    bson.D{{Key: "acceptedAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("accepted_at_desc"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure question indexes: %w", err)
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Exists(ctx context.Context, text, answer string) (bool, error) {
	n, err := m.col.CountDocuments(ctx, bson.M{"text": text, "answer": answer}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check question exists: %w", err)
	}
	return n > 0, nil
}

func (m *MongoRepo) Insert(ctx context.Context, text, answer string, acceptedAt time.Time) (question.InsertResult, error) {
	doc := &mongoQuestion{Text: text, Answer: answer, AcceptedAt: acceptedAt.UTC()}
	res, err := m.col.InsertOne(ctx, doc)
	if err != nil {
		if isMongoConflict(err) {
			return question.Conflict(), nil
		}
		return question.InsertResult{}, fmt.Errorf("insert question: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return question.Inserted(doc.record()), nil
}

func (m *MongoRepo) MostRecent(ctx context.Context) (*question.Record, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "acceptedAt", Value: -1}, {Key: "_id", Value: -1}})
	var q mongoQuestion
	if err := m.col.FindOne(ctx, bson.M{}, opts).Decode(&q); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find most recent question: %w", err)
	}
	return q.record(), nil
}

func isMongoConflict(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(mongoWriteConflict) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}
