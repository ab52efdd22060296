package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsMongoConflict(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	require.True(t, isMongoConflict(dup))
	require.True(t, isMongoConflict(fmt.Errorf("wrapped: %w", dup)))

	require.True(t, isMongoConflict(mongo.CommandError{Code: mongoWriteConflict, Name: "WriteConflict"}))
	require.True(t, isMongoConflict(mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}))

	require.False(t, isMongoConflict(mongo.CommandError{Code: 13, Name: "Unauthorized"}))
	require.False(t, isMongoConflict(errors.New("connection refused")))
}
