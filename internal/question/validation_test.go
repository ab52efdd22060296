package question

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elem(q, a, created string) map[string]any {
	return map[string]any{"question": q, "answer": a, "created_at": created}
}

func TestValidatePage_Valid(t *testing.T) {
	v := NewValidator()
	page := []map[string]any{
		elem("Q1", "A1", "2023-05-25T00:00:00.000Z"),
		{"question": "Q2", "answer": "A2", "created_at": "2014-02-11T22:47:18.687Z", "id": 42.0, "category": map[string]any{"title": "x"}},
	}

	got, err := v.ValidatePage(page)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Q1", got[0].Question)
	assert.Equal(t, "A1", got[0].Answer)
	assert.Equal(t, time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC), got[0].CreatedAt.UTC())
	assert.Equal(t, "Q2", got[1].Question)
}

func TestValidatePage_EmptyPageIsValid(t *testing.T) {
	v := NewValidator()
	got, err := v.ValidatePage(nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestValidatePage_RejectsWholePage(t *testing.T) {
	v := NewValidator()
	cases := map[string][]map[string]any{
		"missing question": {
			elem("Q1", "A1", "2023-05-25T00:00:00Z"),
			{"answer": "A2", "created_at": "2023-05-25T00:00:00Z"},
		},
		"missing answer": {
			{"question": "Q1", "created_at": "2023-05-25T00:00:00Z"},
		},
		"null answer": {
			{"question": "Q1", "answer": nil, "created_at": "2023-05-25T00:00:00Z"},
		},
		"numeric question": {
			{"question": 12.0, "answer": "A1", "created_at": "2023-05-25T00:00:00Z"},
		},
		"empty question": {
			elem("", "A1", "2023-05-25T00:00:00Z"),
		},
		"bad timestamp": {
			elem("Q1", "A1", "yesterday"),
		},
		"null element": {
			nil,
		},
	}

	for name, page := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := v.ValidatePage(page)
			require.Error(t, err)
			require.Nil(t, got)
			var pve *PageValidationError
			require.True(t, errors.As(err, &pve), "want *PageValidationError, got %T", err)
			require.NotEmpty(t, pve.Errors)
		})
	}
}

func TestValidatePage_FieldPaths(t *testing.T) {
	v := NewValidator()
	_, err := v.ValidatePage([]map[string]any{
		elem("Q1", "A1", "2023-05-25T00:00:00Z"),
		elem("Q2", "", "2023-05-25T00:00:00Z"),
	})
	var pve *PageValidationError
	require.True(t, errors.As(err, &pve))
	require.Len(t, pve.Errors, 1)
	assert.Equal(t, "1.answer", pve.Errors[0].Field)
	assert.Contains(t, err.Error(), "1.answer")
}

func TestParseTimestamp(t *testing.T) {
	for _, in := range []string{
		"2023-05-25T00:00:00Z",
		"2023-05-25T00:00:00.000Z",
		"2023-05-25T03:00:00+03:00",
		"2023-05-25T00:00:00",
		"2023-05-25 00:00:00.123",
	} {
		_, err := ParseTimestamp(in)
		require.NoError(t, err, in)
	}
	_, err := ParseTimestamp("25/05/2023")
	require.ErrorIs(t, err, ErrBadTimestamp)
}
