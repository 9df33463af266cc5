package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeforeCreate(t *testing.T) {
	t.Run("generates time ordered ids", func(t *testing.T) {
		var first, second BaseModel
		require.NoError(t, first.BeforeCreate(nil))
		require.NoError(t, second.BeforeCreate(nil))

		id, err := uuid.Parse(first.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
		assert.Less(t, first.ID, second.ID)
		assert.Equal(t, time.UTC, first.CreatedAt.Location())
		assert.Equal(t, first.CreatedAt, first.UpdatedAt)
	})

	t.Run("keeps preset values", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		b := BaseModel{ID: "fixed", CreatedAt: at}
		require.NoError(t, b.BeforeCreate(nil))

		assert.Equal(t, "fixed", b.ID)
		assert.Equal(t, at, b.CreatedAt)
		assert.Equal(t, at, b.UpdatedAt)
	})
}
