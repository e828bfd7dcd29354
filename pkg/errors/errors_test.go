package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryKinds(t *testing.T) {
	t.Run("group not found is also not found", func(t *testing.T) {
		err := fmt.Errorf("consume: %w", GroupNotFound("g-1"))

		assert.True(t, Is(err, ErrGroupNotFound))
		assert.True(t, Is(err, ErrNotFound))
		assert.False(t, Is(err, ErrBatchNotFound))

		var appErr *AppError
		require.True(t, As(err, &appErr))
		assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
		assert.Equal(t, "GROUP_NOT_FOUND", appErr.Code)
	})

	t.Run("insufficient quantity carries amounts", func(t *testing.T) {
		err := InsufficientQuantity(1200, 300)

		assert.True(t, Is(err, ErrInsufficientQuantity))
		assert.Equal(t, http.StatusConflict, err.StatusCode)
		assert.Equal(t, map[string]string{"requested": "1200", "available": "300"}, err.Details)
	})

	t.Run("conflict keeps the database cause", func(t *testing.T) {
		cause := fmt.Errorf("pq: could not serialize access")
		err := ConcurrentAggregateConflict(cause)

		assert.True(t, Is(err, ErrConcurrentConflict))
		assert.True(t, Is(err, cause))
		assert.Contains(t, err.Error(), "could not serialize access")
	})
}
