package ebics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOrderID(t *testing.T) {
	t.Run("zero is AA0000", func(t *testing.T) {
		id, err := EncodeOrderID(0)
		require.NoError(t, err)
		assert.Equal(t, "AA0000", id)
	})

	t.Run("increments roll digits before letters", func(t *testing.T) {
		id, err := EncodeOrderID(1)
		require.NoError(t, err)
		assert.Equal(t, "AA0001", id)
	})

	t.Run("distinct counters produce distinct ids", func(t *testing.T) {
		seen := map[string]bool{}
		for n := int64(0); n < 5000; n += 37 {
			id, err := EncodeOrderID(n)
			require.NoError(t, err)
			assert.False(t, seen[id], "duplicate order id %s for n=%d", id, n)
			seen[id] = true
		}
	})

	t.Run("rejects values at or beyond the space", func(t *testing.T) {
		_, err := EncodeOrderID(orderIDSpace)
		assert.Error(t, err)
		_, err = EncodeOrderID(-1)
		assert.Error(t, err)
	})
}
