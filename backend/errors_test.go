package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapping(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		err := error(Unavailable(OpAsk, context.DeadlineExceeded))

		assert.ErrorIs(t, err, ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrBadResponse)

		var be *Error
		require.True(t, errors.As(err, &be))
		assert.Equal(t, OpAsk, be.Op)
		assert.Contains(t, err.Error(), "backend qa")
	})

	t.Run("bad response", func(t *testing.T) {
		err := error(BadResponse(OpSearch, 500, errors.New("internal")))

		assert.ErrorIs(t, err, ErrBadResponse)
		var be *Error
		require.True(t, errors.As(err, &be))
		assert.Equal(t, 500, be.StatusCode)
		assert.Contains(t, err.Error(), "status 500")
	})
}

func TestTimeoutsWithDefaults(t *testing.T) {
	got := Timeouts{Search: 3}.WithDefaults()
	assert.Equal(t, DefaultParseTimeout, got.Parse)
	assert.Equal(t, DefaultAskTimeout, got.Ask)
	assert.EqualValues(t, 3, got.Search)
}
