package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches the outer code", func(t *testing.T) {
		err := New(CodeNotFound, "debtor not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches a code deeper in the chain", func(t *testing.T) {
		inner := New(CodeRateLimited, "too many requests")
		outer := Wrap(inner, CodeInternal, "otp request failed")
		assert.True(t, HasCode(outer, CodeRateLimited))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeForbidden, "no access"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(stderrors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("preserves the cause for errors.Is", func(t *testing.T) {
		cause := stderrors.New("connection refused")
		err := Wrap(cause, CodeProvider, "sms gateway unreachable")
		assert.True(t, stderrors.Is(err, cause))
		assert.Equal(t, CodeProvider, CodeOf(err))
		assert.Equal(t, "sms gateway unreachable", MessageOf(err))
	})
}
