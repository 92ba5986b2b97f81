package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause is preserved", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, CodeInternal, "save failed")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "save failed: disk full", err.Error())
	})
}

func TestHasCode(t *testing.T) {
	inner := New(CodeTimeout, "slow store")
	outer := Wrap(fmt.Errorf("persist: %w", inner), CodeInternal, "evaluate")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeTimeout))
	assert.False(t, HasCode(outer, CodeForbidden))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.Equal(t, CodeInternal, CodeOf(outer))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
