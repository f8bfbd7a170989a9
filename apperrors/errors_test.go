package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsIdentity(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := ErrInvalidRequest.Wrap(cause)

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInvalid, KindOf(err))
	assert.True(t, IsBusiness(err))
	assert.Nil(t, ErrInvalidRequest.Err)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", ErrUserNotFound, KindNotFound},
		{"reference", Reference(ErrPostNotFound), KindInvalidReference},
		{"internal", Internal("op", errors.New("boom")), KindInternal},
		{"foreign", errors.New("driver"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
	assert.ErrorIs(t, Reference(ErrPostNotFound), ErrPostNotFound)
	assert.False(t, IsBusiness(errors.New("driver")))
}
