package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindErrorMatchesKindAndCause(t *testing.T) {
	cause := fmt.Errorf("quota exhausted")
	err := Wrap(Mark(cause, ErrProvider), "generate text")

	assert.True(t, Is(err, ErrProvider))
	assert.True(t, Is(err, cause))
	assert.False(t, Is(err, ErrTranscription))
	assert.Equal(t, "generate text: quota exhausted", err.Error())
}

func TestNewfMessage(t *testing.T) {
	err := Newf(ErrBudgetExceeded, "Monthly budget exceeded. Used: $%.2f/$%.2f", 9.99, 10.0)
	assert.Equal(t, "Monthly budget exceeded. Used: $9.99/$10.00", err.Error())
	assert.Equal(t, ErrBudgetExceeded, KindOf(err))
}

func TestValidationErrorIsValidation(t *testing.T) {
	err := Wrap(NewValidationError("cost", "must not be negative"), "append")
	assert.True(t, Is(err, ErrValidation))

	var ve *ValidationError
	assert.True(t, As(err, &ve))
	assert.Equal(t, "cost", ve.Field)
}

func TestNilPassthrough(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
	assert.Nil(t, Mark(nil, ErrProvider))
	assert.Nil(t, KindOf(fmt.Errorf("plain")))
}
