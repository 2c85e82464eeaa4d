package requests

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationMessageJoinsFieldErrors(t *testing.T) {
	v := NewValidator()
	ids := make([]string, 501)
	for i := range ids {
		ids[i] = "pic"
	}

	err := v.Struct(BulkDeleteRequest{IDs: ids})

	assert.Equal(t, "ids accepts at most 500 entries", ValidationMessage(err))
}

func TestValidationMessageIgnoresOtherErrors(t *testing.T) {
	assert.Empty(t, ValidationMessage(errors.New("boom")))
	assert.Empty(t, ValidationMessage(nil))
}

func TestValidatorAcceptsWellFormedRequest(t *testing.T) {
	assert.NoError(t, NewValidator().Struct(BulkDeleteRequest{IDs: []string{"pic_a", "pic_b"}}))
}
