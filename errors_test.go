package openvocab

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewValidationError("name", "association name is required")
	assert.Equal(t, "[validation:VALIDATION_FAILED] field 'name': association name is required", err.Error())

	err = NewVocabularyNotFoundError("topics")
	assert.Equal(t, ErrorTypeNotFound, err.Type)
	assert.Equal(t, "topics", err.Details["vocabulary"])
}

func TestIsCodeThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("failed to save: %w", NewStoreError("failed to save vocabulary topics", cause))

	assert.True(t, IsCode(err, ErrCodeStoreFailed))
	assert.False(t, IsCode(err, ErrCodeInternalError))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsCode(cause, ErrCodeStoreFailed))
}

func TestVocabularyInUseError(t *testing.T) {
	err := NewVocabularyInUseError("topics", []string{"topics.tags", "topics.related"})
	assert.Equal(t, ErrorTypeConflict, err.Type)
	assert.Equal(t, []string{"topics.tags", "topics.related"}, err.Details["associations"])
}
