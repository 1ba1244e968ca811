package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := NewUserNotFoundError("u-1")
	wrapped := fmt.Errorf("send: %w", err)

	assert.Equal(t, ErrCodeUserNotFound, CodeOf(err))
	assert.Equal(t, ErrCodeUserNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrCodeUserNotFound))
	assert.False(t, Is(wrapped, ErrCodeInvalidArgument))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.False(t, Is(nil, ErrCodeUserNotFound))
}

func TestStandardError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewQueryExecutionFailedError("find_due", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "QUERY_EXECUTION_FAILED")
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, 3, GetRetryCount(ErrCodeQueryExecutionFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeUserNotFound))
	assert.Equal(t, 0, GetRetryCount(ErrCodeInvalidArgument))
	assert.True(t, IsRetryableErrorCode(ErrCodeDatabaseUpdateFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidTransition))
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable technical error keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewDatabaseInsertFailedError(stderrors.New("boom")))
		assert.Equal(t, "DATABASE_INSERT_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
		assert.Equal(t, "DATABASE_INSERT_FAILED", bpmn.ToErrorVariables()["originalErrorCode"])
	})

	t.Run("business error has no retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInvalidArgumentError("channels must not be empty"))
		assert.Equal(t, "INVALID_ARGUMENT", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeChannelDeliveryFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeSweepRecordFailed))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeUserNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidArgument))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestNormalize(t *testing.T) {
	std := NewInvalidArgumentError("x")
	assert.Same(t, std, normalize(fmt.Errorf("wrap: %w", std)))

	plain := normalize(stderrors.New("unexpected"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.False(t, plain.Retryable)
}
