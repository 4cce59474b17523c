package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeSourceFetchFailed, 3},
		{ErrCodeAggregationFailed, 3},
		{ErrCodePassTimeout, 2},
		{ErrCodeInsufficientCredits, 0},
		{ErrCodeCreditDeductionFailed, 0},
		{ErrCodeLedgerWriteFailed, 0},
		{ErrCodeInvalidInput, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "BILLING", GetErrorCategory(ErrCodeLedgerWriteFailed))
	assert.Equal(t, "BILLING", GetErrorCategory(ErrCodeInsufficientCredits))
	assert.Equal(t, "SOURCE", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "AGGREGATION", GetErrorCategory(ErrCodeMarkerPersistFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodePayloadMalformed))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("non retryable error drops retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewCreditDeductionFailedError(fmt.Errorf("boom")))
		assert.Equal(t, "CREDIT_DEDUCTION_FAILED", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
		assert.False(t, bpmn.Retryable)
	})

	t.Run("retryable error keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewAggregationFailedError("user-1"))
		assert.Equal(t, 3, bpmn.Retries)
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "AGGREGATION_FAILED", vars["originalErrorCode"])
		assert.Equal(t, "AGGREGATION_FAILED", vars["errorCode"])
	})
}

func TestAsStandardError(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", NewPassTimeoutError("user-1"))

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodePassTimeout, stdErr.Code)

	_, ok = AsStandardError(fmt.Errorf("plain"))
	assert.False(t, ok)
}
