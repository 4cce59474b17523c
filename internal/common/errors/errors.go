package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Input
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Sources
	ErrCodeSourceFetchFailed        ErrorCode = "SOURCE_FETCH_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodePayloadMalformed         ErrorCode = "PAYLOAD_MALFORMED"

	// Credits
	ErrCodeInsufficientCredits   ErrorCode = "INSUFFICIENT_CREDITS"
	ErrCodeCreditDeductionFailed ErrorCode = "CREDIT_DEDUCTION_FAILED"
	ErrCodeLedgerWriteFailed     ErrorCode = "LEDGER_WRITE_FAILED"

	// Aggregation
	ErrCodeAggregationFailed   ErrorCode = "AGGREGATION_FAILED"
	ErrCodePassTimeout         ErrorCode = "PASS_TIMEOUT"
	ErrCodeMarkerPersistFailed ErrorCode = "MARKER_PERSIST_FAILED"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

func NewSourceFetchFailedError(source string, err error) *StandardError {
	e := newError(ErrCodeSourceFetchFailed, "Notification source could not be read", err.Error(), true)
	e.Metadata = map[string]interface{}{"source": source}
	return e
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewPayloadMalformedError(details string) *StandardError {
	return newError(ErrCodePayloadMalformed, "Admin message payload is malformed", details, false)
}

func NewInsufficientCreditsError(userID string, balance, cost int) *StandardError {
	return newError(ErrCodeInsufficientCredits, "Insufficient credits",
		fmt.Sprintf("userId: %s, balance: %d, cost: %d", userID, balance, cost), false)
}

func NewCreditDeductionFailedError(err error) *StandardError {
	return newError(ErrCodeCreditDeductionFailed, "Credit deduction failed", err.Error(), false)
}

func NewLedgerWriteFailedError(err error) *StandardError {
	return newError(ErrCodeLedgerWriteFailed, "Ledger entry could not be written", err.Error(), false)
}

func NewAggregationFailedError(userID string) *StandardError {
	return newError(ErrCodeAggregationFailed, "Every notification source failed",
		fmt.Sprintf("userId: %s", userID), true)
}

func NewPassTimeoutError(userID string) *StandardError {
	return newError(ErrCodePassTimeout, "Aggregation pass timed out",
		fmt.Sprintf("userId: %s", userID), true)
}

func NewMarkerPersistFailedError(key string, err error) *StandardError {
	e := newError(ErrCodeMarkerPersistFailed, "Last-seen marker could not be persisted", err.Error(), true)
	e.Metadata = map[string]interface{}{"key": key}
	return e
}

// AsStandardError unwraps err into a StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeSourceFetchFailed:        "SOURCE_FETCH_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodePayloadMalformed:         "PAYLOAD_MALFORMED",
	ErrCodeInsufficientCredits:      "INSUFFICIENT_CREDITS",
	ErrCodeCreditDeductionFailed:    "CREDIT_DEDUCTION_FAILED",
	ErrCodeLedgerWriteFailed:        "LEDGER_WRITE_FAILED",
	ErrCodeAggregationFailed:        "AGGREGATION_FAILED",
	ErrCodePassTimeout:              "PASS_TIMEOUT",
	ErrCodeMarkerPersistFailed:      "MARKER_PERSIST_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSourceFetchFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeAggregationFailed,
		ErrCodeMarkerPersistFailed:
		return 3
	case ErrCodePassTimeout:
		return 2
	default:
		// credit failures are never retried automatically
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CREDIT") || strings.Contains(codeStr, "LEDGER"):
		return "BILLING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "SOURCE"):
		return "SOURCE"
	case strings.Contains(codeStr, "AGGREGATION") || strings.Contains(codeStr, "PASS") || strings.Contains(codeStr, "MARKER"):
		return "AGGREGATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "MALFORMED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
