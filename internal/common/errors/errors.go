// Package errors provides the error taxonomy shared by the matcher, its
// stores and the workflow workers, plus the mapping onto BPMN errors.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode is the stable, machine-readable kind of a StandardError.
type ErrorCode string

const (
	// Malformed profile or job data. Never retried.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// Candidate or job id unknown to the profile store. Never retried within a batch.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// Match or profile store failure; the caller may retry.
	ErrCodeTransientStore ErrorCode = "TRANSIENT_STORE"
	// Notifier failure; isNotified is left false so a retry is safe.
	ErrCodeTransientNotify ErrorCode = "TRANSIENT_NOTIFY"

	ErrCodeInvalidJobVariables ErrorCode = "INVALID_JOB_VARIABLES"
	ErrCodeBatchCancelled      ErrorCode = "BATCH_CANCELLED"
	ErrCodeEngineUnavailable   ErrorCode = "ENGINE_UNAVAILABLE"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches two StandardErrors by code so sentinel comparisons work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithPair attaches the (candidate, job) pair the error belongs to.
func (e *StandardError) WithPair(candidateID, jobID string) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	if candidateID != "" {
		e.Metadata["candidateId"] = candidateID
	}
	if jobID != "" {
		e.Metadata["jobId"] = jobID
	}
	return e
}

// Sentinels for errors.Is checks against a code.
var (
	ErrInvalidInput    = &StandardError{Code: ErrCodeInvalidInput}
	ErrNotFound        = &StandardError{Code: ErrCodeNotFound}
	ErrTransientStore  = &StandardError{Code: ErrCodeTransientStore}
	ErrTransientNotify = &StandardError{Code: ErrCodeTransientNotify}
)

// BPMNError is what gets thrown to the workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Malformed profile or job data",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("%sId: %s", entity, id),
		Retryable: false,
		Metadata:  map[string]interface{}{entity + "Id": id},
		Timestamp: time.Now().UTC(),
	}
}

func NewTransientStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientStore,
		Message:   "Store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTransientNotifyError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransientNotify,
		Message:   "Match notification dispatch failed",
		Details:   fmt.Sprintf("channel: %s, error: %v", channel, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInvalidJobVariablesError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobVariables,
		Message:   "Job variables failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBatchCancelledError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchCancelled,
		Message:   "Match batch cancelled before completion",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewEngineUnavailableError reports a workflow engine call that failed on
// connectivity or a deadline.
func NewEngineUnavailableError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEngineUnavailable,
		Message:   "Workflow engine unavailable",
		Details:   fmt.Sprintf("operation: %s, error: %v", operation, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected failure with some context.
func NewInternalError(message string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   message,
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// KindOf classifies any error into an ErrorCode. Context cancellation counts as
// a cancelled batch; anything unrecognised is INTERNAL_ERROR.
func KindOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return ErrCodeBatchCancelled
	}
	return ErrCodeInternal
}

// Normalize returns err as a StandardError, wrapping unknown errors as internal.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewBatchCancelledError(err)
	}
	return NewInternalError("Unexpected error", err)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:        "MATCH_INVALID_INPUT",
	ErrCodeNotFound:            "MATCH_ENTITY_NOT_FOUND",
	ErrCodeTransientStore:      "MATCH_STORE_UNAVAILABLE",
	ErrCodeTransientNotify:     "MATCH_NOTIFY_FAILED",
	ErrCodeInvalidJobVariables: "INVALID_JOB_VARIABLES",
	ErrCodeBatchCancelled:      "MATCH_BATCH_CANCELLED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransientStore, ErrCodeTransientNotify, ErrCodeEngineUnavailable:
		return 3
	case ErrCodeBatchCancelled:
		return 1
	default:
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

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "STORE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFY"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "BATCH"):
		return "BATCH"
	case strings.Contains(codeStr, "ENGINE"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
