// Package tools provides the agent tool descriptors and their implementations.
//
// Tools never fail the generation: every handler returns a Result whose
// Status and Error fields carry failures as structured data the model can
// read and correct. Go errors are reserved for infrastructure problems
// (malformed input payloads, cancelled contexts).
package tools

import "fmt"

// Status indicates the outcome of a tool execution.
type Status string

const (
	// StatusSuccess indicates the tool completed and Data is populated.
	StatusSuccess Status = "success"

	// StatusError indicates the tool failed and Error is populated.
	StatusError Status = "error"
)

// Error types returned in ToolError.ErrorType.
const (
	ErrTypeInvalidExpression = "InvalidExpression"
	ErrTypeNonFiniteResult   = "NonFiniteResult"
	ErrTypeUnknownUnit       = "UnknownUnit"
	ErrTypeCategoryMismatch  = "CategoryMismatch"
	ErrTypeInvalidArguments  = "InvalidArguments"
	ErrTypeNotFound          = "NotFound"
	ErrTypeUpstream          = "UpstreamError"
)

// ToolError is a structured error format for model consumption.
// It lets tools return specific error types and messages the model can
// understand and correct in a follow-up call.
type ToolError struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return "<nil ToolError>"
	}
	if e.ErrorType == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.ErrorType
	}
	return e.ErrorType + ": " + e.Message
}

// Result is the uniform output envelope for every tool.
type Result struct {
	Status Status     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ToolError `json:"error,omitempty"`
}

// Success wraps data in a successful Result.
func Success(data any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

// Failure builds an error Result with a typed message.
func Failure(errType, format string, args ...any) Result {
	return Result{
		Status: StatusError,
		Error: &ToolError{
			ErrorType: errType,
			Message:   fmt.Sprintf(format, args...),
		},
	}
}
