// Package dto holds the JSON shapes of the ops API.
package dto

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned by the ops API
const (
	CodeUnknownPass   = "UNKNOWN_PASS"
	CodePassActive    = "PASS_ACTIVE"
	CodeQueueFull     = "QUEUE_FULL"
	CodeNotRunning    = "SCHEDULER_STOPPED"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidID     = "INVALID_ID"
	CodeUnavailable   = "UNAVAILABLE"
	CodeInternalError = "INTERNAL_ERROR"
)

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	}
}
