package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies an AppError.
type ErrorType string

const (
	ErrTypeContract   ErrorType = "CONTRACT"
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeMarketData ErrorType = "MARKET_DATA"
)

// AppError is a classified failure from a pipeline component.
type AppError struct {
	Type ErrorType
	// Component names the stage that failed, when known.
	Component string
	Message   string
	Cause     error
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString("[" + string(e.Type) + "] ")
	if e.Component != "" {
		b.WriteString(e.Component + ": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// NewContractError reports a caller programming error at a component boundary:
// malformed window, unordered calendar, inverted disposal period.
func NewContractError(component, message string) *AppError {
	return &AppError{Type: ErrTypeContract, Component: component, Message: message}
}

// NewNetworkError wraps a failed call to an upstream feed.
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeNetwork, Message: message, Cause: cause}
}

// NewParsingError wraps an upstream payload that could not be decoded.
func NewParsingError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeParsing, Message: message, Cause: cause}
}

// NewStorageError wraps a workbook or spreadsheet failure.
func NewStorageError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeStorage, Message: message, Cause: cause}
}

func NewConfigError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: message, Cause: cause}
}

// NewMarketDataError marks a missing or unusable quote for one ticker.
func NewMarketDataError(message string, cause error) *AppError {
	return &AppError{Type: ErrTypeMarketData, Message: message, Cause: cause}
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// IsContractViolation reports whether err is a contract violation.
func IsContractViolation(err error) bool {
	return IsType(err, ErrTypeContract)
}

// APIError is an error with a fixed HTTP status and a stable machine code.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}
