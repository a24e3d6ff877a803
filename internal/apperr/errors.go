package apperr

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the error domain reported in ErrorInfo details.
const Domain = "gacha.xtding233.github.com"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithMetadata returns a copy of e carrying the given metadata.
func (e *Error) WithMetadata(kv ...string) *Error {
	md := make(map[string]string, len(e.Metadata)+len(kv)/2)
	for k, v := range e.Metadata {
		md[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		md[kv[i]] = kv[i+1]
	}
	return &Error{Code: e.Code, Message: e.Message, Metadata: md, Cause: e.Cause}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown for nil-free errors that carry no domain code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ClassOf returns the class of err; errors without a domain code are internal.
func ClassOf(err error) Class {
	return GetCode(err).Class()
}

// IsClass checks if the error belongs to the given class.
func IsClass(err error, class Class) bool {
	return err != nil && ClassOf(err) == class
}

// ToStatus converts err to a gRPC status with an ErrorInfo detail.
// Errors without a domain code become Internal with a generic message.
func ToStatus(err error) *status.Status {
	var e *Error
	if !errors.As(err, &e) {
		return status.New(CodeInternal.GRPCCode(), "an unexpected error occurred")
	}

	md := map[string]string{"class": string(e.Code.Class())}
	for k, v := range e.Metadata {
		md[k] = v
	}

	st := status.New(e.Code.GRPCCode(), err.Error())
	withDetails, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   Domain,
		Metadata: md,
	})
	if derr != nil {
		return st
	}
	return withDetails
}
