package errors

import "errors"

var (
	ErrNotImplemented       = errors.New("not implemented")
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnrecognizedResponse = errors.New("unrecognized response shape")
	ErrMissingPrompt        = errors.New("prompt is required")
	ErrStructuredOutput     = errors.New("structured output required but invalid")
)
