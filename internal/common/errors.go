package common

import (
	"fmt"
	"net/http"
)

// RequestError is a TPP-facing failure. It carries the transport status and
// the TPPMessages body to render, so handlers never have to look up the code
// table themselves.
type RequestError struct {
	StatusCode int
	Body       TPPMessages
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if len(e.Body.Messages) == 0 {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	m := e.Body.Messages[0]
	return fmt.Sprintf("%s: %s", m.Code, m.Text)
}

// NewRequestError builds a RequestError with the code's default status.
func NewRequestError(code TPPErrorCode, text string) *RequestError {
	return &RequestError{
		StatusCode: code.HTTPStatus(),
		Body:       NewTPPMessages(TPPMessage{Category: CategoryError, Code: code, Text: text}),
	}
}

// NewRequestErrorWithStatus builds a RequestError for codes that are carried
// with a non-default status on some endpoint classes.
func NewRequestErrorWithStatus(status int, code TPPErrorCode, text string) *RequestError {
	return &RequestError{
		StatusCode: status,
		Body:       NewTPPMessages(TPPMessage{Category: CategoryError, Code: code, Text: text}),
	}
}

// NewRequestErrorWithPath builds a RequestError pointing at the offending
// request element.
func NewRequestErrorWithPath(code TPPErrorCode, text, path string) *RequestError {
	return &RequestError{
		StatusCode: code.HTTPStatus(),
		Body:       NewTPPMessages(TPPMessage{Category: CategoryError, Code: code, Text: text, Path: path}),
	}
}

// NewPathInvalidError reports a request path that matches no known resource.
func NewPathInvalidError(path string) *RequestError {
	return NewRequestErrorWithStatus(http.StatusNotFound, CodeResourceUnknown,
		fmt.Sprintf("no resource handler for path %s", path))
}

// NewInternalError reports an unexpected server side failure.
func NewInternalError(text string) *RequestError {
	return NewRequestError(CodeInternalServerError, text)
}
