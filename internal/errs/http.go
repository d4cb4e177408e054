package errs

import "net/http"

func NewBadRequestError(message string) *HTTPError {
	return newHTTPError(http.StatusBadRequest, message)
}

func NewNotFoundError(message string) *HTTPError {
	return newHTTPError(http.StatusNotFound, message)
}

func NewPayloadTooLargeError(message string) *HTTPError {
	return newHTTPError(http.StatusRequestEntityTooLarge, message)
}

// NewInternalServerError creates a 500 whose message is safe to show to
// clients. The real failure belongs in the cause.
func NewInternalServerError(message string, cause error) *HTTPError {
	if message == "" {
		message = http.StatusText(http.StatusInternalServerError)
	}
	e := newHTTPError(http.StatusInternalServerError, message)
	e.Err = cause
	return e
}

func NewServiceUnavailableError(message string) *HTTPError {
	return newHTTPError(http.StatusServiceUnavailable, message)
}
