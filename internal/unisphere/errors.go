package unisphere

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity is returned when the connectivity probe fails.
	ErrConnectivity = errors.New("error connecting to unisphere")

	// ErrDeleteTimeout is returned when a deleted resource is still
	// reported after the wait budget is spent.
	ErrDeleteTimeout = errors.New("timed out waiting for resource removal")
)

// APIError carries an unexpected status and the body that came with it.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

// NewAPIError builds an APIError from a response
func NewAPIError(op string, resp *Response) *APIError {
	return &APIError{Op: op, StatusCode: resp.StatusCode, Body: resp.Text()}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from an error chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
