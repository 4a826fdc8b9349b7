package gdrive

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	// ErrNoCredentials means no valid token could be obtained. Runs abort
	// before indexing when this surfaces.
	ErrNoCredentials = errors.New("gdrive: no valid credentials")

	// ErrNotFound means the requested item does not exist (or is not
	// visible to the authorized scope).
	ErrNotFound = errors.New("gdrive: not found")
)

// APIError is a non-2xx Drive API response. It is always surfaced, never
// swallowed.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gdrive: api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
}

// IsAuthError reports whether the API rejected our credentials.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401
}

// errorBody mirrors the Drive error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// apiError converts a non-2xx response into a typed error.
func apiError(resp *req.Response, body *errorBody) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    body.Error.Message,
	}
	if len(body.Error.Errors) > 0 {
		apiErr.Reason = body.Error.Errors[0].Reason
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}

	switch resp.StatusCode {
	case 401:
		return fmt.Errorf("%w: %v", ErrNoCredentials, apiErr)
	case 404:
		return fmt.Errorf("%w: %v", ErrNotFound, apiErr)
	default:
		return apiErr
	}
}
