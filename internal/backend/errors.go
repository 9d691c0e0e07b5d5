package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"storefront/internal/domain"
)

// ErrNoToken is returned by calls that need a bearer token when none is given.
// No request is sent in that case.
var ErrNoToken = errors.New("backend: no auth token")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	// Errors carries validation messages, flattened from either a list or a
	// field-keyed object.
	Errors []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return fmt.Sprintf("backend: status %d: %s", e.StatusCode, msg)
}

// Unwrap maps well-known statuses onto domain sentinels so callers can use
// errors.Is without knowing about HTTP.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	}
	return nil
}

// Messages returns the validation messages, or the message alone when there
// are none.
func (e *APIError) Messages() []string {
	if len(e.Errors) > 0 {
		return append([]string(nil), e.Errors...)
	}
	if e.Message != "" {
		return []string{e.Message}
	}
	return nil
}

type errorBody struct {
	Message string          `json:"message"`
	Title   string          `json:"title"`
	Errors  json.RawMessage `json:"errors"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		var text string
		if json.Unmarshal(body, &text) == nil {
			apiErr.Message = text
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	apiErr.Message = eb.Message
	if apiErr.Message == "" {
		apiErr.Message = eb.Title
	}
	apiErr.Errors = flattenErrors(eb.Errors)
	return apiErr
}

func flattenErrors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	var byField map[string][]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		keys := make([]string, 0, len(byField))
		for k := range byField {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, byField[k]...)
		}
		return out
	}
	return nil
}
