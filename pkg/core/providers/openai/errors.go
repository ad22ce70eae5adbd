package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"
)

// Error represents an error response from a chat completions endpoint.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	Param      string    `json:"param,omitempty"`
	StatusCode int       `json:"status_code"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai: %s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("openai: %s: %s", e.Type, e.Message)
}

// openaiError represents an error body.
type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param,omitempty"`
		Code    any    `json:"code,omitempty"`
	} `json:"error"`
}

// parseError parses an error response.
func (p *Provider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr openaiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return &Error{
			Type:       statusErrorType(resp.StatusCode, ErrProvider),
			Message:    fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)),
			StatusCode: resp.StatusCode,
		}
	}

	var errType ErrorType
	switch apiErr.Error.Type {
	case "invalid_request_error":
		errType = ErrInvalidRequest
	case "authentication_error":
		errType = ErrAuthentication
	case "permission_error", "insufficient_quota":
		errType = ErrPermission
	case "not_found_error":
		errType = ErrNotFound
	case "rate_limit_error":
		errType = ErrRateLimit
	case "server_error", "api_error":
		errType = ErrAPI
	case "overloaded_error", "service_unavailable":
		errType = ErrOverloaded
	default:
		errType = ErrProvider
	}

	var code string
	if apiErr.Error.Code != nil {
		code = fmt.Sprint(apiErr.Error.Code)
	}

	return &Error{
		Type:       statusErrorType(resp.StatusCode, errType),
		Message:    apiErr.Error.Message,
		Code:       code,
		Param:      apiErr.Error.Param,
		StatusCode: resp.StatusCode,
	}
}

// statusErrorType lets rate limit and availability statuses override the body.
func statusErrorType(status int, fallback ErrorType) ErrorType {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusServiceUnavailable:
		return ErrOverloaded
	case http.StatusUnauthorized:
		return ErrAuthentication
	}
	return fallback
}
