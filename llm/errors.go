// Provider error classification.
//
// Information Hiding:
// - SDK-specific error types (go-openai, anthropic, genai)
// - Which HTTP statuses count as transient

package llm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

var (
	// ErrAuthentication is matched by StatusError values carrying a 401.
	ErrAuthentication = errors.New("invalid API key")
	// ErrRateLimited is matched by StatusError values carrying a 429.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// StatusError is a non-2xx response from a completion endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is lets callers match on ErrAuthentication and ErrRateLimited.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

// IsRetryable reports whether err is transient: a retryable status, a
// connection-level failure, or a truncated response.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// DescribeError renders err the way the chat surface reports provider failures.
func DescribeError(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "Invalid API key"
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded"
	default:
		return "API Error: " + err.Error()
	}
}

// classifyError converts SDK errors into *StatusError. Errors without a
// status (transport failures, context cancellation) pass through wrapped.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) && oaiAPI.HTTPStatusCode != 0 {
		return &StatusError{Provider: provider, StatusCode: oaiAPI.HTTPStatusCode, Message: oaiAPI.Message, Err: err}
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) && oaiReq.HTTPStatusCode != 0 {
		msg := string(oaiReq.Body)
		if msg == "" {
			msg = http.StatusText(oaiReq.HTTPStatusCode)
		}
		return &StatusError{Provider: provider, StatusCode: oaiReq.HTTPStatusCode, Message: msg, Err: err}
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode != 0 {
		msg := antErr.RawJSON()
		if msg == "" {
			msg = http.StatusText(antErr.StatusCode)
		}
		return &StatusError{Provider: provider, StatusCode: antErr.StatusCode, Message: msg, Err: err}
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) && gErr.Code != 0 {
		return &StatusError{Provider: provider, StatusCode: gErr.Code, Message: gErr.Message, Err: err}
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr.Code != 0 {
		return &StatusError{Provider: provider, StatusCode: gErrPtr.Code, Message: gErrPtr.Message, Err: err}
	}

	return fmt.Errorf("%s: chat completion failed: %w", provider, err)
}
