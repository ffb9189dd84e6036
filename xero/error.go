package xero

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error is a non-2xx response from the Xero API with enough context for the
// classifier: status, correlation id for support escalation, throttle
// metadata, and any field-level validation messages from the body.
type Error struct {
	StatusCode       int
	CorrelationID    string
	RetryAfter       time.Duration
	Problem          string
	Type             string
	Message          string
	ValidationErrors []string
	Body             string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xero: %s (%d)", http.StatusText(e.StatusCode), e.StatusCode)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.ValidationErrors) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.ValidationErrors, "; "))
	}
	if e.CorrelationID != "" {
		fmt.Fprintf(&b, " [correlation %s]", e.CorrelationID)
	}
	return b.String()
}

type apiErrorBody struct {
	ErrorNumber int    `json:"ErrorNumber"`
	Type        string `json:"Type"`
	Message     string `json:"Message"`
	Elements    []struct {
		ValidationErrors []struct {
			Message string `json:"Message"`
		} `json:"ValidationErrors"`
	} `json:"Elements"`
}

func newAPIError(resp *http.Response, body []byte) *Error {
	apiErr := &Error{
		StatusCode:    resp.StatusCode,
		CorrelationID: resp.Header.Get("Xero-Correlation-Id"),
		Problem:       resp.Header.Get("X-Rate-Limit-Problem"),
		Body:          string(body),
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Type = parsed.Type
		apiErr.Message = parsed.Message
		for _, element := range parsed.Elements {
			for _, validation := range element.ValidationErrors {
				if validation.Message != "" {
					apiErr.ValidationErrors = append(apiErr.ValidationErrors, validation.Message)
				}
			}
		}
	}

	return apiErr
}
