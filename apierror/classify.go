package apierror

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hiltonbrown/ledgerbot/xero"
)

// Kind is the closed taxonomy every raw Xero or transport failure maps into.
type Kind string

const (
	KindNetwork       Kind = "network"
	KindRateLimit     Kind = "rateLimit"
	KindAuthorization Kind = "authorization"
	KindToken         Kind = "token"
	KindValidation    Kind = "validation"
	KindServer        Kind = "server"
	KindUnknown       Kind = "unknown"
)

// Classified wraps a raw error with its kind, a plain-language message for
// end users, and the verdicts callers branch on. It unwraps to the raw error
// so errors.Is/As still reach the cause.
type Classified struct {
	Kind           Kind
	UserMessage    string
	Retryable      bool
	RequiresReauth bool
	CorrelationID  string
	RetryAfter     time.Duration
	Err            error
}

func (c *Classified) Error() string {
	return string(c.Kind) + ": " + c.Err.Error()
}

func (c *Classified) Unwrap() error {
	return c.Err
}

// OAuth error codes Xero returns when a grant is revoked or the refresh
// token has been superseded or expired.
var grantErrorCodes = map[string]struct{}{
	"invalid_grant":       {},
	"unauthorized_client": {},
}

// Classify maps a raw error into the taxonomy. Already-classified errors
// pass through unchanged so wrapping layers never reclassify.
func Classify(err error) *Classified {
	if err == nil {
		return nil
	}

	var classified *Classified
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Classified{
			Kind:        KindUnknown,
			UserMessage: "The operation was cancelled before it could finish.",
			Err:         err,
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return classifyTokenExchange(err, retrieveErr)
	}

	var apiErr *xero.Error
	if errors.As(err, &apiErr) {
		return classifyResponse(err, apiErr)
	}

	if isNetworkError(err) {
		return &Classified{
			Kind:        KindNetwork,
			UserMessage: "Could not reach Xero. Check your connection and try again.",
			Retryable:   true,
			Err:         err,
		}
	}

	return &Classified{
		Kind:        KindUnknown,
		UserMessage: "Something went wrong talking to Xero. Please try again.",
		Err:         err,
	}
}

func classifyTokenExchange(raw error, retrieveErr *oauth2.RetrieveError) *Classified {
	if _, revoked := grantErrorCodes[retrieveErr.ErrorCode]; revoked {
		return &Classified{
			Kind:           KindToken,
			UserMessage:    "Your Xero connection has expired or been revoked. Please reconnect your organisation.",
			RequiresReauth: true,
			Err:            raw,
		}
	}

	status := 0
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Classified{
			Kind:           KindAuthorization,
			UserMessage:    "Xero declined the request. You may need to reconnect your organisation.",
			RequiresReauth: true,
			Err:            raw,
		}
	case status >= 500:
		return &Classified{
			Kind:        KindServer,
			UserMessage: "Xero is having trouble right now. Please try again shortly.",
			Retryable:   true,
			Err:         raw,
		}
	default:
		return &Classified{
			Kind:           KindToken,
			UserMessage:    "Xero rejected the token refresh. Please reconnect your organisation.",
			RequiresReauth: true,
			Err:            raw,
		}
	}
}

func classifyResponse(raw error, apiErr *xero.Error) *Classified {
	base := &Classified{
		CorrelationID: apiErr.CorrelationID,
		RetryAfter:    apiErr.RetryAfter,
		Err:           raw,
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		base.Kind = KindRateLimit
		base.Retryable = true
		base.UserMessage = withCorrelation("Xero is rate limiting requests. Please wait a moment and try again.", apiErr.CorrelationID)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		base.Kind = KindAuthorization
		base.RequiresReauth = true
		base.UserMessage = withCorrelation("Xero declined the request. You may need to reconnect your organisation.", apiErr.CorrelationID)
	case apiErr.StatusCode == http.StatusBadRequest || len(apiErr.ValidationErrors) > 0:
		base.Kind = KindValidation
		base.UserMessage = withCorrelation(validationMessage(apiErr), apiErr.CorrelationID)
	case apiErr.StatusCode >= 500:
		base.Kind = KindServer
		base.Retryable = true
		base.UserMessage = withCorrelation("Xero is having trouble right now. Please try again shortly.", apiErr.CorrelationID)
	default:
		base.Kind = KindUnknown
		base.UserMessage = withCorrelation("Something went wrong talking to Xero. Please try again.", apiErr.CorrelationID)
	}

	return base
}

func validationMessage(apiErr *xero.Error) string {
	if len(apiErr.ValidationErrors) == 0 {
		return "Xero rejected the request as invalid."
	}
	return "Xero rejected the request: " + strings.Join(apiErr.ValidationErrors, "; ")
}

func withCorrelation(message, correlationID string) string {
	if correlationID == "" {
		return message
	}
	return message + " (ref: " + correlationID + ")"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
