package apierror_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hiltonbrown/ledgerbot/apierror"
	"github.com/hiltonbrown/ledgerbot/xero"
)

func TestClassifyTaxonomy(t *testing.T) {
	tests := []struct {
		name               string
		err                error
		wantKind           apierror.Kind
		wantRetryable      bool
		wantRequiresReauth bool
	}{
		{
			name:          "http 429 is rate limit and retryable",
			err:           &xero.Error{StatusCode: http.StatusTooManyRequests},
			wantKind:      apierror.KindRateLimit,
			wantRetryable: true,
		},
		{
			name:               "http 401 requires reauth",
			err:                &xero.Error{StatusCode: http.StatusUnauthorized},
			wantKind:           apierror.KindAuthorization,
			wantRequiresReauth: true,
		},
		{
			name:               "http 403 requires reauth",
			err:                &xero.Error{StatusCode: http.StatusForbidden},
			wantKind:           apierror.KindAuthorization,
			wantRequiresReauth: true,
		},
		{
			name:     "http 400 is validation, never retried",
			err:      &xero.Error{StatusCode: http.StatusBadRequest},
			wantKind: apierror.KindValidation,
		},
		{
			name:          "http 503 is server and retryable",
			err:           &xero.Error{StatusCode: http.StatusServiceUnavailable},
			wantKind:      apierror.KindServer,
			wantRetryable: true,
		},
		{
			name:          "transport failure is network and retryable",
			err:           &url.Error{Op: "Get", URL: "https://api.xero.com", Err: errors.New("connection refused")},
			wantKind:      apierror.KindNetwork,
			wantRetryable: true,
		},
		{
			name:               "revoked grant is a token error",
			err:                &oauth2.RetrieveError{ErrorCode: "invalid_grant"},
			wantKind:           apierror.KindToken,
			wantRequiresReauth: true,
		},
		{
			name: "token endpoint 503 is server and retryable",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusServiceUnavailable},
			},
			wantKind:      apierror.KindServer,
			wantRetryable: true,
		},
		{
			name:     "anything else is unknown",
			err:      errors.New("mystery"),
			wantKind: apierror.KindUnknown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			classified := apierror.Classify(tc.err)
			require.Equal(t, tc.wantKind, classified.Kind)
			require.Equal(t, tc.wantRetryable, classified.Retryable)
			require.Equal(t, tc.wantRequiresReauth, classified.RequiresReauth)
			require.NotEmpty(t, classified.UserMessage)
		})
	}
}

func TestClassifyNilIsNil(t *testing.T) {
	require.Nil(t, apierror.Classify(nil))
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	raw := &xero.Error{StatusCode: http.StatusTooManyRequests, RetryAfter: 2 * time.Second}
	wrapped := pkgerrors.Wrap(raw, "fetching invoices page 3")

	classified := apierror.Classify(wrapped)
	require.Equal(t, apierror.KindRateLimit, classified.Kind)
	require.Equal(t, 2*time.Second, classified.RetryAfter)
}

func TestClassifyPassesThroughAlreadyClassified(t *testing.T) {
	first := apierror.Classify(&xero.Error{StatusCode: http.StatusBadGateway})
	second := apierror.Classify(pkgerrors.Wrap(first, "sync invoices"))
	require.Same(t, first, second)
}

func TestClassifySurfacesCorrelationID(t *testing.T) {
	classified := apierror.Classify(&xero.Error{
		StatusCode:    http.StatusInternalServerError,
		CorrelationID: "b1c4...",
	})
	require.Equal(t, "b1c4...", classified.CorrelationID)
	require.Contains(t, classified.UserMessage, "b1c4...")
}

func TestClassifyValidationMessages(t *testing.T) {
	classified := apierror.Classify(&xero.Error{
		StatusCode:       http.StatusBadRequest,
		ValidationErrors: []string{"Invoice number must be unique", "Contact is required"},
	})
	require.Equal(t, apierror.KindValidation, classified.Kind)
	require.Contains(t, classified.UserMessage, "Invoice number must be unique")
	require.Contains(t, classified.UserMessage, "Contact is required")
}

func TestClassifyCancellationIsNotRetryable(t *testing.T) {
	classified := apierror.Classify(context.Canceled)
	require.False(t, classified.Retryable)
}
