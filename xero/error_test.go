package xero

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAPIError(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Header: http.Header{
				"Retry-After":          []string{"29"},
				"X-Rate-Limit-Problem": []string{"minute"},
				"Xero-Correlation-Id":  []string{"corr-123"},
			},
		}

		apiErr := newAPIError(resp, []byte(`{}`))
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		require.Equal(t, 29*time.Second, apiErr.RetryAfter)
		require.Equal(t, "minute", apiErr.Problem)
		require.Equal(t, "corr-123", apiErr.CorrelationID)
	})

	t.Run("validation body", func(t *testing.T) {
		body := `{
			"ErrorNumber": 10,
			"Type": "ValidationException",
			"Message": "A validation exception occurred",
			"Elements": [
				{"ValidationErrors": [
					{"Message": "Invoice not of valid status for modification"},
					{"Message": "Date cannot be in the future"}
				]}
			]
		}`
		resp := &http.Response{StatusCode: http.StatusBadRequest, Header: http.Header{}}

		apiErr := newAPIError(resp, []byte(body))
		require.Equal(t, "ValidationException", apiErr.Type)
		require.Equal(t, []string{
			"Invoice not of valid status for modification",
			"Date cannot be in the future",
		}, apiErr.ValidationErrors)
		require.Contains(t, apiErr.Error(), "Invoice not of valid status for modification")
	})

	t.Run("non-json body preserved", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}

		apiErr := newAPIError(resp, []byte("<html>bad gateway</html>"))
		require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		require.Equal(t, "<html>bad gateway</html>", apiErr.Body)
		require.Empty(t, apiErr.ValidationErrors)
	})
}
