package status

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientPaymentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bookings/bk-1/payment-status":
			_, _ = io.WriteString(w, `{"paymentStatus":2}`)
		case "/v1/bookings/bk-2/payment-status":
			_, _ = io.WriteString(w, `{}`)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: time.Second}, testLogger())

	got, err := c.PaymentStatus(context.Background(), "bk-1")
	require.NoError(t, err)
	require.Equal(t, 2, got)

	_, err = c.PaymentStatus(context.Background(), "bk-2")
	require.ErrorContains(t, err, "no paymentStatus")

	_, err = c.PaymentStatus(context.Background(), "missing")
	require.ErrorContains(t, err, "HTTP 404")
}
