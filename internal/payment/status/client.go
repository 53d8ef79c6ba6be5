// Package status polls a booking's payment status until it is confirmed or a
// deadline passes.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"ridepay/internal/common/httpclient"
)

// Config holds Status API and polling configuration.
type Config struct {
	BaseURL         string        `envconfig:"STATUS_BASE_URL" default:"http://localhost:8082"`
	APIKey          string        `envconfig:"STATUS_API_KEY"`
	RequestTimeout  time.Duration `envconfig:"STATUS_REQUEST_TIMEOUT" default:"10s"`
	Interval        time.Duration `envconfig:"STATUS_POLL_INTERVAL" default:"3s"`
	ConfirmedStatus int           `envconfig:"STATUS_CONFIRMED_VALUE" default:"2"`
}

// Checker reads the coarse payment status of a booking.
type Checker interface {
	PaymentStatus(ctx context.Context, bookingID string) (int, error)
}

// Client is the Status API client.
type Client struct {
	http *resty.Client
}

var _ Checker = (*Client)(nil)

// NewClient creates a Status API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		http: httpclient.New(httpclient.Config{
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.RequestTimeout,
			BearerToken: cfg.APIKey,
		}, logger),
	}
}

type statusResponse struct {
	PaymentStatus *int `json:"paymentStatus"`
}

// PaymentStatus fetches the booking's paymentStatus value.
func (c *Client) PaymentStatus(ctx context.Context, bookingID string) (int, error) {
	var body statusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("bookingID", bookingID).
		SetResult(&body).
		ForceContentType("application/json").
		Get("/v1/bookings/{bookingID}/payment-status")
	if err != nil {
		return 0, fmt.Errorf("fetching payment status: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetching payment status: unexpected HTTP %d", resp.StatusCode())
	}
	if body.PaymentStatus == nil {
		return 0, fmt.Errorf("fetching payment status: response has no paymentStatus")
	}
	return *body.PaymentStatus, nil
}
