// Package httpclient builds the resty clients used for outbound gateway calls.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config holds the settings shared by outbound HTTP clients.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// BearerToken is sent as an Authorization header when set.
	BearerToken string
}

// New returns a resty client with no automatic retries. Callers decide on retries.
func New(cfg Config, logger *slog.Logger) *resty.Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "ridepay/1.0").
		SetLogger(restyLogger{logger})
	if cfg.BearerToken != "" {
		c.SetAuthToken(cfg.BearerToken)
	}
	return c
}

// IsTimeout reports whether err is a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// restyLogger routes resty's internal logging to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
