// Package authorization submits payment requests to the card gateway and
// classifies its responses into payment outcomes.
package authorization

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"ridepay/internal/common/httpclient"
	"ridepay/internal/payment"
)

// DefaultSuccessCode is the gateway result code for a successful authorization.
const DefaultSuccessCode = "000.100.110"

// Config holds Authorization API configuration.
type Config struct {
	BaseURL     string        `envconfig:"AUTH_BASE_URL" default:"http://localhost:8081"`
	APIKey      string        `envconfig:"AUTH_API_KEY"`
	EntityID    string        `envconfig:"AUTH_ENTITY_ID"`
	Timeout     time.Duration `envconfig:"AUTH_TIMEOUT" default:"30s"`
	SuccessCode string        `envconfig:"AUTH_SUCCESS_CODE" default:"000.100.110"`
	ReturnURL   string        `envconfig:"AUTH_RETURN_URL" default:"https://pay.ridepay.app/3ds/complete"`
}

// Client talks to the Authorization API. It makes exactly one attempt per Submit.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient creates an Authorization API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.SuccessCode == "" {
		cfg.SuccessCode = DefaultSuccessCode
	}
	return &Client{
		http: httpclient.New(httpclient.Config{
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			BearerToken: cfg.APIKey,
		}, logger),
		cfg:    cfg,
		logger: logger.With("component", "authorization"),
	}
}

type gatewayRequest struct {
	EntityID           string          `json:"entityId,omitempty"`
	BookingID          string          `json:"bookingId"`
	Amount             string          `json:"amount"`
	Currency           string          `json:"currency"`
	PaymentType        string          `json:"paymentType"`
	Card               *gatewayCard    `json:"card,omitempty"`
	RegistrationID     string          `json:"registrationId,omitempty"`
	CreateRegistration bool            `json:"createRegistration"`
	Billing            *gatewayBilling `json:"billing,omitempty"`
	Customer           gatewayCustomer `json:"customer"`
	ShopperResultURL   string          `json:"shopperResultUrl,omitempty"`
}

type gatewayCard struct {
	Number      string `json:"number,omitempty"`
	Holder      string `json:"holder,omitempty"`
	ExpiryMonth string `json:"expiryMonth,omitempty"`
	ExpiryYear  string `json:"expiryYear,omitempty"`
	CVV         string `json:"cvv"`
}

type gatewayBilling struct {
	Street1  string `json:"street1"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country"`
}

type gatewayCustomer struct {
	Email string `json:"email"`
}

func (c *Client) buildRequest(req payment.Request) gatewayRequest {
	out := gatewayRequest{
		EntityID:         c.cfg.EntityID,
		BookingID:        req.BookingID,
		Amount:           req.Amount.Decimal(),
		Currency:         string(req.Amount.Currency),
		PaymentType:      "DB",
		Customer:         gatewayCustomer{Email: req.CustomerEmail},
		ShopperResultURL: c.cfg.ReturnURL,
	}
	switch {
	case req.NewCard != nil:
		nc := req.NewCard
		out.Card = &gatewayCard{
			Number:      nc.Number,
			Holder:      nc.Holder,
			ExpiryMonth: nc.ExpiryMonth,
			ExpiryYear:  nc.ExpiryYear,
			CVV:         nc.CVV,
		}
		out.CreateRegistration = true
		out.Billing = &gatewayBilling{
			Street1:  nc.Billing.Street,
			City:     nc.Billing.City,
			State:    nc.Billing.State,
			Postcode: nc.Billing.PostCode,
			Country:  nc.Billing.Country,
		}
	case req.VaultedCard != nil:
		out.RegistrationID = req.VaultedCard.RegistrationID
		if out.RegistrationID == "" {
			out.RegistrationID = req.VaultedCard.CardID
		}
		out.Card = &gatewayCard{CVV: req.VaultedCard.CVV}
	}
	return out
}

// Submit validates the request, sends it once and classifies the response.
// It never returns an error: every failure is folded into the outcome.
func (c *Client) Submit(ctx context.Context, req payment.Request) payment.Outcome {
	if problems := req.Validate(); len(problems) > 0 {
		c.logger.Info("payment request rejected before submission",
			"booking_id", req.BookingID,
			"problems", len(problems),
		)
		return payment.ValidationFailed(problems...)
	}

	source := "vaulted_card"
	if req.NewCard != nil {
		source = "new_card"
	}
	c.logger.Info("submitting payment authorization",
		"booking_id", req.BookingID,
		"amount", req.Amount.String(),
		"source", source,
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(c.buildRequest(req)).
		Post("/v1/payments")
	if err != nil {
		kind := payment.TransportNetwork
		if httpclient.IsTimeout(err) {
			kind = payment.TransportTimeout
		}
		c.logger.Warn("authorization transport failure",
			"booking_id", req.BookingID,
			"kind", kind,
			"error", err,
		)
		return payment.TransportFailed(kind)
	}

	outcome := Classify(resp.Body(), c.cfg.SuccessCode)
	if resp.IsError() && (outcome.Kind == payment.OutcomeApproved || outcome.Kind == payment.OutcomeStepUpRequired) {
		// An error status never authorizes; the body came from something other than the gateway.
		c.logger.Warn("authorization answered with error status and no gateway verdict",
			"booking_id", req.BookingID,
			"http_status", resp.StatusCode(),
		)
		return payment.TransportFailed(payment.TransportNetwork)
	}
	c.logger.Info("authorization classified",
		"booking_id", req.BookingID,
		"http_status", resp.StatusCode(),
		"kind", outcome.Kind,
		"code", outcome.Code,
	)
	return outcome
}
