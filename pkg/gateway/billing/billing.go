// Package billing creates Stripe Checkout sessions for plan upgrades.
package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
)

// Config wires the Stripe account and the plan catalog.
type Config struct {
	APIKey     string
	PublicURL  string
	PlanPrices map[string]string // plan name -> Stripe price id
}

// Client creates checkout sessions.
type Client struct {
	publicURL  string
	planPrices map[string]string
}

// New configures the global Stripe key and returns a client. Returns nil when
// no API key is configured; callers treat a nil client as billing disabled.
func New(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	stripe.Key = cfg.APIKey
	return &Client{
		publicURL:  cfg.PublicURL,
		planPrices: cfg.PlanPrices,
	}
}

// CheckoutURL creates a subscription checkout session for the plan and
// returns the hosted payment page URL.
func (c *Client) CheckoutURL(plan, userID string) (string, error) {
	if c == nil {
		return "", apierror.New(apierror.TypeUnavailable, "billing is not configured")
	}
	priceID, ok := c.planPrices[plan]
	if !ok {
		return "", apierror.New(apierror.TypeInvalidRequest, fmt.Sprintf("unknown plan %q", plan))
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.publicURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(c.publicURL + "/billing/cancel"),
		ClientReferenceID: stripe.String(userID),
	}
	s, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.URL, nil
}
