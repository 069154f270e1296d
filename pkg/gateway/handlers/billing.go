package handlers

import (
	"net/http"
	"strings"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
)

type checkoutResponse struct {
	Plan string `json:"plan"`
	URL  string `json:"url"`
}

// CreateCheckout handles POST /v1/billing/checkout.
func (d *Deps) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		writeError(w, r, apierror.New(apierror.TypeInvalidRequest, "plan is required"))
		return
	}

	url, err := d.Billing.CheckoutURL(plan, p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.Logger.Info("checkout created", "user_id", p.UserID, "plan", plan)
	writeJSON(w, http.StatusOK, checkoutResponse{Plan: plan, URL: url})
}
