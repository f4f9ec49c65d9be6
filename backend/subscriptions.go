package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"net/http"

	"github.com/pkg/errors"

	errs "github.com/corebrain/go-session-service/internal/errors"
)

// SubscriptionPayload is the backend's subscription record as it arrives on
// the wire. The backend is inconsistent about field shapes: the tier may be
// sent under "tier" or "type", and products may be a single string, an
// array, or absent. Normalization into a canonical record happens in the
// entitlement package.
type SubscriptionPayload struct {
	Tier      string           `json:"tier,omitempty"`
	Type      string           `json:"type,omitempty"`
	Status    string           `json:"status,omitempty"`
	Products  json.RawMessage  `json:"products,omitempty"`
	Usage     map[string]int64 `json:"usage,omitempty"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	ExpiresAt time.Time        `json:"expires_at,omitempty"`
}

// ChangePlanRequest asks billing, the system of record, for a plan change.
type ChangePlanRequest struct {
	UserID    string `json:"user_id"`
	Tier      string `json:"tier"`
	ProductID string `json:"product_id,omitempty"`
}

// PaymentRequest is passed through to the payment collaborator opaquely;
// card handling happens entirely on the backend.
type PaymentRequest struct {
	UserID string         `json:"user_id"`
	Tier   string         `json:"tier"`
	Detail map[string]any `json:"detail,omitempty"`
}

// PaymentResult reports whether the payment resulted in a plan change.
type PaymentResult struct {
	PlanChanged bool `json:"plan_changed"`
}

// BillingEvent is one row of the user's billing history.
type BillingEvent struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// GetSubscription fetches the raw subscription record for a user.
func (c *Client) GetSubscription(ctx context.Context, serviceToken, userID string) (*SubscriptionPayload, error) {
	endpoint := fmt.Sprintf("%s%s/users/%s", c.apiEndpoint, subscriptionsPath, url.PathEscape(userID))
	var payload SubscriptionPayload
	if err := c.doJSON(ctx, http.MethodGet, endpoint, serviceToken, nil, &payload); err != nil {
		return nil, errors.Wrap(errs.ErrEntitlementFetch, "[Client.GetSubscription] "+err.Error())
	}
	return &payload, nil
}

// ChangePlan asks the backend to change the subscription plan and returns
// the server's replacement record.
func (c *Client) ChangePlan(ctx context.Context, serviceToken string, req *ChangePlanRequest) (*SubscriptionPayload, error) {
	var payload SubscriptionPayload
	if err := c.doJSON(ctx, http.MethodPost, c.apiEndpoint+subscriptionsPath, serviceToken, req, &payload); err != nil {
		return nil, errors.Wrap(errs.ErrPlanChange, "[Client.ChangePlan] "+err.Error())
	}
	return &payload, nil
}

// CancelSubscription cancels the user's subscription and returns the
// server's replacement record.
func (c *Client) CancelSubscription(ctx context.Context, serviceToken, userID string) (*SubscriptionPayload, error) {
	req := struct {
		UserID string `json:"user_id"`
	}{UserID: userID}

	var payload SubscriptionPayload
	if err := c.doJSON(ctx, http.MethodPost, c.apiEndpoint+subscriptionsPath+"/cancel", serviceToken, req, &payload); err != nil {
		return nil, errors.Wrap(errs.ErrPlanChange, "[Client.CancelSubscription] "+err.Error())
	}
	return &payload, nil
}

// SubmitPayment forwards a payment request to the billing collaborator.
// The only consumed result is the plan-changed boolean.
func (c *Client) SubmitPayment(ctx context.Context, serviceToken string, req *PaymentRequest) (*PaymentResult, error) {
	var result PaymentResult
	if err := c.doJSON(ctx, http.MethodPost, c.apiEndpoint+subscriptionsPath+"/payment", serviceToken, req, &result); err != nil {
		return nil, errors.Wrap(errs.ErrPlanChange, "[Client.SubmitPayment] "+err.Error())
	}
	return &result, nil
}

// GetBillingHistory lists the user's billing events.
func (c *Client) GetBillingHistory(ctx context.Context, serviceToken string) ([]BillingEvent, error) {
	var events []BillingEvent
	if err := c.doJSON(ctx, http.MethodGet, c.apiEndpoint+subscriptionsPath+"/billing", serviceToken, nil, &events); err != nil {
		return nil, errors.Wrap(errs.ErrEntitlementFetch, "[Client.GetBillingHistory] "+err.Error())
	}
	return events, nil
}
