package entitlement

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/corebrain/go-session-service/backend"
)

// Provider fetches and caches the entitlement record per session and
// exposes the feature/product/tier predicates used for gating. Every
// consumer always gets a well-defined record: fetch failures and empty
// results synthesize a free-tier record instead of propagating.
type Provider struct {
	backend *backend.Client
	catalog Catalog
	logger  zerolog.Logger

	mu      sync.RWMutex
	records map[string]*Record // sessionID -> current record
}

// NewProvider initializes an entitlement provider over the backend client
// and a static plan catalog.
func NewProvider(backendClient *backend.Client, catalog Catalog, logger zerolog.Logger) (*Provider, error) {
	if backendClient == nil {
		return nil, errors.New("[NewProvider] backend client is required")
	}
	if len(catalog) == 0 {
		return nil, errors.New("[NewProvider] catalog is required")
	}
	return &Provider{
		backend: backendClient,
		catalog: catalog,
		logger:  logger.With().Str("component", "entitlement").Logger(),
		records: make(map[string]*Record),
	}, nil
}

// Fetch retrieves and normalizes the subscription record for the session's
// user, replacing the cached record wholesale. On any failure it installs
// the synthesized free record rather than leaving consumers without one.
func (p *Provider) Fetch(ctx context.Context, sessionID, serviceToken, userID string) *Record {
	payload, err := p.backend.GetSubscription(ctx, serviceToken, userID)
	var record *Record
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Msg("subscription fetch failed, falling back to free tier")
		record = FreeRecord()
	} else {
		record = Normalize(payload)
	}

	p.replace(sessionID, record)
	return record
}

// Current returns the session's record, if one has been fetched.
func (p *Provider) Current(sessionID string) (*Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	record, ok := p.records[sessionID]
	return record, ok
}

// HasAccess reports whether the named feature is in the current tier's
// static feature list.
func (p *Provider) HasAccess(sessionID, feature string) bool {
	return p.catalog.HasFeature(p.currentTier(sessionID), feature)
}

// HasProduct reports membership in the session's normalized product set.
func (p *Provider) HasProduct(sessionID, productID string) bool {
	record, ok := p.Current(sessionID)
	if !ok {
		return false
	}
	return record.HasProduct(productID)
}

// HasPlanAccess reports whether the current tier's ordinal meets the
// required tier's ordinal.
func (p *Provider) HasPlanAccess(sessionID string, required Tier) bool {
	return p.currentTier(sessionID).AtLeast(required)
}

// ChangePlan asks billing for a plan change. Billing is the system of
// record: on success the local record is replaced with the server's
// response in full, never merged field by field.
func (p *Provider) ChangePlan(ctx context.Context, sessionID, serviceToken, userID string, newTier Tier, productID string) (*Record, error) {
	payload, err := p.backend.ChangePlan(ctx, serviceToken, &backend.ChangePlanRequest{
		UserID:    userID,
		Tier:      string(newTier),
		ProductID: productID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.ChangePlan]")
	}

	record := Normalize(payload)
	p.replace(sessionID, record)
	p.logger.Info().Str("user_id", userID).Str("tier", string(record.Tier)).Msg("plan changed")
	return record, nil
}

// Cancel cancels the subscription and replaces the local record with the
// server's response.
func (p *Provider) Cancel(ctx context.Context, sessionID, serviceToken, userID string) (*Record, error) {
	payload, err := p.backend.CancelSubscription(ctx, serviceToken, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.Cancel]")
	}

	record := Normalize(payload)
	p.replace(sessionID, record)
	return record, nil
}

// SubmitPayment forwards a payment to billing. A payment that billing
// reports as plan-changing refetches the record so the new tier takes
// effect immediately.
func (p *Provider) SubmitPayment(ctx context.Context, sessionID, serviceToken string, req *backend.PaymentRequest) (*backend.PaymentResult, error) {
	result, err := p.backend.SubmitPayment(ctx, serviceToken, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.SubmitPayment]")
	}
	if result.PlanChanged {
		p.Fetch(ctx, sessionID, serviceToken, req.UserID)
	}
	return result, nil
}

// BillingHistory lists the user's billing events.
func (p *Provider) BillingHistory(ctx context.Context, serviceToken string) ([]backend.BillingEvent, error) {
	events, err := p.backend.GetBillingHistory(ctx, serviceToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.BillingHistory]")
	}
	return events, nil
}

// GetCurrentPlan returns the static catalog entry for the session's tier,
// for display and limit-threshold checks done elsewhere.
func (p *Provider) GetCurrentPlan(sessionID string) Plan {
	return p.catalog.Plan(p.currentTier(sessionID))
}

// Clear drops the session's record. Called when the session is destroyed.
func (p *Provider) Clear(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, sessionID)
}

func (p *Provider) currentTier(sessionID string) Tier {
	record, ok := p.Current(sessionID)
	if !ok {
		return TierFree
	}
	return record.Tier
}

func (p *Provider) replace(sessionID string, record *Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[sessionID] = record
}
