package entitlement

import (
	"encoding/json"
	"time"

	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/internal/utils"
)

// Record is the canonical entitlement record every consumer sees. The tier
// is always one of the four known values and Products is always a non-nil
// set, whatever shape the backend sent.
type Record struct {
	Tier      Tier
	Status    string
	Products  map[string]struct{}
	Usage     map[string]int64
	StartedAt time.Time
	ExpiresAt time.Time
}

// FreeRecord synthesizes the least-privilege record used when no
// subscription exists or a fetch failed.
func FreeRecord() *Record {
	return &Record{
		Tier:     TierFree,
		Status:   "none",
		Products: map[string]struct{}{},
		Usage:    map[string]int64{},
	}
}

// HasProduct reports membership in the normalized product set.
func (r *Record) HasProduct(productID string) bool {
	_, ok := r.Products[productID]
	return ok
}

// HasProducts reports whether any product is licensed at all.
func (r *Record) HasProducts() bool {
	return len(r.Products) > 0
}

// Normalize is the validating adapter from the backend's inconsistent wire
// shapes to the canonical record. The tier may arrive under "tier" or
// "type"; products may arrive as a bare string, an array, or not at all.
func Normalize(p *backend.SubscriptionPayload) *Record {
	if p == nil {
		return FreeRecord()
	}

	tierField := p.Tier
	if tierField == "" {
		tierField = p.Type
	}

	usage := p.Usage
	if usage == nil {
		usage = map[string]int64{}
	}

	return &Record{
		Tier:      ParseTier(tierField),
		Status:    p.Status,
		Products:  normalizeProducts(p.Products),
		Usage:     usage,
		StartedAt: p.StartedAt,
		ExpiresAt: p.ExpiresAt,
	}
}

func normalizeProducts(raw json.RawMessage) map[string]struct{} {
	products := map[string]struct{}{}
	if len(raw) == 0 {
		return products
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single != "" {
			products[single] = struct{}{}
		}
		return products
	}

	// Arrays may mix types; keep the string members and drop the rest.
	var items []any
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, id := range utils.ToStringSlice(items) {
			if id != "" {
				products[id] = struct{}{}
			}
		}
	}
	return products
}
