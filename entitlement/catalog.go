package entitlement

// Plan is one static catalog entry: display pricing, the tier's feature
// list, and its usage limits.
type Plan struct {
	Tier       Tier
	PriceCents int64
	Features   []string
	Limits     map[string]int64
}

// Catalog is the static, read-only tier → plan mapping. It is loaded once
// at construction and never mutated at runtime.
type Catalog map[Tier]Plan

// DefaultCatalog returns the built-in plan catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		TierFree: {
			Tier:       TierFree,
			PriceCents: 0,
			Features:   []string{"dashboard", "chat"},
			Limits: map[string]int64{
				"chat_messages_per_day": 20,
				"generations_per_month": 10,
				"api_keys":              1,
			},
		},
		TierBasic: {
			Tier:       TierBasic,
			PriceCents: 900, // $9/month
			Features:   []string{"dashboard", "chat", "code-generator", "api-keys"},
			Limits: map[string]int64{
				"chat_messages_per_day": 200,
				"generations_per_month": 200,
				"api_keys":              3,
			},
		},
		TierPro: {
			Tier:       TierPro,
			PriceCents: 4900, // $49/month
			Features:   []string{"dashboard", "chat", "code-generator", "api-keys", "usage-analytics", "priority-support"},
			Limits: map[string]int64{
				"chat_messages_per_day": 2000,
				"generations_per_month": 2000,
				"api_keys":              10,
			},
		},
		TierEnterprise: {
			Tier:       TierEnterprise,
			PriceCents: 49900, // $499/month
			Features:   []string{"dashboard", "chat", "code-generator", "api-keys", "usage-analytics", "priority-support", "team-management", "sso", "audit-log"},
			Limits: map[string]int64{
				"chat_messages_per_day": 50000,
				"generations_per_month": 50000,
				"api_keys":              100,
			},
		},
	}
}

// Plan returns the catalog entry for a tier. Unknown tiers resolve to the
// free plan so callers always get a well-defined entry.
func (c Catalog) Plan(t Tier) Plan {
	if plan, ok := c[t]; ok {
		return plan
	}
	return c[TierFree]
}

// HasFeature reports whether the tier's static feature list contains the
// named feature.
func (c Catalog) HasFeature(t Tier, feature string) bool {
	for _, f := range c.Plan(t).Features {
		if f == feature {
			return true
		}
	}
	return false
}
