package entitlement

// Tier is the subscription tier. The ordinal hierarchy is fixed and access
// checks are monotonic in it: free < basic < pro < enterprise.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierOrdinals = map[Tier]int{
	TierFree:       0,
	TierBasic:      1,
	TierPro:        2,
	TierEnterprise: 3,
}

// ParseTier resolves a wire value to one of the four known tiers. Unknown,
// missing, or garbage values resolve to free: fail open to least privilege,
// never to an undefined tier.
func ParseTier(s string) Tier {
	t := Tier(s)
	if _, ok := tierOrdinals[t]; !ok {
		return TierFree
	}
	return t
}

// Ordinal returns the tier's rank in the fixed hierarchy.
func (t Tier) Ordinal() int {
	return tierOrdinals[t]
}

// AtLeast reports whether t grants access to features requiring the given
// tier.
func (t Tier) AtLeast(required Tier) bool {
	return t.Ordinal() >= required.Ordinal()
}
