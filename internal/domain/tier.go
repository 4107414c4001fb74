package domain

import (
	dErrors "zenid/pkg/domain-errors"
)

// Tier is a KYC outcome category granting a set of account capabilities.
// Capability sets themselves live with the account service; the engine only
// assigns the tier.
type Tier string

const (
	Tier0Restricted Tier = "tier0_restricted"
	Tier1Basic      Tier = "tier1_basic"
	Tier2Standard   Tier = "tier2_standard"
	Tier3Enhanced   Tier = "tier3_enhanced"
)

var tierRanks = map[Tier]int{
	Tier0Restricted: 0,
	Tier1Basic:      1,
	Tier2Standard:   2,
	Tier3Enhanced:   3,
}

// Rank orders tiers for cap comparisons. Unknown tiers rank below Tier0.
func (t Tier) Rank() int {
	if r, ok := tierRanks[t]; ok {
		return r
	}
	return -1
}

// Known reports whether t is one of the defined tiers.
func (t Tier) Known() bool {
	_, ok := tierRanks[t]
	return ok
}

// ParseTier validates a tier from its string form.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Known() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown tier %q", s)
	}
	return t, nil
}
