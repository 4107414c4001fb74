// Package decision maps a risk score onto a final disposition and tier. The
// resolver is pure policy evaluation; everything subjective lives in the
// policy's bands and caps.
package decision

import (
	"time"

	"zenid/internal/domain"
	"zenid/internal/evidence"
	"zenid/internal/policy"
)

// ReasonConflict annotates rejections driven by contradictory identity fields
// so reviewers see the cause, not just the number.
const ReasonConflict = "identity evidence conflict"

// ReasonLowConfidence annotates manual reviews forced by weak signal.
const ReasonLowConfidence = "insufficient evidence confidence"

// Resolver evaluates a scored session against decision policy.
type Resolver struct {
	now func() time.Time
}

func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// Resolve applies policy in strict precedence order:
//
//  1. stage caps with ForceReview — a mandatory stage that produced no
//     evidence overrides everything, including a high score;
//  2. the confidence floor — automation neither accepts nor rejects on weak
//     signal, it routes to a human;
//  3. score bands, last matching floor wins so a boundary score lands in the
//     stricter band;
//  4. remaining tier caps clamp the awarded tier downward.
func (r *Resolver) Resolve(score domain.RiskScore, bundle *evidence.Bundle, pol policy.Decision) domain.Decision {
	d := domain.Decision{
		Score:     score,
		DecidedAt: r.now().UTC(),
	}

	for _, sc := range pol.Caps {
		if !sc.ForceReview || bundle.StageSucceeded(sc.Stage) {
			continue
		}
		d.Outcome = domain.OutcomeManualReview
		d.Reason = sc.Reason
		return d
	}

	if score.Confidence < pol.MinConfidence {
		d.Outcome = domain.OutcomeManualReview
		d.Reason = ReasonLowConfidence
		return d
	}

	band := matchBand(score.Value, pol.Bands)
	d.Outcome = band.Outcome
	d.Tier = band.Tier
	d.Reason = band.Reason

	if d.Outcome == domain.OutcomeRejected && len(bundle.Conflicts) > 0 {
		d.Reason = ReasonConflict
	}

	if d.Outcome == domain.OutcomeAccepted {
		d.Tier = clampTier(d.Tier, bundle, pol.Caps)
	} else {
		d.Tier = ""
	}

	return d
}

// matchBand returns the highest band whose floor the score reaches. Validate
// guarantees an ascending, zero-anchored band list, so a match always exists.
func matchBand(value int, bands []policy.Band) policy.Band {
	matched := bands[0]
	for _, b := range bands {
		if value >= b.Min {
			matched = b
		}
	}
	return matched
}

// clampTier lowers the awarded tier to the tightest cap among stages that
// produced no usable evidence.
func clampTier(tier domain.Tier, bundle *evidence.Bundle, caps []policy.StageCap) domain.Tier {
	for _, sc := range caps {
		if sc.ForceReview || bundle.StageSucceeded(sc.Stage) {
			continue
		}
		if sc.MaxTier.Rank() < tier.Rank() {
			tier = sc.MaxTier
		}
	}
	return tier
}
