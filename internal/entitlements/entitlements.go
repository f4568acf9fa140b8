// Package entitlements maps account tiers to their usage allowances.
//
// The table is a fixed, startup-time dispatch structure. Unknown tiers are
// rejected rather than silently defaulted so a misconfigured session token
// surfaces as an error instead of an unbounded allowance.
package entitlements

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownTier indicates an account tier with no entitlement entry.
var ErrUnknownTier = errors.New("unknown account tier")

// Tier identifies an account class carried in the session token.
type Tier string

const (
	TierGuest   Tier = "guest"
	TierRegular Tier = "regular"
)

// Entitlements describes what an account tier may do.
type Entitlements struct {
	// MaxMessagesPerDay bounds user messages over a rolling 24 hour window.
	MaxMessagesPerDay int

	// AvailableModelIDs lists the chat model selectors the tier may use.
	AvailableModelIDs []string
}

var byTier = map[Tier]Entitlements{
	TierGuest: {
		MaxMessagesPerDay: 20,
		AvailableModelIDs: []string{"chat-model"},
	},
	TierRegular: {
		MaxMessagesPerDay: 100,
		AvailableModelIDs: []string{"chat-model", "chat-model-reasoning"},
	},
}

// ForTier returns the entitlements for a tier.
func ForTier(tier Tier) (Entitlements, error) {
	ent, ok := byTier[tier]
	if !ok {
		return Entitlements{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return ent, nil
}

// AllowsModel reports whether the tier may select the given chat model.
func (e Entitlements) AllowsModel(modelID string) bool {
	return slices.Contains(e.AvailableModelIDs, modelID)
}
