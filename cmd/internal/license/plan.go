package license

import (
	"errors"
	"strings"
)

// Plan is the product tier a session is unlocked for.
type Plan string

const (
	// PlanPro uses the operator's generation credential.
	PlanPro Plan = "pro"
	// PlanBYOK requires the user to supply their own generation credential.
	PlanBYOK Plan = "byok"
	// PlanAdmin is granted by the admin override code.
	PlanAdmin Plan = "admin"
)

// ErrUnknownPlan is returned by ParsePlan for unsupported values.
var ErrUnknownPlan = errors.New("unknown plan")

// ParsePlan parses a purchasable plan name. Empty means PlanPro.
// PlanAdmin cannot be requested; it is only granted by override.
func ParsePlan(s string) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PlanPro):
		return PlanPro, nil
	case string(PlanBYOK):
		return PlanBYOK, nil
	default:
		return "", ErrUnknownPlan
	}
}

// Products maps purchasable plans to licensing product permalinks.
type Products struct {
	Pro  string
	BYOK string
}

// Permalink returns the permalink configured for plan ("" when unset).
func (p Products) Permalink(plan Plan) string {
	switch plan {
	case PlanPro:
		return strings.TrimSpace(p.Pro)
	case PlanBYOK:
		return strings.TrimSpace(p.BYOK)
	default:
		return ""
	}
}

// Plans lists the plans that have a product configured.
func (p Products) Plans() []Plan {
	var out []Plan
	if p.Permalink(PlanPro) != "" {
		out = append(out, PlanPro)
	}
	if p.Permalink(PlanBYOK) != "" {
		out = append(out, PlanBYOK)
	}
	return out
}
