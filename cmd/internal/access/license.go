package access

import (
	"context"
	"strings"
	"time"

	"listinggen/cmd/internal/license"
)

// Verifier is the external licensing API.
type Verifier interface {
	Verify(ctx context.Context, permalink, key string) license.Result
}

// License is the session's unlock state.
type License struct {
	Licensed  bool
	Plan      license.Plan
	GrantedAt time.Time
}

// Bypass reports whether the license came from the admin override.
func (l License) Bypass() bool { return l.Licensed && l.Plan == license.PlanAdmin }

// Check is the outcome of CheckLicense. Result is the verifier's answer and
// is zero when the override matched.
type Check struct {
	License  License
	Override bool
	Result   license.Result
}

// CheckLicense decides whether candidate unlocks plan. The override is
// tried first and never touches the network. Otherwise the verifier is
// called exactly once; only a verified result grants the license.
//
// Every verifier failure yields ErrInvalidAccessKey. A plan without a
// configured product yields ErrLicenseUnconfigured.
func CheckLicense(
	ctx context.Context,
	candidate string,
	plan license.Plan,
	override Matcher,
	verifier Verifier,
	products license.Products,
	now time.Time,
) (Check, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return Check{}, ErrInvalidAccessKey
	}

	if override.Match(candidate) {
		return Check{
			License:  License{Licensed: true, Plan: license.PlanAdmin, GrantedAt: now},
			Override: true,
		}, nil
	}

	permalink := products.Permalink(plan)
	if permalink == "" || verifier == nil {
		return Check{}, ErrLicenseUnconfigured
	}

	res := verifier.Verify(ctx, permalink, candidate)
	if !res.OK() {
		return Check{Result: res}, ErrInvalidAccessKey
	}

	return Check{
		License: License{Licensed: true, Plan: plan, GrantedAt: now},
		Result:  res,
	}, nil
}
