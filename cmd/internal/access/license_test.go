package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"listinggen/cmd/internal/license"
	"listinggen/cmd/security/passcode"
)

type verifierStub struct {
	result    license.Result
	calls     int
	permalink string
	key       string
}

func (s *verifierStub) Verify(_ context.Context, permalink, key string) license.Result {
	s.calls++
	s.permalink = permalink
	s.key = key
	return s.result
}

var testProducts = license.Products{Pro: "listing-pro", BYOK: "listing-byok"}

func TestCheckLicense_OverrideWins(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	v := &verifierStub{result: license.Result{Kind: license.Rejected}}
	m := NewMatcher("letmein-admin", "", passcode.Config{})

	got, err := CheckLicense(context.Background(), "  letmein-admin ", license.PlanPro, m, v, testProducts, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Override || !got.License.Licensed || !got.License.Bypass() {
		t.Fatalf("expected admin license, got %+v", got)
	}
	if v.calls != 0 {
		t.Fatalf("verifier called %d times", v.calls)
	}
}

func TestCheckLicense_FallsThroughToVerifier(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	v := &verifierStub{result: license.Result{Kind: license.Verified, Status: 200}}
	m := NewMatcher("letmein-admin", "", passcode.Config{})

	got, err := CheckLicense(context.Background(), "KEY-123", license.PlanBYOK, m, v, testProducts, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Override || got.License.Bypass() || got.License.Plan != license.PlanBYOK {
		t.Fatalf("unexpected check: %+v", got)
	}
	if v.calls != 1 || v.permalink != "listing-byok" || v.key != "KEY-123" {
		t.Fatalf("verifier saw calls=%d permalink=%q key=%q", v.calls, v.permalink, v.key)
	}
}

func TestCheckLicense_VerifierFailuresAreInvalidKey(t *testing.T) {
	t.Parallel()

	for _, kind := range []license.Kind{license.Rejected, license.Transport, license.HTTPStatus, license.Malformed} {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()

			v := &verifierStub{result: license.Result{Kind: kind}}
			got, err := CheckLicense(context.Background(), "KEY", license.PlanPro, Matcher{}, v, testProducts, time.Now())
			if !errors.Is(err, ErrInvalidAccessKey) {
				t.Fatalf("expected ErrInvalidAccessKey, got %v", err)
			}
			if got.License.Licensed {
				t.Fatalf("license granted on %v", kind)
			}
			if got.Result.Kind != kind {
				t.Fatalf("result kind=%v want=%v", got.Result.Kind, kind)
			}
		})
	}
}

func TestCheckLicense_Unconfigured(t *testing.T) {
	t.Parallel()

	v := &verifierStub{result: license.Result{Kind: license.Verified}}
	_, err := CheckLicense(context.Background(), "KEY", license.PlanBYOK, Matcher{}, v, license.Products{Pro: "p"}, time.Now())
	if !errors.Is(err, ErrLicenseUnconfigured) {
		t.Fatalf("expected ErrLicenseUnconfigured, got %v", err)
	}
	if v.calls != 0 {
		t.Fatalf("verifier must not be called")
	}
}

func TestCheckLicense_EmptyKey(t *testing.T) {
	t.Parallel()

	v := &verifierStub{result: license.Result{Kind: license.Verified}}
	if _, err := CheckLicense(context.Background(), "   ", license.PlanPro, Matcher{}, v, testProducts, time.Now()); !errors.Is(err, ErrInvalidAccessKey) {
		t.Fatalf("expected ErrInvalidAccessKey, got %v", err)
	}
	if v.calls != 0 {
		t.Fatalf("verifier must not be called")
	}
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	cfg := passcode.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1

	h, err := cfg.Hash("hashed-override")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	cases := []struct {
		name      string
		m         Matcher
		candidate string
		want      bool
	}{
		{name: "disabled", m: Matcher{}, candidate: "anything", want: false},
		{name: "plain match", m: NewMatcher("secret-code", "", cfg), candidate: "secret-code", want: true},
		{name: "plain mismatch", m: NewMatcher("secret-code", "", cfg), candidate: "secret-cod", want: false},
		{name: "case sensitive", m: NewMatcher("secret-code", "", cfg), candidate: "SECRET-CODE", want: false},
		{name: "empty candidate", m: NewMatcher("secret-code", "", cfg), candidate: " ", want: false},
		{name: "hash match", m: NewMatcher("", h, cfg), candidate: "hashed-override", want: true},
		{name: "hash mismatch", m: NewMatcher("", h, cfg), candidate: "other-override", want: false},
		{name: "hash wins over plain", m: NewMatcher("secret-code", h, cfg), candidate: "secret-code", want: false},
		{name: "broken hash", m: NewMatcher("", "$argon2id$junk", cfg), candidate: "hashed-override", want: false},
	}

	for _, tc := range cases {
		if got := tc.m.Match(tc.candidate); got != tc.want {
			t.Fatalf("%s: Match(%q)=%v want=%v", tc.name, tc.candidate, got, tc.want)
		}
	}
}
