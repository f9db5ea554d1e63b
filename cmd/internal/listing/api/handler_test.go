package listingapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/listing"
	"listinggen/cmd/internal/session"
	"listinggen/cmd/security/passcode"
	"listinggen/cmd/security/token"
)

type verifierStub struct {
	mu     sync.Mutex
	result license.Result
	calls  int
}

func (v *verifierStub) Verify(context.Context, string, string) license.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.result
}

type completerStub struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
}

func (c *completerStub) Complete(context.Context, generate.Completion) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "", nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type apiFixture struct {
	mux       *http.ServeMux
	verifier  *verifierStub
	completer *completerStub
	clock     *clock
	cookie    *http.Cookie
}

func newAPIFixture(t *testing.T, mutate func(*Config)) *apiFixture {
	t.Helper()

	f := &apiFixture{
		verifier:  &verifierStub{result: license.Result{Kind: license.Verified, Status: 200}},
		completer: &completerStub{replies: []string{"Variant one.", "Variant two.", "Variant three."}},
		clock:     &clock{t: time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)},
	}

	lcfg := listing.DefaultConfig()
	lcfg.Products = license.Products{Pro: "listing-pro", BYOK: "listing-byok"}
	svc := listing.NewService(lcfg, f.verifier, f.completer,
		listing.WithOverride(access.NewMatcher("admin-override-code", "", passcode.Config{})),
		listing.WithClock(f.clock.now),
		listing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	store := session.NewStore(session.DefaultConfig(), token.Hasher{})

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, svc, store, WithClock(f.clock.now))
	f.mux = http.NewServeMux()
	h.Register(f.mux)
	return f
}

// do sends a request carrying the fixture's session cookie and keeps any
// cookie the server issues.
func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.7:5555"
	if f.cookie != nil {
		req.AddCookie(f.cookie)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name == "listinggen_session" {
			f.cookie = c
		}
	}
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorResponse](t, rr).Error.Code
}

const validGenerate = `{"address":"20 Maunder Close","bedrooms":2,"bathrooms":1,"property_type":"Flat/Apartment","features":"garden, parking","tone":"Professional","audience":"General buyers","length":150,"spelling":"UK","format":"Paragraphs","add_title":true,"add_cta":true}`

func TestOptions(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/api/options", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[optionsResponse](t, rr)
	if got.DefaultModel != "gpt-4o-mini" || got.Models[0] != "gpt-4o-mini" {
		t.Fatalf("models=%v default=%q", got.Models, got.DefaultModel)
	}
	if got.DefaultVariants != 2 || got.MaxVariants != 3 || got.Defaults.Length != 150 {
		t.Fatalf("unexpected options: %+v", got)
	}
	if len(got.Tones) == 0 || len(got.PropertyTypes) == 0 {
		t.Fatalf("missing enumerations: %+v", got.OptionSet)
	}

	if rr := f.do(t, http.MethodPost, "/api/options", "{}"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", rr.Code)
	}
}

func TestStatus_IssuesSessionCookieOnce(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if f.cookie == nil || !f.cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", f.cookie)
	}
	st := decodeBody[statusResponse](t, rr)
	if st.Licensed || st.Remaining == nil || *st.Remaining != 50 {
		t.Fatalf("unexpected status: %+v", st)
	}

	first := f.cookie.Value
	rr = f.do(t, http.MethodGet, "/api/status", "")
	if len(rr.Result().Cookies()) != 0 || f.cookie.Value != first {
		t.Fatalf("known session should not be reissued")
	}
}

func TestUnlock(t *testing.T) {
	t.Parallel()

	t.Run("rejected key", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t, nil)
		f.verifier.result = license.Result{Kind: license.Rejected, Status: 200}

		rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"nope"}`)
		if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "invalid_access_key" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("verified pro", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t, nil)

		rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"LICENSE-1","plan":"pro"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		st := decodeBody[statusResponse](t, rr)
		if !st.Licensed || st.Plan != "pro" || st.Unlimited {
			t.Fatalf("unexpected status: %+v", st)
		}
	})

	t.Run("override is unlimited", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t, nil)

		rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":" admin-override-code "}`)
		st := decodeBody[statusResponse](t, rr)
		if !st.Licensed || st.Plan != "admin" || !st.Unlimited || st.Remaining != nil {
			t.Fatalf("unexpected status: %+v", st)
		}
		if f.verifier.calls != 0 {
			t.Fatalf("verifier called for override")
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t, nil)

		rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"k","plan":"gold"}`)
		if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "invalid_plan" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()
		f := newAPIFixture(t, nil)

		rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"k","extra":1}`)
		if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "invalid_json" {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
	})
}

func TestUnlock_RateLimitedPerIP(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, func(c *Config) {
		c.UnlockIPMax = 2
		c.UnlockIPWindow = time.Minute
	})
	f.verifier.result = license.Result{Kind: license.Rejected, Status: 200}

	for i := 0; i < 2; i++ {
		if rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"x"}`); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d", i, rr.Code)
		}
	}
	rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"x"}`)
	if rr.Code != http.StatusTooManyRequests || errorCode(t, rr) != "rate_limited" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After=%q", rr.Header().Get("Retry-After"))
	}

	f.clock.add(time.Minute + time.Second)
	if rr := f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"x"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("after window status=%d", rr.Code)
	}
}

func TestGenerate_Locked(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	rr := f.do(t, http.MethodPost, "/api/generate", validGenerate)
	if rr.Code != http.StatusForbidden || errorCode(t, rr) != "locked" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if f.completer.calls != 0 {
		t.Fatalf("completer called while locked")
	}
}

func TestGenerate_FlowWithCooldownHistoryAndDownload(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"LICENSE-1"}`)

	rr := f.do(t, http.MethodPost, "/api/generate", validGenerate)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[generateResponse](t, rr)
	if len(got.Variants) != 2 || got.Requested != 2 || got.Warning != "" || got.RecordID == "" {
		t.Fatalf("unexpected response: %+v", got)
	}

	rr = f.do(t, http.MethodPost, "/api/generate", validGenerate)
	if rr.Code != http.StatusTooManyRequests || errorCode(t, rr) != "cooldown_active" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "5" {
		t.Fatalf("Retry-After=%q", rr.Header().Get("Retry-After"))
	}

	rr = f.do(t, http.MethodGet, "/api/history", "")
	hist := decodeBody[historyResponse](t, rr)
	if len(hist.Items) != 1 || hist.Items[0].Address != "20 Maunder Close" || len(hist.Items[0].Previews) != 2 {
		t.Fatalf("history=%+v", hist)
	}

	rr = f.do(t, http.MethodGet, "/api/download", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("download status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "listing_variants.txt") {
		t.Fatalf("Content-Disposition=%q", cd)
	}
	want := "=== VARIANT 1 ===\nVariant one.\n\n=== VARIANT 2 ===\nVariant two.\n"
	if rr.Body.String() != want {
		t.Fatalf("bundle=%q want=%q", rr.Body.String(), want)
	}

	st := decodeBody[statusResponse](t, f.do(t, http.MethodGet, "/api/status", ""))
	if st.Remaining == nil || *st.Remaining != 49 || !st.HasBatch {
		t.Fatalf("status=%+v", st)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"LICENSE-1"}`)

	rr := f.do(t, http.MethodPost, "/api/generate", `{"address":"","bedrooms":2,"bathrooms":1,"property_type":"Castle","tone":"Professional","audience":"General buyers","length":150,"spelling":"UK","format":"Paragraphs","variants":7}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody[errorResponse](t, rr)
	if body.Error.Code != "invalid_request" || len(body.Error.Fields) < 3 {
		t.Fatalf("error=%+v", body.Error)
	}
	if f.completer.calls != 0 {
		t.Fatalf("completer called for invalid request")
	}
}

func TestGenerate_PartialBatch(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	f.completer.errs = []error{nil, errors.New("upstream 500")}
	f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"LICENSE-1"}`)

	rr := f.do(t, http.MethodPost, "/api/generate", validGenerate)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[generateResponse](t, rr)
	if len(got.Variants) != 1 || got.Warning == "" {
		t.Fatalf("unexpected response: %+v", got)
	}
	if strings.Contains(rr.Body.String(), "upstream 500") {
		t.Fatalf("upstream error leaked: %s", rr.Body.String())
	}
}

func TestGenerate_FirstCallFails(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	f.completer.errs = []error{errors.New("boom")}
	f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"LICENSE-1"}`)

	rr := f.do(t, http.MethodPost, "/api/generate", validGenerate)
	if rr.Code != http.StatusBadGateway || errorCode(t, rr) != "generation_failed" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	st := decodeBody[statusResponse](t, f.do(t, http.MethodGet, "/api/status", ""))
	if st.Remaining == nil || *st.Remaining != 50 {
		t.Fatalf("failed batch consumed quota: %+v", st)
	}
}

func TestBYOKKey(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	if rr := f.do(t, http.MethodPost, "/api/byok-key", `{"api_key":"sk-x"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("locked status=%d", rr.Code)
	}

	f.do(t, http.MethodPost, "/api/unlock", `{"access_key":"LICENSE-1","plan":"byok"}`)
	if rr := f.do(t, http.MethodPost, "/api/generate", validGenerate); errorCode(t, rr) != "byok_key_missing" {
		t.Fatalf("expected byok_key_missing, got %s", rr.Body.String())
	}

	rr := f.do(t, http.MethodPost, "/api/byok-key", `{"api_key":"sk-x"}`)
	if rr.Code != http.StatusOK || !decodeBody[statusResponse](t, rr).BYOKKeySet {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestDownload_NothingYet(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/api/download", "")
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "no_batch" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHistory_BadLimit(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, nil)
	if rr := f.do(t, http.MethodGet, "/api/history?limit=zero", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	rr := f.do(t, http.MethodGet, "/api/history", "")
	if rr.Code != http.StatusOK || len(decodeBody[historyResponse](t, rr).Items) != 0 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")

	if got := clientIP(r, false).String(); got != "10.0.0.1" {
		t.Fatalf("untrusted proxy ip=%s", got)
	}
	if got := clientIP(r, true).String(); got != "198.51.100.2" {
		t.Fatalf("trusted proxy ip=%s", got)
	}
}
