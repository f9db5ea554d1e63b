package license

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGumroadClient_Verify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{name: "success", status: http.StatusOK, body: `{"success":true,"uses":3}`, wantKind: Verified},
		{name: "rejected", status: http.StatusOK, body: `{"success":false,"message":"nope"}`, wantKind: Rejected},
		{name: "not found status", status: http.StatusNotFound, body: `{"success":false,"message":"That license does not exist"}`, wantKind: HTTPStatus},
		{name: "server error", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantKind: HTTPStatus},
		{name: "not json", status: http.StatusOK, body: `ok`, wantKind: Malformed},
		{name: "missing success", status: http.StatusOK, body: `{"uses":1}`, wantKind: Malformed},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewGumroadClient(time.Second, WithEndpoint(srv.URL))
			got := c.Verify(context.Background(), "listing-pro", "KEY-1")
			if got.Kind != tc.wantKind {
				t.Fatalf("kind=%v want=%v (result=%+v)", got.Kind, tc.wantKind, got)
			}
			if got.OK() != (tc.wantKind == Verified) {
				t.Fatalf("OK()=%v for kind %v", got.OK(), got.Kind)
			}
		})
	}
}

func TestGumroadClient_SendsFormFields(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	var gotMethod, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"product_permalink":    r.PostForm.Get("product_permalink"),
			"license_key":          r.PostForm.Get("license_key"),
			"increment_uses_count": r.PostForm.Get("increment_uses_count"),
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewGumroadClient(time.Second, WithEndpoint(srv.URL))
	if res := c.Verify(context.Background(), "listing-pro", "ABC-123"); !res.OK() {
		t.Fatalf("expected verified, got %+v", res)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("method=%s want POST", gotMethod)
	}
	if gotType != "application/x-www-form-urlencoded" {
		t.Fatalf("content-type=%q", gotType)
	}
	want := map[string]string{
		"product_permalink":    "listing-pro",
		"license_key":          "ABC-123",
		"increment_uses_count": "false",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Fatalf("form[%s]=%q want=%q", k, gotForm[k], v)
		}
	}
}

func TestGumroadClient_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewGumroadClient(20*time.Millisecond, WithEndpoint(srv.URL))
	got := c.Verify(context.Background(), "p", "k")
	if got.Kind != Transport {
		t.Fatalf("expected transport failure on timeout, got %+v", got)
	}
}

func TestParsePlan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Plan
		wantErr bool
	}{
		{in: "", want: PlanPro},
		{in: "PRO", want: PlanPro},
		{in: " byok ", want: PlanBYOK},
		{in: "admin", wantErr: true},
		{in: "gold", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParsePlan(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParsePlan(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParsePlan(%q)=%q,%v want=%q", tc.in, got, err, tc.want)
		}
	}
}

func TestProducts(t *testing.T) {
	t.Parallel()

	p := Products{Pro: " listing-pro ", BYOK: ""}
	if got := p.Permalink(PlanPro); got != "listing-pro" {
		t.Fatalf("Permalink(pro)=%q", got)
	}
	if got := p.Permalink(PlanBYOK); got != "" {
		t.Fatalf("Permalink(byok)=%q", got)
	}
	if plans := p.Plans(); len(plans) != 1 || plans[0] != PlanPro {
		t.Fatalf("Plans()=%v", plans)
	}
}
