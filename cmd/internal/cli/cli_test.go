package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"listinggen/cmd/internal/audit"
	"listinggen/cmd/security/passcode"
)

// run executes the root command with an empty env file so a developer's
// local .env never leaks into a test.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	empty := filepath.Join(t.TempDir(), "empty.env")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--env-file", empty}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestPromptCmd_Flags(t *testing.T) {
	out, _, err := run(t, "", "prompt",
		"--address", "20 Maunder Close",
		"--bedrooms", "0",
		"--tone", "Luxury",
		"--keywords", "sea view, balcony",
		"--cta=false",
	)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	for _, want := range []string{
		"at 20 Maunder Close.",
		"It is a studio",
		"Desired tone: luxury.",
		"sea view",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPromptCmd_StdinJSON(t *testing.T) {
	out, _, err := run(t, `{"address":"1 High St","length":200}`, "prompt", "--file", "-")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.Contains(out, "at 1 High St.") || !strings.Contains(out, "~200 words") {
		t.Fatalf("unexpected prompt:\n%s", out)
	}

	if _, _, err := run(t, `{"address":"x","colour":"red"}`, "prompt", "--file", "-"); err == nil {
		t.Fatal("unknown JSON field should fail")
	}
}

func TestPromptCmd_Invalid(t *testing.T) {
	out, errOut, err := run(t, "", "prompt", "--length", "5")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if out != "" {
		t.Fatalf("nothing should be printed on stdout, got %q", out)
	}
	if !strings.Contains(errOut, "address: required") || !strings.Contains(errOut, "length: must be between") {
		t.Fatalf("stderr=%q", errOut)
	}
}

func TestHashOverrideCmd(t *testing.T) {
	out, _, err := run(t, "  correct-horse-battery-staple \n", "hash-override")
	if err != nil {
		t.Fatalf("hash-override: %v", err)
	}
	hash := strings.TrimSpace(out)
	if !passcode.LooksLikeHash(hash) {
		t.Fatalf("not an argon2id hash: %q", hash)
	}
	ok, err := passcode.DefaultConfig().Verify(hash, "correct-horse-battery-staple")
	if err != nil || !ok {
		t.Fatalf("Verify=%v err=%v", ok, err)
	}

	if _, _, err := run(t, "", "hash-override"); err == nil {
		t.Fatal("empty stdin should fail")
	}
}

func TestVerifyLicenseCmd(t *testing.T) {
	var (
		mu           sync.Mutex
		gotPermalink string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		gotPermalink = r.PostForm.Get("product_permalink")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("license_key") == "GOOD-KEY" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"message":"That license does not exist"}`))
	}))
	defer srv.Close()

	t.Setenv("GUMROAD_VERIFY_URL", srv.URL)
	t.Setenv("GUMROAD_PRODUCT_PERMALINK", "listing-pro")
	t.Setenv("GUMROAD_BYOK_PERMALINK", "")

	out, _, err := run(t, "", "verify-license", "GOOD-KEY")
	if err != nil {
		t.Fatalf("verify-license: %v", err)
	}
	mu.Lock()
	permalink := gotPermalink
	mu.Unlock()
	if permalink != "listing-pro" || !strings.Contains(out, "result=verified") {
		t.Fatalf("permalink=%q out=%q", permalink, out)
	}

	out, _, err = run(t, "", "verify-license", "BAD-KEY")
	if err == nil || !strings.Contains(out, "result=rejected") {
		t.Fatalf("err=%v out=%q", err, out)
	}

	if _, _, err := run(t, "", "verify-license", "--plan", "byok", "GOOD-KEY"); err == nil {
		t.Fatal("unconfigured plan should fail")
	}
}

func TestAuditCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := audit.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{audit.UnlockVerified, audit.GenerationOK} {
		e := audit.Event{
			ID:        "01J0000000000000000000000" + string(rune('A'+i)),
			At:        at.Add(time.Duration(i) * time.Minute),
			Name:      name,
			SessionID: "sess-1",
			Plan:      "pro",
		}
		if err := sink.Record(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	_ = sink.Close()

	t.Setenv("LISTINGGEN_DATABASE_URL", "sqlite:"+path)

	out, _, err := run(t, "", "audit", "--limit", "1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "EVENT") || !strings.Contains(out, audit.GenerationOK) || strings.Contains(out, audit.UnlockVerified) {
		t.Fatalf("table output:\n%s", out)
	}

	out, _, err = run(t, "", "audit", "--json")
	if err != nil {
		t.Fatalf("audit --json: %v", err)
	}
	var events []audit.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode: %v (%q)", err, out)
	}
	if len(events) != 2 || events[0].Name != audit.GenerationOK {
		t.Fatalf("events=%+v", events)
	}
}

func TestAuditCmd_NoDatabase(t *testing.T) {
	t.Setenv("LISTINGGEN_DATABASE_URL", "")
	if _, _, err := run(t, "", "audit"); err == nil {
		t.Fatal("expected error without a database url")
	}
}
