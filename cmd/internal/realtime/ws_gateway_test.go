package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/listing"
	listingapi "listinggen/cmd/internal/listing/api"
	"listinggen/cmd/internal/session"
	"listinggen/cmd/security/token"
	v1 "listinggen/shared/contracts/listing/v1"

	"github.com/coder/websocket"
)

type verifierStub struct{}

func (verifierStub) Verify(context.Context, string, string) license.Result {
	return license.Result{Kind: license.Verified, Status: 200}
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

type wsFixture struct {
	srv       *httptest.Server
	http      *http.Client
	completer *completerStub
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &wsFixture{completer: &completerStub{replies: []string{"First.", "Second.", "Third."}}}

	lcfg := listing.DefaultConfig()
	lcfg.Products = license.Products{Pro: "listing-pro"}
	svc := listing.NewService(lcfg, verifierStub{}, f.completer, listing.WithLogger(log))
	store := session.NewStore(session.DefaultConfig(), token.Hasher{})

	api := listingapi.NewHandler(log, listingapi.DefaultConfig(), svc, store)
	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("/ws", NewWSGateway(log, DefaultConfig(), svc, api))

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	// websocket.Dial refuses clients with Timeout set.
	f.http = &http.Client{Jar: jar}
	return f
}

func (f *wsFixture) post(t *testing.T, path, body string) {
	t.Helper()
	resp, err := f.http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	_ = resp.Body.Close()
}

func (f *wsFixture) startSession(t *testing.T, unlock bool) {
	t.Helper()
	resp, err := f.http.Get(f.srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	_ = resp.Body.Close()
	if unlock {
		f.post(t, "/api/unlock", `{"access_key":"LICENSE-1"}`)
	}
}

func (f *wsFixture) dial(t *testing.T, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	h := http.Header{}
	if origin != "" {
		h.Set("Origin", origin)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	return websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient:   f.http,
		HTTPHeader:   h,
		Subprotocols: []string{v1.Subprotocol},
	})
}

func writeEnv(t *testing.T, c *websocket.Conn, typ, id string, payload any) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, _ := json.Marshal(v1.Envelope{V: v1.Version, Type: typ, ID: id, TS: time.Now().UTC(), Payload: b})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, env); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readEnv(t *testing.T, c *websocket.Conn) v1.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func payload[T any](t *testing.T, env v1.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
	return v
}

func readTypes(t *testing.T, c *websocket.Conn, n int) []v1.Envelope {
	t.Helper()
	out := make([]v1.Envelope, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, readEnv(t, c))
	}
	return out
}

func listingRequest() v1.GenerateRequest {
	return v1.GenerateRequest{
		Address:      "20 Maunder Close",
		Bedrooms:     2,
		Bathrooms:    1,
		PropertyType: "Flat/Apartment",
		Features:     "garden",
		Tone:         "Professional",
		Audience:     "General buyers",
		Length:       150,
		Spelling:     "UK",
		Format:       "Paragraphs",
	}
}

func TestWSGateway_RejectsMissingSession(t *testing.T) {
	t.Parallel()

	f := newWSFixture(t)
	_, resp, err := f.dial(t, "http://localhost")
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got resp=%v err=%v", resp, err)
	}
}

func TestWSGateway_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	f := newWSFixture(t)
	f.startSession(t, false)

	_, resp, err := f.dial(t, "https://evil.example")
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got resp=%v err=%v", resp, err)
	}
}

func TestWSGateway_StreamsBatch(t *testing.T) {
	t.Parallel()

	f := newWSFixture(t)
	f.startSession(t, true)

	c, _, err := f.dial(t, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	writeEnv(t, c, v1.TypeHello, "h1", struct{}{})
	ack := readEnv(t, c)
	if ack.Type != v1.TypeHelloAck {
		t.Fatalf("got %s want hello.ack", ack.Type)
	}
	if p := payload[v1.HelloAckPayload](t, ack); !p.Licensed || p.Plan != "pro" || p.Remaining != 50 {
		t.Fatalf("hello.ack=%+v", p)
	}

	writeEnv(t, c, v1.TypeGenerateRequest, "req-1", listingRequest())
	got := readTypes(t, c, 4)

	wantTypes := []string{v1.TypeGenerateStarted, v1.TypeVariantNew, v1.TypeVariantNew, v1.TypeGenerateDone}
	for i, env := range got {
		if env.Type != wantTypes[i] {
			t.Fatalf("event %d type=%s want=%s", i, env.Type, wantTypes[i])
		}
	}
	if p := payload[v1.GenerateStartedPayload](t, got[0]); p.RequestID != "req-1" || p.Variants != 2 || p.Model != "gpt-4o-mini" {
		t.Fatalf("started=%+v", p)
	}
	if p := payload[v1.VariantNewPayload](t, got[2]); p.Index != 2 || p.Text != "Second." {
		t.Fatalf("variant=%+v", p)
	}
	done := payload[v1.GenerateDonePayload](t, got[3])
	if done.Requested != 2 || done.Produced != 2 || done.RecordID == "" || done.Warning != "" {
		t.Fatalf("done=%+v", done)
	}

	// The batch is shared with the HTTP API.
	resp, err := f.http.Get(f.srv.URL + "/api/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "=== VARIANT 2 ===\nSecond.") {
		t.Fatalf("download body=%q", body)
	}
}

func TestWSGateway_LockedSessionIsRejected(t *testing.T) {
	t.Parallel()

	f := newWSFixture(t)
	f.startSession(t, false)

	c, _, err := f.dial(t, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	writeEnv(t, c, v1.TypeGenerateRequest, "req-locked", listingRequest())
	env := readEnv(t, c)
	if env.Type != v1.TypeGenerateRejected {
		t.Fatalf("got %s", env.Type)
	}
	if p := payload[v1.GenerateRejectedPayload](t, env); p.Code != "locked" || p.RequestID != "req-locked" {
		t.Fatalf("rejected=%+v", p)
	}
}

func TestWSGateway_PartialBatch(t *testing.T) {
	t.Parallel()

	f := newWSFixture(t)
	f.completer.errs = []error{nil, errors.New("upstream down")}
	f.startSession(t, true)

	c, _, err := f.dial(t, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	writeEnv(t, c, v1.TypeGenerateRequest, "req-2", listingRequest())
	got := readTypes(t, c, 4)

	wantTypes := []string{v1.TypeGenerateStarted, v1.TypeVariantNew, v1.TypeVariantError, v1.TypeGenerateDone}
	for i, env := range got {
		if env.Type != wantTypes[i] {
			t.Fatalf("event %d type=%s want=%s", i, env.Type, wantTypes[i])
		}
	}
	if p := payload[v1.VariantErrorPayload](t, got[2]); p.Index != 2 || strings.Contains(p.Message, "upstream") {
		t.Fatalf("variant.error=%+v", p)
	}
	if p := payload[v1.GenerateDonePayload](t, got[3]); p.Produced != 1 || p.Warning == "" {
		t.Fatalf("done=%+v", p)
	}
}

func TestWSGateway_BadEnvelope(t *testing.T) {
	t.Parallel()

	f := newWSFixture(t)
	f.startSession(t, false)

	c, _, err := f.dial(t, "http://localhost")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(`{not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if env := readEnv(t, c); env.Type != v1.TypeError || payload[v1.ErrorPayload](t, env).Code != "bad_json" {
		t.Fatalf("got %+v", env)
	}

	writeEnv(t, c, "message.send", "x", struct{}{})
	if env := readEnv(t, c); payload[v1.ErrorPayload](t, env).Code != "bad_envelope" {
		t.Fatalf("got %+v", env)
	}
}
