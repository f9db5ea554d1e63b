// Package main provides a CI-friendly smoke test for the listinggen server.
//
// It validates:
//   - session cookie issue via GET /api/status
//   - unlock via POST /api/unlock
//   - handshake + subprotocol selection
//   - hello/ack session status
//   - generate.request -> generate.started -> variant.new ... -> generate.done
//   - the batch download matches the streamed variants
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "listinggen/shared/contracts/listing/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeClient struct {
	conn  *websocket.Conn
	inbox chan v1.Envelope
	errCh chan error
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		origin   = flag.String("origin", "http://localhost:8080", "Origin header to send (browser-like WS handshake)")
		key      = flag.String("key", "", "License key or admin override code (required)")
		plan     = flag.String("plan", "pro", "Plan to unlock")
		address  = flag.String("address", "1 Smoke Test Lane", "Listing address")
		variants = flag.Int("variants", 1, "Variants to request")
		timeout  = flag.Duration("timeout", 60*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	if strings.TrimSpace(*key) == "" {
		fatalf("-key is required")
	}

	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar, Timeout: *timeout}

	mustCall(hc, http.MethodGet, base.JoinPath("/api/status").String(), nil, http.StatusOK)
	mustCall(hc, http.MethodPost, base.JoinPath("/api/unlock").String(),
		map[string]string{"access_key": *key, "plan": *plan}, http.StatusOK)

	root := context.Background()
	c := mustConnect(root, base, jar, *origin, *timeout)
	defer closeWS(c.conn)

	mustWriteWithTimeout(root, c.conn, envelope(v1.TypeHello, "hello", struct{}{}), *timeout)
	ack := c.mustReadUntilType(root, v1.TypeHelloAck, *timeout)
	var hp v1.HelloAckPayload
	_ = json.Unmarshal(ack.Payload, &hp)
	if !hp.Licensed {
		fatalf("hello.ack: session is not licensed after unlock")
	}
	if *verbose {
		fmt.Printf("session=%s plan=%s remaining=%d\n", hp.SessionID, hp.Plan, hp.Remaining)
	}

	req := v1.GenerateRequest{
		Address:      *address,
		Bedrooms:     2,
		Bathrooms:    1,
		PropertyType: "Flat/Apartment",
		Features:     "garden, parking",
		Tone:         "Professional",
		Audience:     "General buyers",
		Length:       120,
		Spelling:     "UK",
		Format:       "Paragraphs",
		Variants:     *variants,
	}
	mustWriteWithTimeout(root, c.conn, envelope(v1.TypeGenerateRequest, "gen-1", req), *timeout)

	var texts []string
	var done v1.GenerateDonePayload
	for done.RecordID == "" {
		env := c.mustRead(root, *timeout)
		switch env.Type {
		case v1.TypeGenerateStarted, v1.TypeVariantError:
			if *verbose {
				fmt.Printf("%s %s\n", env.Type, env.Payload)
			}
		case v1.TypeVariantNew:
			var p v1.VariantNewPayload
			_ = json.Unmarshal(env.Payload, &p)
			texts = append(texts, p.Text)
			if *verbose {
				fmt.Printf("variant %d: %d chars\n", p.Index, len(p.Text))
			}
		case v1.TypeGenerateDone:
			if err := json.Unmarshal(env.Payload, &done); err != nil || done.RecordID == "" {
				fatalf("generate.done: bad payload %s", env.Payload)
			}
		case v1.TypeGenerateRejected:
			var p v1.GenerateRejectedPayload
			_ = json.Unmarshal(env.Payload, &p)
			fatalf("generate.rejected: code=%q msg=%q", p.Code, p.Message)
		default:
			fatalf("unexpected envelope type %q", env.Type)
		}
	}
	if done.Produced != len(texts) {
		fatalf("generate.done produced=%d but %d variants streamed", done.Produced, len(texts))
	}

	bundle := mustCall(hc, http.MethodGet, base.JoinPath("/api/download").String(), nil, http.StatusOK)
	for _, t := range texts {
		if !bytes.Contains(bundle, []byte(t)) {
			fatalf("download is missing a streamed variant")
		}
	}

	fmt.Printf("OK: record=%s produced=%d/%d warning=%q\n", done.RecordID, done.Produced, done.Requested, done.Warning)
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustCall(hc *http.Client, method, target string, body any, wantStatus int) []byte {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(mustJSON(body))
	}
	req, err := http.NewRequest(method, target, rdr)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d body=%s", method, target, resp.StatusCode, bytes.TrimSpace(b))
	}
	return b
}

func mustConnect(parent context.Context, base *url.URL, jar http.CookieJar, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	for _, c := range jar.Cookies(base) {
		h.Add("Cookie", c.String())
	}

	wsURL := *base
	wsURL.Scheme = "ws"
	if base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	wsURL.Path = "/ws"

	conn, resp, err := websocket.Dial(ctx, wsURL.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Envelope, 64),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			var env v1.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.errCh <- fmt.Errorf("bad json: %w", err)
				return
			}
			if err := env.Validate(); err != nil {
				c.errCh <- fmt.Errorf("bad envelope: %w", err)
				return
			}
			c.inbox <- env
		}
	}()
}

func (c *smokeClient) mustRead(parent context.Context, stepTimeout time.Duration) v1.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		fatalf("timeout waiting for server: %v", ctx.Err())
	case err := <-c.errCh:
		fatalf("connection error: %v", err)
	case env, ok := <-c.inbox:
		if !ok {
			fatalf("connection closed")
		}
		if env.Type == v1.TypeError {
			var ep v1.ErrorPayload
			_ = json.Unmarshal(env.Payload, &ep)
			fatalf("server error: code=%q msg=%q", ep.Code, ep.Message)
		}
		return env
	}
	return v1.Envelope{}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) v1.Envelope {
	env := c.mustRead(parent, stepTimeout)
	if env.Type != wantType {
		fatalf("unexpected envelope type: got=%q want=%q", env.Type, wantType)
	}
	return env
}

func envelope(typ, id string, payload any) v1.Envelope {
	return v1.Envelope{V: v1.Version, Type: typ, ID: id, TS: time.Now().UTC(), Payload: mustJSON(payload)}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env v1.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, mustJSON(env)); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
