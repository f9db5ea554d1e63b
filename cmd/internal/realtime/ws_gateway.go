package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/ids"
	listingapi "listinggen/cmd/internal/listing/api"
	"listinggen/cmd/internal/listing"
	"listinggen/cmd/internal/session"
	v1 "listinggen/shared/contracts/listing/v1"

	"github.com/coder/websocket"
)

// SessionResolver finds the visitor session for an upgrade request.
type SessionResolver interface {
	Lookup(r *http.Request) (*session.Session, error)
}

// WSGateway streams generation batches over a websocket.
//
// It enforces origin policy, subprotocol selection, rate limits and
// heartbeats. Each generate.request runs in its own goroutine so pings keep
// flowing while completions are pending.
type WSGateway struct {
	log      *slog.Logger
	cfg      Config
	svc      *listing.Service
	sessions SessionResolver

	// Derived for websocket.Accept, which only authorizes same-host origins
	// unless OriginPatterns list the others.
	originPatterns []string
}

// NewWSGateway constructs a gateway.
func NewWSGateway(log *slog.Logger, cfg Config, svc *listing.Service, sessions SessionResolver) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	return &WSGateway{
		log:            log,
		cfg:            cfg,
		svc:            svc,
		sessions:       sessions,
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request and runs the connection loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	sess, err := g.sessions.Lookup(r)
	if err != nil {
		g.log.Info("ws.reject.session", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	client := NewClient(sess.ID, g.cfg.SendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		closeOnce sync.Once
		jobs      sync.WaitGroup
	)

	// shutdown cancels running generations through ctx.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sess.ID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sess.ID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				g.sendError(ctx, client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.log.Info("ws.read.fail", "session_id", sess.ID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if !rl.Allow(time.Now().UTC()) {
			g.sendError(ctx, client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		if err := env.Validate(); err != nil {
			g.sendError(ctx, client, "bad_envelope", err.Error())
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHello:
			g.onHello(ctx, client, sess)

		case v1.TypeGenerateRequest:
			var req v1.GenerateRequest
			if err := json.Unmarshal(env.Payload, &req); err != nil {
				g.sendError(ctx, client, "bad_payload", "invalid generate.request payload")
				continue readLoop
			}
			requestID := strings.TrimSpace(env.ID)
			if requestID == "" {
				requestID = ids.MustULID(time.Now().UTC())
			}

			jobs.Add(1)
			go func() {
				defer jobs.Done()
				g.onGenerate(ctx, client, sess, requestID, req)
			}()

		default:
			g.sendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type))
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	jobs.Wait()
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
}

// ---- handlers ----

func (g *WSGateway) onHello(ctx context.Context, client *Client, sess *session.Session) {
	st := g.svc.Status(sess)
	g.send(ctx, client, v1.TypeHelloAck, "", v1.HelloAckPayload{
		SessionID: sess.ID,
		Licensed:  st.Licensed,
		Plan:      string(st.Plan),
		Remaining: st.Remaining,
	})
}

// onGenerate streams one batch. Every request ends with exactly one
// generate.done or generate.rejected.
func (g *WSGateway) onGenerate(ctx context.Context, client *Client, sess *session.Session, requestID string, req v1.GenerateRequest) {
	requested := 0
	obs := listing.Observer{
		Started: func(n int, model string) {
			requested = n
			g.send(ctx, client, v1.TypeGenerateStarted, requestID, v1.GenerateStartedPayload{
				RequestID: requestID,
				Variants:  n,
				Model:     model,
			})
		},
		Variant: func(v generate.Variant) {
			g.send(ctx, client, v1.TypeVariantNew, requestID, v1.VariantNewPayload{
				RequestID: requestID,
				Index:     v.Index,
				Text:      v.Text,
			})
		},
	}

	res, err := g.svc.Generate(ctx, sess, listingapi.InputFromRequest(req), obs)
	if err != nil {
		var ve *generate.VariantError
		if errors.As(err, &ve) {
			g.sendVariantError(ctx, client, requestID, ve)
		}

		p := listingapi.Classify(err)
		if p.Status >= http.StatusInternalServerError {
			g.log.Warn("ws.generate.fail", "session_id", sess.ID, "request_id", requestID, "code", p.Code, "err", err)
		}
		fields := make([]v1.FieldError, 0, len(p.Fields))
		for _, f := range p.Fields {
			fields = append(fields, v1.FieldError{Field: f.Field, Problem: f.Problem})
		}
		g.send(ctx, client, v1.TypeGenerateRejected, requestID, v1.GenerateRejectedPayload{
			RequestID:   requestID,
			Code:        p.Code,
			Message:     p.Message,
			MinutesLeft: p.MinutesLeft,
			SecondsLeft: p.SecondsLeft,
			Fields:      fields,
		})
		return
	}

	if res.Partial != nil {
		g.sendVariantError(ctx, client, requestID, res.Partial)
	}
	g.send(ctx, client, v1.TypeGenerateDone, requestID, v1.GenerateDonePayload{
		RequestID: requestID,
		RecordID:  res.Record.ID,
		Requested: requested,
		Produced:  len(res.Record.Variants),
		Warning:   listingapi.PartialWarning(res.Partial, len(res.Record.Variants)),
	})
}

// ---- send helpers ----

func (g *WSGateway) sendVariantError(ctx context.Context, client *Client, requestID string, ve *generate.VariantError) {
	g.send(ctx, client, v1.TypeVariantError, requestID, v1.VariantErrorPayload{
		RequestID: requestID,
		Index:     ve.Index,
		Message:   fmt.Sprintf("Variant %d failed.", ve.Index),
	})
}

func (g *WSGateway) sendError(ctx context.Context, client *Client, code, msg string) {
	g.send(ctx, client, v1.TypeError, "", v1.ErrorPayload{Code: code, Message: msg})
}

// send marshals payload and enqueues it without blocking. Envelope IDs are
// fresh ULIDs; replyTo is informational only and lives in the payload.
func (g *WSGateway) send(ctx context.Context, client *Client, typ, replyTo string, payload any) bool {
	b, err := json.Marshal(payload)
	if err != nil {
		g.log.Error("ws.encode.fail", "type", typ, "err", err)
		return false
	}
	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		g.log.Error("ws.envelope_id.fail", "type", typ, "err", err)
		return false
	}
	ok := g.enqueue(ctx, client, v1.Envelope{V: v1.Version, Type: typ, ID: id, TS: now, Payload: b})
	if !ok {
		g.log.Info("ws.enqueue.drop", "session_id", client.SessionID, "type", typ, "request_id", replyTo)
	}
	return ok
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- envelope IO ----

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, errBadJSON
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

var errBadJSON = errors.New("invalid json frame")

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	switch {
	case errors.Is(err, errBadJSON):
		return readErrBadJSON
	case websocket.CloseStatus(err) != -1:
		return readErrClose
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return readErrCtxDone
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		return readErrConnClosed
	default:
		return readErrUnknown
	}
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)
	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*":
			return nil
		case origin == a:
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
