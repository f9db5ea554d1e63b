package listingapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/listing"
	"listinggen/cmd/internal/prompt"
	"listinggen/cmd/internal/session"
	v1 "listinggen/shared/contracts/listing/v1"
)

// Handler serves the JSON API on top of the listing service.
type Handler struct {
	log   *slog.Logger
	cfg   Config
	svc   *listing.Service
	store *session.Store

	unlockLimiter *keyedLimiter
	onSessions    func(live int)
	now           func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithSessionObserver is called with the live session count after a session is created.
func WithSessionObserver(fn func(live int)) HandlerOption {
	return func(h *Handler) { h.onSessions = fn }
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, svc *listing.Service, store *session.Store, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:           log,
		cfg:           cfg,
		svc:           svc,
		store:         store,
		unlockLimiter: newKeyedLimiter(cfg.UnlockIPMax, cfg.UnlockIPWindow),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register wires API routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/options", h.handleOptions)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/unlock", h.handleUnlock)
	mux.HandleFunc("/api/byok-key", h.handleBYOKKey)
	mux.HandleFunc("/api/generate", h.handleGenerate)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/download", h.handleDownload)
}

// ---- handlers ----

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	models := h.svc.Models()
	writeJSON(w, http.StatusOK, optionsResponse{
		OptionSet:          prompt.Options(),
		Defaults:           prompt.Defaults(),
		Models:             models,
		DefaultModel:       models[0],
		MinVariants:        generate.MinVariants,
		MaxVariants:        generate.MaxVariants,
		DefaultVariants:    generate.DefaultVariants,
		MaxTemperature:     generate.MaxTemperature,
		DefaultTemperature: generate.DefaultTemperature,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sess, err := h.resolve(w, r)
	if err != nil {
		h.fail(w, "api.status.fail", err)
		return
	}
	h.writeStatus(w, sess)
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ipKey := "unknown"
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		ipKey = ip.String()
	}
	if ok, retryAfter := h.unlockLimiter.Allow(ipKey, h.now()); !ok {
		h.log.Warn("license.unlock.rate_limited", "ip", ipKey, "retry_after_ms", retryAfter.Milliseconds())
		writeProblem(w, Problem{
			Status:     http.StatusTooManyRequests,
			Code:       "rate_limited",
			Message:    "too many unlock attempts",
			RetryAfter: retryAfter,
		})
		return
	}

	var req unlockRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	plan, err := license.ParsePlan(req.Plan)
	if err != nil {
		writeProblem(w, Classify(err))
		return
	}

	sess, err := h.resolve(w, r)
	if err != nil {
		h.fail(w, "api.unlock.fail", err)
		return
	}
	if _, err := h.svc.Unlock(r.Context(), sess, req.AccessKey, plan); err != nil {
		writeProblem(w, Classify(err))
		return
	}
	h.writeStatus(w, sess)
}

func (h *Handler) handleBYOKKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req byokKeyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	sess, err := h.resolve(w, r)
	if err != nil {
		h.fail(w, "api.byok_key.fail", err)
		return
	}
	if err := h.svc.SetBYOKKey(sess, req.APIKey); err != nil {
		writeProblem(w, Classify(err))
		return
	}
	h.writeStatus(w, sess)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req v1.GenerateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	sess, err := h.resolve(w, r)
	if err != nil {
		h.fail(w, "api.generate.fail", err)
		return
	}

	in := InputFromRequest(req)
	res, err := h.svc.Generate(r.Context(), sess, in, listing.Observer{})
	if err != nil {
		p := Classify(err)
		if p.Status >= http.StatusInternalServerError {
			h.log.Warn("api.generate.fail", "session_id", sess.ID, "code", p.Code, "err", err)
		}
		writeProblem(w, p)
		return
	}

	requested := in.Variants
	if requested == 0 {
		requested = generate.DefaultVariants
	}
	writeJSON(w, http.StatusOK, generateResponse{
		RecordID:  res.Record.ID,
		Model:     res.Record.Model,
		Requested: requested,
		Variants:  res.Record.Variants,
		Warning:   PartialWarning(res.Partial, len(res.Record.Variants)),
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := session.DefaultRecentCount
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	items := []historyItem{}
	if sess, err := h.Lookup(r); err == nil {
		for _, rec := range sess.Recent(limit) {
			items = append(items, toHistoryItem(rec))
		}
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.Lookup(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_batch", "nothing to download yet")
		return
	}
	texts := sess.LastBatch()
	if len(texts) == 0 {
		writeError(w, http.StatusNotFound, "no_batch", "nothing to download yet")
		return
	}

	body := generate.Bundle(texts)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", generate.BundleFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ---- helpers ----

func (h *Handler) writeStatus(w http.ResponseWriter, sess *session.Session) {
	plans := h.svc.Plans()
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, string(p))
	}
	writeJSON(w, http.StatusOK, toStatusResponse(h.svc.Status(sess), names))
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, "err", err)
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}
