package listing

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/audit"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/ids"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/metrics"
	"listinggen/cmd/internal/prompt"
	"listinggen/cmd/internal/session"
	"listinggen/cmd/security/token"
)

// CompleterFactory builds a Completer for a visitor-supplied API key.
type CompleterFactory func(apiKey string) (generate.Completer, error)

// Service implements unlock and generate on top of a session.
type Service struct {
	cfg       Config
	models    []string
	verifier  access.Verifier
	completer generate.Completer
	byok      CompleterFactory
	override  access.Matcher
	audit     audit.Sink
	metrics   *metrics.Metrics
	hasher    token.Hasher
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithOverride enables the admin override code.
func WithOverride(m access.Matcher) Option { return func(s *Service) { s.override = m } }

// WithAudit sets the audit sink (default: discard).
func WithAudit(a audit.Sink) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithHasher sets the hasher used for license-key fingerprints.
func WithHasher(h token.Hasher) Option { return func(s *Service) { s.hasher = h } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBYOKFactory overrides how BYOK completers are built.
func WithBYOKFactory(f CompleterFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.byok = f
		}
	}
}

// NewService builds a Service. completer serves pro and admin sessions.
func NewService(cfg Config, verifier access.Verifier, completer generate.Completer, opts ...Option) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = generate.DefaultMaxTokens
	}

	s := &Service{
		cfg:       cfg,
		models:    cfg.AllowedModels(),
		verifier:  verifier,
		completer: completer,
		byok: func(key string) (generate.Completer, error) {
			return generate.NewOpenAIClient(key, "")
		},
		audit: audit.NopSink{},
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Models returns the allowed models, default first.
func (s *Service) Models() []string { return slices.Clone(s.models) }

// Policy returns the admission policy.
func (s *Service) Policy() access.Policy { return s.cfg.Policy }

// Plans returns the purchasable plans that have a product configured.
func (s *Service) Plans() []license.Plan { return s.cfg.Products.Plans() }

// Status is what a client needs to render the gate and quota.
type Status struct {
	Licensed   bool
	Plan       license.Plan
	Bypass     bool
	Remaining  int
	DailyLimit int
	Cooldown   time.Duration
	HasBYOKKey bool
	HasBatch   bool
	Generating bool
}

// Status reports the session's gate and quota.
func (s *Service) Status(sess *session.Session) Status {
	v := sess.View()
	return Status{
		Licensed:   v.License.Licensed,
		Plan:       v.License.Plan,
		Bypass:     v.Usage.Bypass,
		Remaining:  s.cfg.Policy.Remaining(v.Usage, s.now()),
		DailyLimit: s.cfg.Policy.DailyLimit,
		Cooldown:   s.cfg.Policy.Cooldown,
		HasBYOKKey: v.HasBYOKKey,
		HasBatch:   v.HasBatch,
		Generating: v.Generating,
	}
}

// Unlock licenses the session. A licensed session is returned unchanged
// without contacting the licensing API.
func (s *Service) Unlock(ctx context.Context, sess *session.Session, key string, plan license.Plan) (access.License, error) {
	if lic := sess.License(); lic.Licensed {
		return lic, nil
	}

	now := s.now()
	chk, err := access.CheckLicense(ctx, key, plan, s.override, s.verifier, s.cfg.Products, now)
	fp := s.hasher.Fingerprint(key)

	switch {
	case errors.Is(err, access.ErrLicenseUnconfigured):
		s.metrics.LicenseCheck("unconfigured")
		s.log.Warn("license.unlock.unconfigured", "session_id", sess.ID, "plan", string(plan))
		return access.License{}, err

	case err != nil:
		result := chk.Result.Kind.String()
		if strings.TrimSpace(key) == "" {
			result = "empty_key"
		}
		s.metrics.LicenseCheck(result)
		s.log.Info("license.unlock.fail",
			"session_id", sess.ID,
			"plan", string(plan),
			"result", result,
			"status", chk.Result.Status,
			"key_fp", fp,
		)
		s.record(ctx, audit.Event{
			Name:           audit.UnlockRejected,
			SessionID:      sess.ID,
			Plan:           string(plan),
			Outcome:        result,
			KeyFingerprint: fp,
			Detail:         map[string]any{"status": chk.Result.Status},
		})
		return access.License{}, err
	}

	sess.Grant(chk.License)

	name, result := audit.UnlockVerified, "verified"
	if chk.Override {
		name, result = audit.UnlockOverride, "override"
	}
	s.metrics.LicenseCheck(result)
	s.log.Info("license.unlock.ok", "session_id", sess.ID, "plan", string(chk.License.Plan), "result", result)
	s.record(ctx, audit.Event{
		Name:           name,
		SessionID:      sess.ID,
		Plan:           string(chk.License.Plan),
		Outcome:        result,
		KeyFingerprint: fp,
	})

	return sess.License(), nil
}

// SetBYOKKey stores the visitor's own API key on a BYOK session.
func (s *Service) SetBYOKKey(sess *session.Session, apiKey string) error {
	lic := sess.License()
	if !lic.Licensed {
		return ErrLocked
	}
	if lic.Plan != license.PlanBYOK {
		return ErrNotBYOK
	}
	if strings.TrimSpace(apiKey) == "" {
		return ErrBYOKKeyMissing
	}
	sess.SetBYOKKey(apiKey)
	return nil
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if e.At.IsZero() {
		e.At = s.now()
	}
	if e.ID == "" {
		id, err := ids.NewULID(e.At)
		if err != nil {
			s.log.Warn("audit.record.fail", "event", e.Name, "err", err)
			return
		}
		e.ID = id
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.log.Warn("audit.record.fail", "event", e.Name, "err", err)
	}
}

// validate checks the listing request and the generation settings together.
func (s *Service) validate(in GenerateInput) error {
	var fields []prompt.FieldError

	var ve *prompt.ValidationError
	if err := in.Request.Validate(); errors.As(err, &ve) {
		fields = append(fields, ve.Fields...)
	}
	if in.Model != "" && !slices.Contains(s.models, in.Model) {
		fields = append(fields, prompt.FieldError{Field: "model", Problem: "unknown value"})
	}
	if t := in.Temperature; t != nil && (*t < 0 || *t > generate.MaxTemperature) {
		fields = append(fields, prompt.FieldError{Field: "temperature", Problem: "must be between 0.0 and 1.2"})
	}
	if in.Variants < 0 || in.Variants > generate.MaxVariants {
		fields = append(fields, prompt.FieldError{Field: "variants", Problem: "must be between 1 and 3"})
	}

	if len(fields) == 0 {
		return nil
	}
	return &prompt.ValidationError{Fields: fields}
}
