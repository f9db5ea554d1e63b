package listing

import (
	"context"
	"errors"
	"time"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/audit"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/ids"
	"listinggen/cmd/internal/license"
	"listinggen/cmd/internal/prompt"
	"listinggen/cmd/internal/session"
)

// GenerateInput is one generation request. Zero Model, nil Temperature and
// zero Variants select the defaults.
type GenerateInput struct {
	Request     prompt.ListingRequest
	Model       string
	Temperature *float32
	Variants    int
}

// Observer receives progress while a batch runs. Both hooks are optional.
type Observer struct {
	Started func(variants int, model string)
	Variant func(generate.Variant)
}

// Result is a stored batch. Partial is set when a call failed after at
// least one variant was produced.
type Result struct {
	Record  session.Record
	Partial *generate.VariantError
}

// Generate runs admission, compiles the prompt and requests the variants.
//
// Errors:
//   - ErrLocked, ErrBYOKKeyMissing
//   - *prompt.ValidationError
//   - session.ErrGenerationInProgress
//   - *access.RejectedError (quota or cooldown)
//   - *generate.VariantError when the first call failed
//   - ErrNoOutput when every completion was empty
func (s *Service) Generate(ctx context.Context, sess *session.Session, in GenerateInput, obs Observer) (Result, error) {
	lic := sess.License()
	if !lic.Licensed {
		return Result{}, ErrLocked
	}
	if err := s.validate(in); err != nil {
		return Result{}, err
	}

	completer, err := s.completerFor(sess, lic)
	if err != nil {
		return Result{}, err
	}

	model := in.Model
	if model == "" {
		model = s.models[0]
	}
	temp := float32(generate.DefaultTemperature)
	if in.Temperature != nil {
		temp = *in.Temperature
	}
	n := in.Variants
	if n == 0 {
		n = generate.DefaultVariants
	}
	n = generate.ClampVariants(n)

	d, err := sess.Begin(s.cfg.Policy, s.now())
	if err != nil {
		return Result{}, err
	}
	s.metrics.Admission(d.Outcome.String())
	if !d.Admitted() {
		s.record(ctx, audit.Event{
			Name:      audit.GenerationRejected,
			SessionID: sess.ID,
			Plan:      string(lic.Plan),
			Outcome:   d.Outcome.String(),
			Detail:    map[string]any{"minutes_left": d.MinutesLeft, "seconds_left": d.SecondsLeft},
		})
		return Result{}, &access.RejectedError{Decision: d}
	}

	var rec *session.Record
	defer func() { sess.Finish(rec) }()

	if obs.Started != nil {
		obs.Started(n, model)
	}

	started := time.Now()
	variants, verr := generate.Variants(ctx, completer, generate.Completion{
		Model:       model,
		System:      generate.SystemRole,
		User:        prompt.Compile(in.Request),
		Temperature: temp,
		MaxTokens:   s.cfg.MaxTokens,
	}, n, func(v generate.Variant) {
		s.metrics.VariantDuration(v.Elapsed)
		if obs.Variant != nil {
			obs.Variant(v)
		}
	})

	var ve *generate.VariantError
	errors.As(verr, &ve)
	if ve != nil {
		s.log.Warn("generate.variant.fail", "session_id", sess.ID, "variant", ve.Index, "model", model, "err", ve.Err)
	}

	if len(variants) == 0 {
		result, name := "no_output", audit.GenerationNoOutput
		if ve != nil {
			result = "failed"
		}
		s.metrics.Generation(result)
		s.record(ctx, audit.Event{Name: name, SessionID: sess.ID, Plan: string(lic.Plan), Outcome: result})
		if ve != nil {
			return Result{}, ve
		}
		return Result{}, ErrNoOutput
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Result{}, err
	}
	r := session.Record{
		ID:          id,
		Request:     in.Request,
		Variants:    generate.Texts(variants),
		Model:       model,
		Temperature: temp,
		CreatedAt:   now,
	}
	rec = &r

	result, name := "succeeded", audit.GenerationOK
	if ve != nil {
		result, name = "partial", audit.GenerationPartial
	}
	s.metrics.Generation(result)
	s.log.Info("generate.ok",
		"session_id", sess.ID,
		"record_id", id,
		"model", model,
		"requested", n,
		"produced", len(variants),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	detail := map[string]any{"requested": n, "produced": len(variants), "model": model}
	if ve != nil {
		detail["failed_index"] = ve.Index
	}
	s.record(ctx, audit.Event{Name: name, SessionID: sess.ID, Plan: string(lic.Plan), Outcome: result, Detail: detail})

	return Result{Record: r, Partial: ve}, nil
}

func (s *Service) completerFor(sess *session.Session, lic access.License) (generate.Completer, error) {
	if lic.Plan != license.PlanBYOK {
		return s.completer, nil
	}
	key := sess.BYOKKey()
	if key == "" {
		return nil, ErrBYOKKeyMissing
	}
	return s.byok(key)
}
