package app

import (
	"context"
	"fmt"

	"listinggen/cmd/internal/audit"
)

// OpenAudit opens the sink selected by cfg.DatabaseURL. The returned close
// function releases the sink and any pool it owns.
func OpenAudit(ctx context.Context, cfg Config, log Logger) (audit.Sink, func(), error) {
	backend, dsn, err := audit.ParseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: LISTINGGEN_DATABASE_URL: %v", ErrConfig, err)
	}

	switch backend {
	case audit.BackendSQLite:
		s, err := audit.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite audit: %w", err)
		}
		log.Info("audit.enabled", "backend", "sqlite", "path", dsn)
		return s, func() { _ = s.Close() }, nil

	case audit.BackendPostgres:
		pool, err := NewDBPool(ctx, dsn, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres audit: %w", err)
		}
		s, err := audit.NewPostgresSink(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("audit schema: %w", err)
		}
		log.Info("audit.enabled", "backend", "postgres")
		return s, pool.Close, nil

	default:
		log.Info("audit.disabled")
		return audit.NopSink{}, func() {}, nil
	}
}
