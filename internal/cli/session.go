package cli

import (
	"context"
	_ "embed"

	"github.com/lowercasename/eggcms/internal/log"
	"github.com/lowercasename/eggcms/internal/sqlite"
	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

//go:embed schemas.yaml
var builtinSchemasYAML []byte

// builtinSchemas parses the compiled-in schema set.
func builtinSchemas() ([]*schema.Definition, error) {
	return schema.Parse(builtinSchemasYAML)
}

// loadSchemas reads the configured schema source, falling back to the
// built-in set unless strict_schemas is on.
func loadSchemas(cfg types.Config) ([]*schema.Definition, error) {
	fallback, err := builtinSchemas()
	if err != nil {
		return nil, sysError("built-in schemas: %w", err)
	}

	policy := schema.FallbackOnError
	if cfg.StrictSchemas {
		policy = schema.Strict
	}
	res := schema.Load(cfg.SchemasPath, fallback, policy)
	if res.Err != nil {
		if res.Schemas == nil {
			return nil, userError("load schemas: %w", res.Err)
		}
		log.Error().Err(res.Err).Str("path", res.Path).Msg("Failed to load schemas, falling back to built-in schemas")
	}
	if err := schema.ValidateAll(res.Schemas); err != nil {
		return nil, userError("invalid schemas: %w", err)
	}
	log.Debug().Str("source", string(res.Source)).Int("count", len(res.Schemas)).Msg("Schemas loaded")
	return res.Schemas, nil
}

// session is an attached backend with its configuration and schemas.
type session struct {
	cfg     types.Config
	schemas []*schema.Definition
	backend *sqlite.Backend
}

// openSession loads configuration and schemas, attaches the backend, and
// optionally reconciles every schema. The caller must call close.
func openSession(ctx context.Context, reconcile bool) (*session, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	defs, err := loadSchemas(cfg)
	if err != nil {
		return nil, err
	}

	backend := sqlite.NewBackend(log.Logger)
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError("attach backend: %w", err)
	}
	s := &session{cfg: cfg, schemas: defs, backend: backend}

	if reconcile {
		if _, err := s.reconcile(ctx); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) reconcile(ctx context.Context) ([]*sqlite.Plan, error) {
	m, err := s.backend.Migrator()
	if err != nil {
		return nil, sysError("%w", err)
	}
	plans, err := m.ReconcileAll(ctx, s.schemas)
	if err != nil {
		return plans, sysError("migrate: %w", err)
	}
	return plans, nil
}

// lookup resolves a queryable schema by name.
func (s *session) lookup(name string) (*schema.Definition, error) {
	def, ok := schema.Find(s.schemas, name)
	if !ok {
		return nil, userError("%w: %q", types.ErrSchemaNotFound, name)
	}
	return def, nil
}

func (s *session) close() {
	if err := s.backend.Detach(); err != nil {
		log.Warn().Err(err).Msg("Failed to detach backend")
	}
}
