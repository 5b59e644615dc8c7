package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/lumen/pkg/adapter"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// Provider hands out the current schema snapshot and replaces it when the
// database or its documentation changes.
type Provider interface {
	// Current returns the snapshot and its hash; nil before the first refresh.
	Current() (*Context, string)
	// IsStale reports whether hash no longer describes the database.
	IsStale(ctx context.Context, hash string) bool
	// Refresh rebuilds the snapshot and publishes it.
	Refresh(ctx context.Context) core.Result[*Context]
}

// snapshot is what Service publishes atomically.
type snapshot struct {
	ctx         *Context
	structure   string
	docsVersion string
}

// Service is the Provider backed by a live database connection and an
// optional docs file.
type Service struct {
	source    adapter.Introspector
	inspector *Introspector
	docsPath  string
	logger    *slog.Logger

	current atomic.Pointer[snapshot]

	// refreshMu serializes refreshes; readers never take it.
	refreshMu sync.Mutex
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Source   adapter.Introspector
	DocsPath string
	Logger   *slog.Logger

	// Options are passed to the underlying Introspector.
	Options []IntrospectorOption
}

// NewService creates a provider. Call Refresh before Current returns data.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		source:    cfg.Source,
		inspector: NewIntrospector(cfg.Source, logger, cfg.Options...),
		docsPath:  cfg.DocsPath,
		logger:    logger,
	}
}

// DocsPath returns the watched documentation file, if any.
func (s *Service) DocsPath() string {
	return s.docsPath
}

// Current implements Provider.
func (s *Service) Current() (*Context, string) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ""
	}
	return snap.ctx, snap.ctx.Hash
}

// IsStale implements Provider. It compares the table structure from a
// fresh catalog read and the docs file content against the published
// snapshot, without re-profiling columns. Row counts and samples drifting
// do not make a snapshot stale. If the catalog cannot be read the snapshot
// is kept.
func (s *Service) IsStale(ctx context.Context, hash string) bool {
	snap := s.current.Load()
	if snap == nil || hash != snap.ctx.Hash {
		return true
	}

	if docsVersion(s.docsPath) != snap.docsVersion {
		return true
	}

	metas, err := s.source.Tables(ctx)
	if err != nil {
		s.logger.Warn("could not check schema staleness", slog.String("error", err.Error()))
		return false
	}
	return structureOf(metas) != snap.structure
}

// Refresh implements Provider. On failure the previous snapshot stays
// published and the result carries an error diagnostic.
func (s *Service) Refresh(ctx context.Context) core.Result[*Context] {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	metas, err := s.source.Tables(ctx)
	if err != nil {
		return core.Fail[*Context](core.Errorf(core.CodeSchemaStale, "schema refresh failed: %v", err))
	}

	raw, err := s.inspector.build(ctx, metas)
	if err != nil {
		return core.Fail[*Context](core.Errorf(core.CodeSchemaStale, "schema refresh failed: %v", err))
	}

	var diags []core.Diagnostic
	docs, err := LoadDocs(s.docsPath)
	if err != nil {
		s.logger.Warn("ignoring schema docs", slog.String("path", s.docsPath), slog.String("error", err.Error()))
		diags = append(diags, core.Warnf(core.CodeConfigError, "ignoring schema docs: %v", err).
			WithHint("Fix the YAML in "+s.docsPath))
	}

	built := docs.Apply(Enrich(raw))
	built.Hash = Hash(built)

	s.current.Store(&snapshot{
		ctx:         built,
		structure:   structureOf(metas),
		docsVersion: docsVersion(s.docsPath),
	})
	s.logger.Info("schema refreshed",
		slog.String("database", built.Database),
		slog.Int("tables", len(built.Tables)),
		slog.String("hash", built.Hash))

	return core.Ok(built, diags...)
}

// structureOf fingerprints names, types, nullability and keys.
func structureOf(metas []adapter.TableMeta) string {
	type col struct {
		Name     string
		Type     string
		Nullable bool
	}
	type table struct {
		Schema, Name string
		Columns      []col
		PrimaryKey   []string
		ForeignKeys  []adapter.ForeignKey
	}
	tables := make([]table, len(metas))
	for i, m := range metas {
		t := table{Schema: m.Schema, Name: m.Name, PrimaryKey: m.PrimaryKey, ForeignKeys: m.ForeignKeys}
		for _, c := range m.Columns {
			t.Columns = append(t.Columns, col{c.Name, c.Type, c.Nullable})
		}
		tables[i] = t
	}
	data, _ := json.Marshal(tables)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// docsVersion hashes the docs file; "" when absent.
func docsVersion(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var _ Provider = (*Service)(nil)
