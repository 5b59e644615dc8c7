// Package features provides shared test helpers for UI feature tests.
package features

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/llm/llmtest"
	"github.com/leapstack-labs/lumen/internal/schema"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/internal/suggest"
	"github.com/leapstack-labs/lumen/internal/testutil"
	"github.com/leapstack-labs/lumen/internal/ui/notifier"
	"github.com/leapstack-labs/lumen/internal/ui/router"
	"github.com/leapstack-labs/lumen/pkg/adapter"
	"github.com/leapstack-labs/lumen/pkg/adapters/sqlite"
)

// SeedStatements create the shop database used by feature tests.
var SeedStatements = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER REFERENCES customers(id),
		amount REAL,
		ordered_at TEXT
	)`,
	`INSERT INTO customers VALUES (1, 'Acme', 'EMEA'), (2, 'Globex', 'AMER'), (3, 'Initech', 'AMER')`,
	`INSERT INTO orders VALUES (10, 1, 120.5, '2024-01-03'), (11, 2, 80, '2024-02-11'), (12, 2, 42.25, '2024-03-09')`,
}

// RegionSQL is a query the fixture database answers.
const RegionSQL = "SELECT region, COUNT(*) AS customers FROM customers GROUP BY region ORDER BY region"

// TestFixture holds the wired services behind a test router.
type TestFixture struct {
	Router       chi.Router
	Store        *state.SQLiteStore
	Schema       *schema.Service
	LLM          *llmtest.Scripted
	Agent        *agent.Orchestrator
	Suggest      *suggest.Service
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
}

// SetupTestFixture seeds a SQLite database and wires the full route set
// against it. steps script the LLM.
func SetupTestFixture(t *testing.T, steps ...llmtest.Step) *TestFixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "shop.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	for _, stmt := range SeedStatements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	adp := sqlite.New(logger)
	require.NoError(t, adp.Connect(context.Background(), adapter.Config{Type: "sqlite", Path: dbPath}))
	t.Cleanup(func() { _ = adp.Close() })

	store, err := state.OpenStore(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := schema.NewService(schema.ServiceConfig{Source: adp, Logger: logger})
	provider := llmtest.New(steps...)

	orch, err := agent.New(agent.Config{
		Schema:   svc,
		Executor: adp,
		LLM:      provider,
		Store:    store,
		Dialect:  adp.Name(),
		Logger:   logger,
	})
	require.NoError(t, err)

	f := &TestFixture{
		Router:       chi.NewRouter(),
		Store:        store,
		Schema:       svc,
		LLM:          provider,
		Agent:        orch,
		Suggest:      suggest.New(provider, store, logger),
		Notifier:     notifier.New(),
		SessionStore: NewTestSessionStore(),
	}
	router.SetupRoutes(f.Router, router.Deps{
		Pipeline:     orch,
		Store:        store,
		Schema:       svc,
		Suggest:      f.Suggest,
		Model:        provider.Model(),
		SessionStore: f.SessionStore,
		Notifier:     f.Notifier,
		Logger:       logger,
	})
	return f
}

// Do serves one request against the fixture router.
func (f *TestFixture) Do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, req)
	return rec
}

// RequestWithTimeout wraps a request with a context timeout.
func RequestWithTimeout(r *http.Request, timeout time.Duration) *http.Request {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	_ = cancel // the timeout releases the context
	return r.WithContext(ctx)
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
