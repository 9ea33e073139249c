package persistence

import (
	"testing"

	"coursegraph-backend/infrastructure/store"
	"coursegraph-backend/infrastructure/store/memory"
	"coursegraph-backend/pkg/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSession(t *testing.T) (*store.Session, *memory.Engine) {
	t.Helper()
	engine := memory.NewEngine()
	cache := store.NewCache(engine, store.ConsistencyLocalQuorum)
	return store.NewSession(engine, cache, zaptest.NewLogger(t), observability.NewMetrics("test")), engine
}

func mustElements(t *testing.T, session *store.Session) *Elements {
	t.Helper()
	e, err := NewElements(session, nil)
	require.NoError(t, err)
	return e
}
