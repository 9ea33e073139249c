package gateway

import (
	"context"
	"testing"
	"time"

	"coursegraph-backend/domain/competency"
	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/persistence"
	"coursegraph-backend/infrastructure/store"
	"coursegraph-backend/infrastructure/store/memory"
	"coursegraph-backend/pkg/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine     *memory.Engine
	session    *store.Session
	elements   *persistence.Elements
	courseware *CoursewareGateway
	competency *CompetencyGateway
	scopes     *ScopeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	engine := memory.NewEngine()
	cache := store.NewCache(engine, store.ConsistencyLocalQuorum)
	session := store.NewSession(engine, cache, zaptest.NewLogger(t), observability.NewMetrics("test"))

	elements, err := persistence.NewElements(session, nil)
	require.NoError(t, err)
	parents, err := persistence.NewParentIndex(session)
	require.NoError(t, err)
	order, err := persistence.NewOrderedList(session)
	require.NoError(t, err)
	links, err := persistence.NewLinkIndex(session)
	require.NoError(t, err)
	tags, err := persistence.NewTagIndex(session)
	require.NoError(t, err)
	registry, err := persistence.NewScopeRegistry(session)
	require.NoError(t, err)
	documents, err := persistence.NewDocumentStore(session)
	require.NoError(t, err)
	items, err := persistence.NewDocumentItemStore(session)
	require.NoError(t, err)
	documentIdx, err := persistence.NewDocumentItemIndex(session)
	require.NoError(t, err)
	associations, err := persistence.NewAssociationGraph(session)
	require.NoError(t, err)

	f := &fixture{
		engine:     engine,
		session:    session,
		elements:   elements,
		courseware: NewCoursewareGateway(session, elements, parents, order, links, tags, registry),
		competency: NewCompetencyGateway(session, documents, items, documentIdx, associations, tags, elements.Directory),
		scopes:     NewScopeGateway(registry, elements.Directory),
	}
	clock := func() time.Time { return fixedNow }
	f.courseware.now = clock
	f.competency.now = clock
	return f
}

func (f *fixture) activity(t *testing.T, id string) courseware.Activity {
	t.Helper()
	a, err := f.courseware.CreateActivity(context.Background(), courseware.Activity{ID: id, PluginID: "plugin", PluginVersion: "1.0.0"})
	require.NoError(t, err)
	return a
}

func (f *fixture) pathway(t *testing.T, id string) courseware.Pathway {
	t.Helper()
	p, err := f.courseware.CreatePathway(context.Background(), courseware.Pathway{ID: id, Type: courseware.PathwayTypeLinear})
	require.NoError(t, err)
	return p
}

func (f *fixture) interactive(t *testing.T, id string) courseware.Interactive {
	t.Helper()
	i, err := f.courseware.CreateInteractive(context.Background(), courseware.Interactive{ID: id, PluginID: "plugin", PluginVersion: "1.0.0"})
	require.NoError(t, err)
	return i
}

func (f *fixture) component(t *testing.T, id string) courseware.Component {
	t.Helper()
	c, err := f.courseware.CreateComponent(context.Background(), courseware.Component{ID: id, PluginID: "plugin", PluginVersion: "1.0.0"})
	require.NoError(t, err)
	return c
}

func (f *fixture) document(t *testing.T, id string) competency.Document {
	t.Helper()
	d, err := f.competency.CreateDocument(context.Background(), competency.Document{ID: id, Title: "Framework " + id})
	require.NoError(t, err)
	return d
}

func (f *fixture) item(t *testing.T, documentID, id string) competency.DocumentItem {
	t.Helper()
	i, err := f.competency.CreateDocumentItem(context.Background(), competency.DocumentItem{ID: id, DocumentID: documentID, FullStatement: "statement " + id})
	require.NoError(t, err)
	return i
}

func refIDs(refs []courseware.ElementRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}
