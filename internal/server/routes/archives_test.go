package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/query"
	memorystore "github.com/endomorphosis/kgraph/pkg/store/memory"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func newHandlerContext(t *testing.T, app *middleware.App, method, target, body string) (*middleware.AppContext, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = &requestValidator{validate: validator.New()}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return &middleware.AppContext{Context: e.NewContext(req, rec), App: app}, rec
}

func TestMaterializeGraphHandler_ImportedGraphIsQueryable(t *testing.T) {
	ctx := context.Background()
	blocks := memorystore.NewBlockStore()

	// Leave the store the way a finished import job does: every block
	// present and verified, nothing registered yet.
	source, err := graph.NewGraph(ctx, graph.NewGraphParams{Name: "imported", Store: blocks})
	if err != nil {
		t.Fatalf("failed to create graph: %v", err)
	}
	for _, id := range []string{"alice", "bob"} {
		if _, err := source.AddEntity(ctx, graph.AddEntityParams{ID: id, Type: "person", Name: id, Confidence: 1}); err != nil {
			t.Fatalf("failed to add entity: %v", err)
		}
	}
	if _, err := source.AddRelationship(ctx, graph.AddRelationshipParams{ID: "r1", Type: "knows", SourceID: "alice", TargetID: "bob", Confidence: 1}); err != nil {
		t.Fatalf("failed to add relationship: %v", err)
	}
	root := source.RootAddress()

	registry, err := graph.NewRegistry(graph.NewRegistryParams{Store: blocks})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	app := &middleware.App{Registry: registry}

	cc, rec := newHandlerContext(t, app, http.MethodPost, "/api/graphs/materialize", `{"root":"`+root+`"}`)
	if err := MaterializeGraphHandler(cc); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	g, err := registry.Get("imported")
	if err != nil {
		t.Fatalf("materialized graph not registered: %v", err)
	}
	if g.RootAddress() != root {
		t.Fatalf("root changed during materialization: %s vs %s", g.RootAddress(), root)
	}

	client, err := query.NewClient(query.NewClientParams{Graph: g})
	if err != nil {
		t.Fatalf("failed to create query client: %v", err)
	}
	result, err := client.TraverseFromEntities(ctx, query.TraverseParams{Seeds: []string{"alice"}, MaxDepth: 1})
	if err != nil {
		t.Fatalf("traversal over materialized graph failed: %v", err)
	}
	if len(result.Entities) != 1 || result.Entities[0].ID != "bob" {
		t.Fatalf("expected to reach bob, got %+v", result.Entities)
	}
}

func TestMaterializeGraphHandler_UnknownRoot(t *testing.T) {
	registry, err := graph.NewRegistry(graph.NewRegistryParams{Store: memorystore.NewBlockStore()})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	app := &middleware.App{Registry: registry}

	missing := strings.Repeat("0", 64)
	cc, rec := newHandlerContext(t, app, http.MethodPost, "/api/graphs/materialize", `{"root":"`+missing+`"}`)
	if err := MaterializeGraphHandler(cc); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(registry.Names()) != 0 {
		t.Fatalf("failed materialization registered a graph: %v", registry.Names())
	}
}
