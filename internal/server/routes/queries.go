package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/logger"
	"github.com/endomorphosis/kgraph/pkg/query"
)

func queryClientFor(c echo.Context) (*query.Client, *graph.Graph, error) {
	app := c.(*middleware.AppContext).App
	g, err := app.Registry.Get(c.Param("name"))
	if err != nil {
		return nil, nil, err
	}
	client, err := app.Query(g)
	if err != nil {
		return nil, nil, err
	}
	return client, g, nil
}

// TraverseHandler runs a multi-source breadth-first traversal.
func TraverseHandler(c echo.Context) error {
	type traverseBody struct {
		Seeds             []string `json:"seeds" validate:"required"`
		RelationshipTypes []string `json:"relationship_types"`
		MaxDepth          int      `json:"max_depth"`
	}

	type traverseResponse struct {
		Message string                 `json:"message,omitempty"`
		Result  *query.TraversalResult `json:"result,omitempty"`
	}

	data := new(traverseBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, traverseResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, traverseResponse{
			Message: "Invalid request body",
		})
	}

	client, g, err := queryClientFor(c)
	if err != nil {
		return c.JSON(statusForError(err), traverseResponse{
			Message: err.Error(),
		})
	}

	result, err := client.TraverseFromEntities(c.Request().Context(), query.TraverseParams{
		Seeds:             data.Seeds,
		RelationshipTypes: data.RelationshipTypes,
		MaxDepth:          data.MaxDepth,
	})
	if err != nil {
		logger.Error("Traversal failed", "graph", g.Name(), "err", err)
		return c.JSON(statusForError(err), traverseResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, traverseResponse{Result: result})
}

// QueryHandler runs a directed path-pattern match.
func QueryHandler(c echo.Context) error {
	type queryBody struct {
		StartEntityID    string   `json:"start_entity_id" validate:"required"`
		RelationshipPath []string `json:"relationship_path"`
		MaxResults       int      `json:"max_results"`
		MinConfidence    float64  `json:"min_confidence"`
	}

	type queryResponse struct {
		Message string            `json:"message,omitempty"`
		Result  *query.PathResult `json:"result,omitempty"`
	}

	data := new(queryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	client, g, err := queryClientFor(c)
	if err != nil {
		return c.JSON(statusForError(err), queryResponse{
			Message: err.Error(),
		})
	}

	result, err := client.Query(c.Request().Context(), query.PathParams{
		StartEntityID:    data.StartEntityID,
		RelationshipPath: data.RelationshipPath,
		MaxResults:       data.MaxResults,
		MinConfidence:    data.MinConfidence,
	})
	if err != nil {
		logger.Error("Path query failed", "graph", g.Name(), "err", err)
		return c.JSON(statusForError(err), queryResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, queryResponse{Result: result})
}

// VectorQueryHandler runs a vector-seeded, hop-decayed ranking.
func VectorQueryHandler(c echo.Context) error {
	type constraintBody struct {
		Types     []string `json:"types"`
		Direction string   `json:"direction"`
	}

	type vectorQueryBody struct {
		QueryVector             []float32        `json:"query_vector" validate:"required"`
		RelationshipConstraints []constraintBody `json:"relationship_constraints"`
		TopK                    int              `json:"top_k" validate:"required"`
		MaxHops                 int              `json:"max_hops"`
		MinConfidence           float64          `json:"min_confidence"`
	}

	type vectorQueryResponse struct {
		Message string            `json:"message,omitempty"`
		Result  *query.RankResult `json:"result,omitempty"`
	}

	data := new(vectorQueryBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, vectorQueryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, vectorQueryResponse{
			Message: "Invalid request body",
		})
	}

	constraints := make([]query.HopConstraint, 0, len(data.RelationshipConstraints))
	for _, constraint := range data.RelationshipConstraints {
		constraints = append(constraints, query.HopConstraint{
			Types:     constraint.Types,
			Direction: common.Direction(constraint.Direction),
		})
	}

	client, g, err := queryClientFor(c)
	if err != nil {
		return c.JSON(statusForError(err), vectorQueryResponse{
			Message: err.Error(),
		})
	}

	result, err := client.VectorAugmentedQuery(c.Request().Context(), query.VectorQueryParams{
		QueryVector:             data.QueryVector,
		RelationshipConstraints: constraints,
		TopK:                    data.TopK,
		MaxHops:                 data.MaxHops,
		MinConfidence:           data.MinConfidence,
	})
	if err != nil {
		logger.Error("Vector query failed", "graph", g.Name(), "err", err)
		return c.JSON(statusForError(err), vectorQueryResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, vectorQueryResponse{Result: result})
}

// ReasoningHandler runs cross-document reasoning.
func ReasoningHandler(c echo.Context) error {
	type reasoningBody struct {
		Query             string    `json:"query"`
		QueryVector       []float32 `json:"query_vector" validate:"required"`
		DocumentNodeTypes []string  `json:"document_node_types" validate:"required"`
		MaxHops           int       `json:"max_hops"`
		MinRelevance      float64   `json:"min_relevance"`
		MaxDocuments      int       `json:"max_documents" validate:"required"`
		ReasoningDepth    string    `json:"reasoning_depth" validate:"required"`
	}

	type reasoningResponse struct {
		Message string                 `json:"message,omitempty"`
		Result  *query.ReasoningResult `json:"result,omitempty"`
	}

	data := new(reasoningBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, reasoningResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, reasoningResponse{
			Message: "Invalid request body",
		})
	}

	client, g, err := queryClientFor(c)
	if err != nil {
		return c.JSON(statusForError(err), reasoningResponse{
			Message: err.Error(),
		})
	}

	result, err := client.CrossDocumentReasoning(c.Request().Context(), query.ReasoningParams{
		Query:             data.Query,
		QueryVector:       data.QueryVector,
		DocumentNodeTypes: data.DocumentNodeTypes,
		MaxHops:           data.MaxHops,
		MinRelevance:      data.MinRelevance,
		MaxDocuments:      data.MaxDocuments,
		ReasoningDepth:    query.ReasoningDepth(data.ReasoningDepth),
	})
	if err != nil {
		logger.Error("Reasoning failed", "graph", g.Name(), "err", err)
		return c.JSON(statusForError(err), reasoningResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, reasoningResponse{Result: result})
}
