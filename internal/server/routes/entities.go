package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

// CreateEntityHandler adds an entity to a graph. The optional vector is
// registered with the shared vector index and its ref becomes part of the
// entity's content.
func CreateEntityHandler(c echo.Context) error {
	type createEntityBody struct {
		ID         string                  `json:"id"`
		Type       string                  `json:"entity_type" validate:"required"`
		Name       string                  `json:"name"`
		Properties map[string]common.Value `json:"properties"`
		Confidence float64                 `json:"confidence"`
		SourceText string                  `json:"source_text"`
		Vector     []float32               `json:"vector"`
	}

	type createEntityResponse struct {
		Message string         `json:"message"`
		Entity  *common.Entity `json:"entity,omitempty"`
		Root    string         `json:"root,omitempty"`
	}

	data := new(createEntityBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createEntityResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createEntityResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), createEntityResponse{
			Message: err.Error(),
		})
	}

	entity, err := g.AddEntity(ctx, graph.AddEntityParams{
		ID:         data.ID,
		Type:       data.Type,
		Name:       data.Name,
		Properties: data.Properties,
		Confidence: data.Confidence,
		SourceText: data.SourceText,
		Vector:     data.Vector,
	})
	if err != nil {
		logger.Error("Failed to add entity", "graph", g.Name(), "err", err)
		return c.JSON(statusForError(err), createEntityResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, createEntityResponse{
		Message: "Entity added successfully",
		Entity:  entity,
		Root:    g.RootAddress(),
	})
}

// GetEntityHandler returns one entity by ID.
func GetEntityHandler(c echo.Context) error {
	type getEntityResponse struct {
		Message string         `json:"message,omitempty"`
		Entity  *common.Entity `json:"entity,omitempty"`
	}

	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), getEntityResponse{
			Message: err.Error(),
		})
	}

	entity, err := g.GetEntity(c.Param("id"))
	if err != nil {
		return c.JSON(statusForError(err), getEntityResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, getEntityResponse{Entity: entity})
}

// GetEntitiesByTypeHandler lists entities of the type given in the type
// query parameter.
func GetEntitiesByTypeHandler(c echo.Context) error {
	type getEntitiesResponse struct {
		Message  string           `json:"message,omitempty"`
		Entities []*common.Entity `json:"entities"`
	}

	entityType := c.QueryParam("type")
	if entityType == "" {
		return c.JSON(http.StatusBadRequest, getEntitiesResponse{
			Message: "Missing type query parameter",
		})
	}

	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), getEntitiesResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, getEntitiesResponse{
		Entities: g.GetEntitiesByType(entityType),
	})
}

// GetEntityRelationshipsHandler lists the relationships attached to an
// entity, filtered by the direction and types query parameters.
func GetEntityRelationshipsHandler(c echo.Context) error {
	type getRelationshipsResponse struct {
		Message       string                 `json:"message,omitempty"`
		Relationships []*common.Relationship `json:"relationships"`
	}

	direction := common.Direction(c.QueryParam("direction"))
	if direction == "" {
		direction = common.DirectionBoth
	}

	var relationshipTypes []string
	if raw := c.QueryParam("types"); raw != "" {
		relationshipTypes = strings.Split(raw, ",")
	}

	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), getRelationshipsResponse{
			Message: err.Error(),
		})
	}

	relationships, err := g.GetEntityRelationships(c.Param("id"), direction, relationshipTypes...)
	if err != nil {
		return c.JSON(statusForError(err), getRelationshipsResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, getRelationshipsResponse{
		Relationships: relationships,
	})
}
