package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

// CreateRelationshipHandler adds a relationship between two existing
// entities.
func CreateRelationshipHandler(c echo.Context) error {
	type createRelationshipBody struct {
		ID         string                  `json:"id"`
		Type       string                  `json:"relationship_type" validate:"required"`
		SourceID   string                  `json:"source_id" validate:"required"`
		TargetID   string                  `json:"target_id" validate:"required"`
		Properties map[string]common.Value `json:"properties"`
		Confidence float64                 `json:"confidence"`
		SourceText string                  `json:"source_text"`
	}

	type createRelationshipResponse struct {
		Message      string               `json:"message"`
		Relationship *common.Relationship `json:"relationship,omitempty"`
		Root         string               `json:"root,omitempty"`
	}

	data := new(createRelationshipBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createRelationshipResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createRelationshipResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), createRelationshipResponse{
			Message: err.Error(),
		})
	}

	relationship, err := g.AddRelationship(ctx, graph.AddRelationshipParams{
		ID:         data.ID,
		Type:       data.Type,
		SourceID:   data.SourceID,
		TargetID:   data.TargetID,
		Properties: data.Properties,
		Confidence: data.Confidence,
		SourceText: data.SourceText,
	})
	if err != nil {
		logger.Error("Failed to add relationship", "graph", g.Name(), "err", err)
		return c.JSON(statusForError(err), createRelationshipResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, createRelationshipResponse{
		Message:      "Relationship added successfully",
		Relationship: relationship,
		Root:         g.RootAddress(),
	})
}

// GetRelationshipHandler returns one relationship by ID.
func GetRelationshipHandler(c echo.Context) error {
	type getRelationshipResponse struct {
		Message      string               `json:"message,omitempty"`
		Relationship *common.Relationship `json:"relationship,omitempty"`
	}

	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), getRelationshipResponse{
			Message: err.Error(),
		})
	}

	relationship, err := g.GetRelationship(c.Param("id"))
	if err != nil {
		return c.JSON(statusForError(err), getRelationshipResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, getRelationshipResponse{Relationship: relationship})
}
