package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

// CreateGraphHandler creates a new empty graph.
func CreateGraphHandler(c echo.Context) error {
	type createGraphBody struct {
		Name string `json:"name" validate:"required"`
	}

	type createGraphResponse struct {
		Message string `json:"message"`
		Name    string `json:"name,omitempty"`
		Root    string `json:"root,omitempty"`
	}

	data := new(createGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	registry := c.(*middleware.AppContext).App.Registry

	g, err := registry.Create(ctx, data.Name)
	if err != nil {
		logger.Error("Failed to create graph", "name", data.Name, "err", err)
		return c.JSON(statusForError(err), createGraphResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, createGraphResponse{
		Message: "Graph created successfully",
		Name:    g.Name(),
		Root:    g.RootAddress(),
	})
}

// ListGraphsHandler lists the registered graph names.
func ListGraphsHandler(c echo.Context) error {
	type listGraphsResponse struct {
		Graphs []string `json:"graphs"`
	}

	registry := c.(*middleware.AppContext).App.Registry
	return c.JSON(http.StatusOK, listGraphsResponse{
		Graphs: registry.Names(),
	})
}

// GetRootHandler returns the current root address of a graph.
func GetRootHandler(c echo.Context) error {
	type getRootResponse struct {
		Message           string `json:"message,omitempty"`
		Name              string `json:"name,omitempty"`
		Root              string `json:"root,omitempty"`
		EntityCount       int    `json:"entity_count"`
		RelationshipCount int    `json:"relationship_count"`
	}

	registry := c.(*middleware.AppContext).App.Registry
	g, err := registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), getRootResponse{
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, getRootResponse{
		Name:              g.Name(),
		Root:              g.RootAddress(),
		EntityCount:       g.EntityCount(),
		RelationshipCount: g.RelationshipCount(),
	})
}
