package server

import (
	"github.com/labstack/echo/v4"

	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph routes
	apiRoutes.GET("/graphs", routes.ListGraphsHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.POST("/graphs", routes.CreateGraphHandler, middleware.RequirePermission("graph.create"))
	apiRoutes.GET("/graphs/:name", routes.GetRootHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.GET("/graphs/:name/root", routes.GetRootHandler, middleware.RequirePermission("graph.read"))

	// Entity and relationship routes
	apiRoutes.POST("/graphs/:name/entities", routes.CreateEntityHandler, middleware.RequirePermission("graph.write"))
	apiRoutes.GET("/graphs/:name/entities", routes.GetEntitiesByTypeHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.GET("/graphs/:name/entities/:id", routes.GetEntityHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.GET("/graphs/:name/entities/:id/relationships", routes.GetEntityRelationshipsHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.POST("/graphs/:name/relationships", routes.CreateRelationshipHandler, middleware.RequirePermission("graph.write"))
	apiRoutes.GET("/graphs/:name/relationships/:id", routes.GetRelationshipHandler, middleware.RequirePermission("graph.read"))

	// Query routes
	apiRoutes.POST("/graphs/:name/traverse", routes.TraverseHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.POST("/graphs/:name/query", routes.QueryHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.POST("/graphs/:name/vector-query", routes.VectorQueryHandler, middleware.RequirePermission("graph.read"))
	apiRoutes.POST("/graphs/:name/reasoning", routes.ReasoningHandler, middleware.RequirePermission("graph.read"))

	// Archive routes
	apiRoutes.POST("/graphs/:name/export", routes.ExportGraphHandler, middleware.RequirePermission("graph.export"))
	apiRoutes.POST("/graphs/import", routes.ImportGraphHandler, middleware.RequirePermission("graph.import"))
	apiRoutes.POST("/graphs/materialize", routes.MaterializeGraphHandler, middleware.RequirePermission("graph.import"))
}
