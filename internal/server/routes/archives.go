package routes

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/endomorphosis/kgraph/internal/queue"
	"github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/internal/util"
	"github.com/endomorphosis/kgraph/pkg/car"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

// ExportGraphHandler enqueues an archive export job for a graph. The job
// is keyed by the graph's current root address, so later mutations do not
// change what gets exported.
func ExportGraphHandler(c echo.Context) error {
	type exportResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id,omitempty"`
		Root          string `json:"root,omitempty"`
		ArchiveKey    string `json:"archive_key,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	g, err := app.Registry.Get(c.Param("name"))
	if err != nil {
		return c.JSON(statusForError(err), exportResponse{
			Message: err.Error(),
		})
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, exportResponse{
			Message: "Internal server error",
		})
	}

	root := g.RootAddress()
	archiveKey := fmt.Sprintf("archives/%s/%s.car.json", g.Name(), root)

	msg := queue.ArchiveExportMsg{
		Message:       "Export graph archive",
		CorrelationID: correlationID,
		GraphName:     g.Name(),
		Root:          root,
		ArchiveKey:    archiveKey,
	}
	body := []byte(util.ConvertStructToJson(msg))
	if err := queue.PublishFIFO(app.Queue, queue.ExportQueue, body); err != nil {
		logger.Error("Failed to publish export job", "graph", g.Name(), "err", err)
		return c.JSON(http.StatusInternalServerError, exportResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, exportResponse{
		Message:       "Export job queued",
		CorrelationID: correlationID,
		Root:          root,
		ArchiveKey:    archiveKey,
	})
}

// ImportGraphHandler enqueues an archive import job for an archive already
// uploaded to S3.
func ImportGraphHandler(c echo.Context) error {
	type importBody struct {
		ArchiveKey string `json:"archive_key" validate:"required"`
	}

	type importResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	data := new(importBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, importResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, importResponse{
			Message: "Invalid request body",
		})
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, importResponse{
			Message: "Internal server error",
		})
	}

	app := c.(*middleware.AppContext).App
	msg := queue.ArchiveImportMsg{
		Message:       "Import graph archive",
		CorrelationID: correlationID,
		ArchiveKey:    data.ArchiveKey,
	}
	body := []byte(util.ConvertStructToJson(msg))
	if err := queue.PublishFIFO(app.Queue, queue.ImportQueue, body); err != nil {
		logger.Error("Failed to publish import job", "key", data.ArchiveKey, "err", err)
		return c.JSON(http.StatusInternalServerError, importResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, importResponse{
		Message:       "Import job queued",
		CorrelationID: correlationID,
	})
}

// MaterializeGraphHandler registers an imported graph under its root
// address. The import worker verifies the archive and installs its blocks
// into the shared store; this resolves those blocks back into a live graph
// and makes it queryable, replacing any graph with the same name.
func MaterializeGraphHandler(c echo.Context) error {
	type materializeBody struct {
		Root string `json:"root" validate:"required"`
	}

	type materializeResponse struct {
		Message           string `json:"message"`
		Name              string `json:"name,omitempty"`
		Root              string `json:"root,omitempty"`
		EntityCount       int    `json:"entity_count,omitempty"`
		RelationshipCount int    `json:"relationship_count,omitempty"`
	}

	data := new(materializeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, materializeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, materializeResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	g, err := car.FromCID(c.Request().Context(), data.Root, car.ImportParams{
		Store:   app.Registry.Store(),
		Vectors: app.Registry.Vectors(),
	})
	if err != nil {
		logger.Error("Failed to materialize graph", "root", data.Root, "err", err)
		return c.JSON(statusForError(err), materializeResponse{
			Message: err.Error(),
		})
	}
	app.Registry.Install(g)

	return c.JSON(http.StatusOK, materializeResponse{
		Message:           "Graph materialized successfully",
		Name:              g.Name(),
		Root:              g.RootAddress(),
		EntityCount:       g.EntityCount(),
		RelationshipCount: g.RelationshipCount(),
	})
}
