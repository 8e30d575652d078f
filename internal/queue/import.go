package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rabbitmq/amqp091-go"

	"github.com/endomorphosis/kgraph/internal/storage"
	"github.com/endomorphosis/kgraph/pkg/car"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

// ProcessImportMessage downloads an archive, verifies every block, and
// installs the blocks into the shared store. A corrupt archive fails the
// whole job before anything is persisted; the server can then materialize
// the graph from the published root address.
func ProcessImportMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	params car.ImportParams,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(ArchiveImportMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to unmarshal import message: %w", err)
	}
	if data.ArchiveKey == "" {
		return fmt.Errorf("import message missing archive key")
	}

	logger.Info("[Queue] Importing archive", "key", data.ArchiveKey)

	archive, err := storage.GetArchive(ctx, s3Client, data.ArchiveKey)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "kgraph-import-*")
	if err != nil {
		return fmt.Errorf("failed to create import scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "graph.car.json")
	if err := os.WriteFile(archivePath, archive, 0o600); err != nil {
		return fmt.Errorf("failed to write archive scratch file: %w", err)
	}

	g, err := car.FromCAR(ctx, archivePath, params)
	if err != nil {
		publishResult(ch, "archive.import.finished", ArchiveJobResult{
			CorrelationID: data.CorrelationID,
			ArchiveKey:    data.ArchiveKey,
			Status:        "failed",
			Error:         err.Error(),
		})
		return err
	}

	publishResult(ch, "archive.import.finished", ArchiveJobResult{
		CorrelationID: data.CorrelationID,
		GraphName:     g.Name(),
		Root:          g.RootAddress(),
		ArchiveKey:    data.ArchiveKey,
		Status:        "done",
		EntityCount:   g.EntityCount(),
		RelationCount: g.RelationshipCount(),
	})

	logger.Info("[Queue] Archive imported", "graph", g.Name(), "root", g.RootAddress(), "entities", g.EntityCount(), "relationships", g.RelationshipCount())

	return nil
}
