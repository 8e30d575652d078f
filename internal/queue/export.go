package queue

import (
	"bytes"
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
	"github.com/endomorphosis/kgraph/pkg/store"
)

// ProcessExportMessage exports the graph rooted at the message's root
// address into an archive and uploads it to S3. The block store is the
// shared one, so the worker never needs the server's in-memory graph.
func ProcessExportMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	blocks store.BlockStore,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(ArchiveExportMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to unmarshal export message: %w", err)
	}
	if data.Root == "" || data.ArchiveKey == "" {
		return fmt.Errorf("export message missing root or archive key")
	}

	logger.Info("[Queue] Exporting archive", "graph", data.GraphName, "root", data.Root, "key", data.ArchiveKey)

	tmpDir, err := os.MkdirTemp("", "kgraph-export-*")
	if err != nil {
		return fmt.Errorf("failed to create export scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, "graph.car.json")
	if err := car.ExportRoot(ctx, blocks, data.Root, archivePath); err != nil {
		return err
	}

	archive, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to read exported archive: %w", err)
	}
	if err := storage.PutArchive(ctx, s3Client, data.ArchiveKey, bytes.NewReader(archive)); err != nil {
		return err
	}

	publishResult(ch, "archive.export.finished", ArchiveJobResult{
		CorrelationID: data.CorrelationID,
		GraphName:     data.GraphName,
		Root:          data.Root,
		ArchiveKey:    data.ArchiveKey,
		Status:        "done",
	})

	logger.Info("[Queue] Archive exported", "graph", data.GraphName, "key", data.ArchiveKey, "bytes", len(archive))

	return nil
}

func publishResult(ch *amqp091.Channel, topic string, result ArchiveJobResult) {
	body, err := json.Marshal(result)
	if err != nil {
		logger.Error("[Queue] Failed to marshal job result", "topic", topic, "err", err)
		return
	}
	if err := PublishTopic(ch, topic, body); err != nil {
		logger.Error("[Queue] Failed to publish job result", "topic", topic, "err", err)
	}
}
