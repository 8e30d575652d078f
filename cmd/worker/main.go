package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/endomorphosis/kgraph/internal/queue"
	"github.com/endomorphosis/kgraph/internal/util"
	"github.com/endomorphosis/kgraph/pkg/car"
	"github.com/endomorphosis/kgraph/pkg/logger"
	"github.com/endomorphosis/kgraph/pkg/logger/console"
	"github.com/endomorphosis/kgraph/pkg/store"
	badgerstore "github.com/endomorphosis/kgraph/pkg/store/badger"
	memorystore "github.com/endomorphosis/kgraph/pkg/store/memory"
	s3store "github.com/endomorphosis/kgraph/pkg/store/s3"
	"github.com/endomorphosis/kgraph/pkg/vector"
	memoryvec "github.com/endomorphosis/kgraph/pkg/vector/memory"
	pgxvector "github.com/endomorphosis/kgraph/pkg/vector/pgx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "kgraph-worker",
	})
	logger.Init(consoleLogger)

	// Init s3 client for archive objects
	s3Client, err := s3store.NewClient(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	// Shared block store, same backend selection as the server
	blocks := initBlockStore(ctx)

	// Vector index, only needed so imported graphs keep valid refs
	vectors, pgConn := initVectorIndex(ctx)
	if pgConn != nil {
		defer pgConn.Close()
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	importParams := car.ImportParams{Store: blocks, Vectors: vectors}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.ExportQueue:
					processingErr = queue.ProcessExportMessage(ctx, s3Client, blocks, ch, string(qm.msg.Body))
				case queue.ImportQueue:
					processingErr = queue.ProcessImportMessage(ctx, s3Client, importParams, ch, string(qm.msg.Body))
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func initBlockStore(ctx context.Context) store.BlockStore {
	switch util.GetEnvString("STORE_BACKEND", "badger") {
	case "memory":
		return memorystore.NewBlockStore()
	case "s3":
		client, err := s3store.NewClient(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		blocks, err := s3store.NewBlockStore(s3store.Params{
			Client: client,
			Bucket: util.GetEnvString("AWS_BUCKET", "kgraph"),
		})
		if err != nil {
			logger.Fatal("Failed to create S3 block store", "err", err)
		}
		return blocks
	default:
		blocks, err := badgerstore.NewBlockStore(badgerstore.Params{
			Path: util.GetEnvString("DATA_DIR", "./data/blocks"),
		})
		if err != nil {
			logger.Fatal("Failed to open badger block store", "err", err)
		}
		return blocks
	}
}

func initVectorIndex(ctx context.Context) (vector.Index, *pgxpool.Pool) {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		return memoryvec.NewIndex(), nil
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database URL", "err", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}

	index, err := pgxvector.NewIndex(pgxvector.NewIndexParams{Conn: pool})
	if err != nil {
		logger.Fatal("Failed to create vector index", "err", err)
	}
	return index, pool
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// If message has been retried 10 times, send to dead-letter
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "text/plain",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "text/plain",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
