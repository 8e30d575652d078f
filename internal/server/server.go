package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/endomorphosis/kgraph/internal/queue"
	mid "github.com/endomorphosis/kgraph/internal/server/middleware"
	"github.com/endomorphosis/kgraph/internal/util"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/logger"
	"github.com/endomorphosis/kgraph/pkg/query"
	"github.com/endomorphosis/kgraph/pkg/store"
	badgerstore "github.com/endomorphosis/kgraph/pkg/store/badger"
	memorystore "github.com/endomorphosis/kgraph/pkg/store/memory"
	s3store "github.com/endomorphosis/kgraph/pkg/store/s3"
	"github.com/endomorphosis/kgraph/pkg/vector"
	memoryvec "github.com/endomorphosis/kgraph/pkg/vector/memory"
	pgxvector "github.com/endomorphosis/kgraph/pkg/vector/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blocks := initBlockStore(ctx)
	vectors, pgPool := initVectorIndex(ctx)
	if pgPool != nil {
		defer pgPool.Close()
	}

	registry, err := graph.NewRegistry(graph.NewRegistryParams{Store: blocks, Vectors: vectors})
	if err != nil {
		logger.Fatal("Failed to create graph registry", "err", err)
	}

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3Client, err := s3store.NewClient(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	decay := util.GetEnvNumeric("GRAPH_RANK_DECAY", 0)
	seedCandidates := int(util.GetEnvNumeric("GRAPH_SEED_CANDIDATES", 0))
	maxParallel := int(util.GetEnvNumeric("GRAPH_QUERY_PARALLEL", 0))

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")

	app := &mid.App{
		Registry: registry,
		Query: func(g *graph.Graph) (*query.Client, error) {
			return query.NewClient(query.NewClientParams{
				Graph:          g,
				Decay:          decay,
				SeedCandidates: seedCandidates,
				MaxParallel:    maxParallel,
			})
		},
		Queue:          ch,
		Key:            &k,
		S3:             s3Client,
		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1G"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// initBlockStore selects the block store backend from STORE_BACKEND:
// badger (default), s3, or memory.
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

// initVectorIndex uses pgvector when DATABASE_URL is configured, running
// migrations first, and falls back to the in-memory index otherwise. The
// returned pool is nil for the in-memory case.
func initVectorIndex(ctx context.Context) (vector.Index, *pgxpool.Pool) {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		return memoryvec.NewIndex(), nil
	}

	m, err := migrate.New(util.GetEnvString("MIGRATIONS_URL", "file://migrations"), databaseURL)
	if err != nil {
		logger.Fatal("Failed to load migrations", "err", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
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
		logger.Fatal("Failed to connect to database", "err", err)
	}

	index, err := pgxvector.NewIndex(pgxvector.NewIndexParams{Conn: pool})
	if err != nil {
		logger.Fatal("Failed to create vector index", "err", err)
	}
	return index, pool
}
