package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"

	config "github.com/DRSN-tech/ml-service/internal/cfg"
	v1Http "github.com/DRSN-tech/ml-service/internal/delivery/v1/http"
	v1Tcp "github.com/DRSN-tech/ml-service/internal/delivery/v1/tcp"
	"github.com/DRSN-tech/ml-service/internal/infrastructure/kafka"
	"github.com/DRSN-tech/ml-service/internal/repository/pgdb"
	"github.com/DRSN-tech/ml-service/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/ml-service/internal/repository/qdrant"
	"github.com/DRSN-tech/ml-service/internal/repository/redis"
	"github.com/DRSN-tech/ml-service/internal/usecase"
	"github.com/DRSN-tech/ml-service/pkg/clients"
	"github.com/DRSN-tech/ml-service/pkg/closer"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"github.com/DRSN-tech/ml-service/pkg/logger"
	"github.com/DRSN-tech/ml-service/pkg/postgres"
)

const shutdownTimeout = 10 * time.Second

// App собирает сервис анализа: хранилища, сценарии и оба сервера —
// основной TCP-протокол и служебный HTTP.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	tcpSrv  *v1Tcp.Server
	httpSrv *v1Http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	const op = "app.NewApp"

	c := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	c.Add(func(context.Context) error {
		db.Close()
		return nil
	})

	embeddings, err := initEmbeddingSource(cfg, db, c)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	metadataRepo := pgdb.NewMetadataRepo(db.Pool, converter.DocumentMetaConverter{})
	clusterRepo := pgdb.NewClusterRepo(db.Pool, converter.ClusterConverter{})
	topicRepo := pgdb.NewTopicRepo(db.Pool, converter.TopicConverter{})
	vizRepo := pgdb.NewVisualizationRepo(db.Pool, converter.VisualizationConverter{})
	recRepo := pgdb.NewRecommendationRepo(db.Pool, converter.RecommendationConverter{})

	redisClient := clients.NewRedisClient(cfg.Redis)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := redisClient.Ping(pingCtx); err != nil {
		return nil, e.Wrap(op, err)
	}
	c.Add(func(context.Context) error {
		return redisClient.Client.Close()
	})
	cacheRepo := redis.NewCacheRepo(redisClient, cfg.Redis, log)

	events, err := initEvents(cfg, log, c)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	analysisUC := usecase.NewAnalysisUC(
		embeddings,
		metadataRepo,
		clusterRepo,
		topicRepo,
		vizRepo,
		recRepo,
		cacheRepo,
		events,
		db.Pool,
		log,
		cfg,
	)

	tcpSrv := v1Tcp.NewServer(cfg.Tcp, log)
	v1Tcp.RegisterHandlers(tcpSrv, analysisUC)

	r := chi.NewRouter()
	v1Http.NewRouter(r, log).Init()
	httpSrv := v1Http.NewServer(r, cfg.Http)

	return &App{
		cfg:     cfg,
		logger:  log,
		closer:  c,
		tcpSrv:  tcpSrv,
		httpSrv: httpSrv,
	}, nil
}

// Run запускает серверы и блокируется до сигнала остановки или фатальной
// ошибки одного из них.
func (a *App) Run() error {
	tcpErrCh := make(chan error, 1)
	go func() {
		if err := a.tcpSrv.Start(); err != nil {
			a.logger.Errorf(err, "TCP server failed")
			tcpErrCh <- err
		}
	}()

	httpErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			httpErrCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-tcpErrCh:
	case appErr = <-httpErrCh:
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if err := a.tcpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "TCP server shutdown error")
	}

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "resource shutdown error")
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// initEmbeddingSource выбирает хранилище векторов: таблицы pgvector,
// общие с services_LLM, либо коллекции Qdrant.
func initEmbeddingSource(cfg *config.Config, db *postgres.PgDatabase, c *closer.Closer) (usecase.EmbeddingSource, error) {
	switch cfg.EmbeddingSource {
	case config.EmbeddingSourcePgvector:
		return pgdb.NewEmbeddingRepo(db.Pool), nil
	case config.EmbeddingSourceQdrant:
		qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Add(func(context.Context) error {
			return qdrantClient.Client.Close()
		})
		return qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant), nil
	default:
		return nil, e.Wrap(cfg.EmbeddingSource, e.ErrUnknownSource)
	}
}

func initEvents(cfg *config.Config, log logger.Logger, c *closer.Closer) (usecase.EventProducer, error) {
	if !cfg.Kafka.Enabled {
		log.Infof("kafka disabled, analysis events will not be published")
		return nil, nil
	}

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	c.Add(func(context.Context) error {
		return producer.Close()
	})

	return producer, nil
}
