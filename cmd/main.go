package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veridia/veridia-backend/internal/db"
	"github.com/veridia/veridia-backend/internal/graph"
	"github.com/veridia/veridia-backend/internal/handlers"
	"github.com/veridia/veridia-backend/internal/logger"
	"github.com/veridia/veridia-backend/internal/middleware"
	"github.com/veridia/veridia-backend/internal/observability"
	"github.com/veridia/veridia-backend/internal/platform/neo4jdb"
	"github.com/veridia/veridia-backend/internal/realtime/bus"
	"github.com/veridia/veridia-backend/internal/repos"
	"github.com/veridia/veridia-backend/internal/seed"
	"github.com/veridia/veridia-backend/internal/server"
	"github.com/veridia/veridia-backend/internal/services"
	"github.com/veridia/veridia-backend/internal/sse"
	"github.com/veridia/veridia-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "veridia-backend",
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Graph store: Neo4j when configured, in-memory otherwise.
	var nodeStore graph.NodeStore
	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Error("Neo4j init failed", "error", err)
		os.Exit(1)
	}
	if neo4jClient != nil {
		defer neo4jClient.Close(context.Background())
		nodeStore = neo4jdb.NewNodeStore(neo4jClient, log)
	} else {
		log.Warn("NEO4J_URI not set, using in-memory node store")
		nodeStore = graph.NewMemoryNodeStore()
	}

	// Event bus: Redis when configured, in-process otherwise.
	var eventBus bus.Bus
	if os.Getenv("REDIS_ADDR") != "" {
		eventBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Error("Redis bus init failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("REDIS_ADDR not set, using in-process event bus")
		eventBus = bus.NewLocalBus(log)
	}
	defer eventBus.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	inquiryRepo := repos.NewInquiryRepo(thePG, log)
	positionRepo := repos.NewPositionRepo(thePG, log)
	positionVoteRepo := repos.NewPositionVoteRepo(thePG, log)
	evidenceCategoryRepo := repos.NewEvidenceCategoryRepo(thePG, log)
	thresholdSetRepo := repos.NewThresholdSetRepo(thePG, log)
	amendmentRepo := repos.NewNodeAmendmentRepo(thePG, log)
	evaluationTaskRepo := repos.NewEvaluationTaskRepo(thePG, log)
	confidenceAuditRepo := repos.NewConfidenceAuditRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewHub(log)
	if err := eventBus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
		log.Error("Event bus forwarder failed to start", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	notifier := services.NewNotifier(log, eventBus)
	catalog := services.NewEvidenceCatalog(thePG, log, evidenceCategoryRepo)
	thresholds := services.NewThresholdRegistry(thePG, log, thresholdSetRepo)
	if err := seed.Run(ctx, log, catalog, thresholds); err != nil {
		log.Error("Reference data seed failed", "error", err)
		os.Exit(1)
	}
	if err := catalog.Reload(ctx); err != nil {
		log.Warn("Evidence catalog load failed", "error", err)
	}
	if err := thresholds.Reload(ctx); err != nil {
		log.Warn("Threshold registry load failed", "error", err)
	}

	similarityIndex := services.NewSimilarityIndex(log, openaiClient, inquiryRepo)
	deduplicator := services.NewDeduplicator(log, similarityIndex)
	evaluator := services.NewEvaluator(log, openaiClient)
	amendmentEngine := services.NewAmendmentEngine(thePG, log, amendmentRepo, nodeStore, notifier)
	pipelineService := services.NewPipelineService(thePG, log, positionRepo, inquiryRepo, catalog, thresholds, nodeStore, amendmentEngine, notifier)
	inquiryService := services.NewInquiryService(thePG, log, inquiryRepo, deduplicator, pipelineService, notifier)
	positionService := services.NewPositionService(thePG, log, positionRepo, positionVoteRepo, evaluationTaskRepo, inquiryRepo, catalog, pipelineService, notifier)
	confidenceService := services.NewConfidenceService(thePG, log, inquiryRepo, positionRepo, confidenceAuditRepo, evaluator, nodeStore, notifier)

	// Evaluation worker
	worker := services.NewEvaluationWorker(thePG, log, evaluationTaskRepo, positionRepo, inquiryRepo, evaluator, pipelineService)
	go worker.Start(ctx)

	// Handlers
	log.Info("Setting up handlers from main...")
	inquiryHandler := handlers.NewInquiryHandler(inquiryService, confidenceService)
	positionHandler := handlers.NewPositionHandler(positionService)
	amendmentHandler := handlers.NewAmendmentHandler(amendmentEngine)
	nodeHandler := handlers.NewNodeHandler(nodeStore, pipelineService)
	adminHandler := handlers.NewAdminHandler(catalog, thresholds)
	sseHandler := handlers.NewSSEHandler(log, sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	actorMiddleware := middleware.NewActorMiddleware(log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:              log,
		ActorMiddleware:  actorMiddleware,
		InquiryHandler:   inquiryHandler,
		PositionHandler:  positionHandler,
		AmendmentHandler: amendmentHandler,
		NodeHandler:      nodeHandler,
		AdminHandler:     adminHandler,
		SSEHandler:       sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
