package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/ai"
	httptransport "github.com/relaydesk/relaydesk/internal/api/http"
	"github.com/relaydesk/relaydesk/internal/api/http/handlers"
	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/events"
	"github.com/relaydesk/relaydesk/internal/observability"
	"github.com/relaydesk/relaydesk/internal/persistence"
	"github.com/relaydesk/relaydesk/internal/repository"
	"github.com/relaydesk/relaydesk/internal/service"
	"github.com/relaydesk/relaydesk/internal/webhook"
	"github.com/relaydesk/relaydesk/internal/worker"
	"github.com/relaydesk/relaydesk/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	customerRepo := repository.NewCustomerRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	ruleRepo := repository.NewWorkflowRuleRepository(pool)

	tasks := worker.NewTaskRunner(cfg.Worker, logger)
	defer tasks.Stop()

	dispatcher := events.NewInMemoryDispatcher(logger)

	completer := ai.NewHTTPCompleter(cfg.AI, logger)
	knowledge := ai.NewKnowledgeClient(cfg.Knowledge,
		ai.NewResultCache(cfg.Knowledge.CacheSize),
		ai.NewTokenBucket(cfg.Knowledge.RateLimitPerSecond, cfg.Knowledge.RateLimitBurst),
		logger)

	identityService := service.NewIdentityService(service.IdentityDependencies{
		CustomerRepo: customerRepo,
		TicketRepo:   ticketRepo,
		Logger:       logger,
	})
	threadService := service.NewThreadService(service.ThreadDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		AIConfig:    cfg.AI,
		Logger:      logger,
	})
	messageService := service.NewMessageService(service.MessageDependencies{
		MessageRepo: messageRepo,
		TicketRepo:  ticketRepo,
		Redis:       redis,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	responderService := service.NewResponderService(service.ResponderDependencies{
		AIConfig:       cfg.AI,
		Completer:      completer,
		Knowledge:      knowledge,
		MessageService: messageService,
		MessageRepo:    messageRepo,
		TicketRepo:     ticketRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	ingestService := service.NewIngestService(service.IngestDependencies{
		Identity:   identityService,
		Threads:    threadService,
		Messages:   messageService,
		Responder:  responderService,
		Dispatcher: dispatcher,
		Tasks:      tasks,
		Metrics:    metrics,
		Logger:     logger,
	})
	notifier := service.NewNotificationService(logger)

	webhooks := webhook.NewDispatcher(cfg.Webhook, tasks, logger)
	executor := workflow.NewExecutor(workflow.ExecutorDependencies{
		Tickets:  ticketRepo,
		Agents:   agentRepo,
		Messages: messageService,
		Notifier: notifier,
		Webhooks: webhooks,
		Logger:   logger,
	})
	engine := workflow.NewEngine(ruleRepo, executor, metrics, logger)
	worker.NewAutomationWorker(engine, logger).Register(dispatcher)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	agentMiddleware := auth.NewAgentMiddleware(tokens, agentRepo)
	ingestMiddleware := auth.NewIngestMiddleware(cfg.Auth)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Ingest:          handlers.NewIngestHandler(ingestService),
		Channels:        handlers.NewChannelsHandler(ingestService, logger),
		Workflows:       handlers.NewWorkflowHandler(ruleRepo, ticketRepo, engine),
		Agents:          handlers.NewAgentsHandler(agentRepo, tokens),
		IngestAuth:      ingestMiddleware,
		AgentMiddleware: agentMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
