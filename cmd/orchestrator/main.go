package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/audit"
	"github.com/thedomainai/agentic-stack/internal/broker"
	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/database/kafka"
	"github.com/thedomainai/agentic-stack/internal/database/redis"
	"github.com/thedomainai/agentic-stack/internal/generation"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/orchestrator"
	"github.com/thedomainai/agentic-stack/internal/orchestrator/api"
	"github.com/thedomainai/agentic-stack/internal/secrets"
	"github.com/thedomainai/agentic-stack/internal/statestore"
	"github.com/thedomainai/agentic-stack/internal/workers"
	"github.com/thedomainai/agentic-stack/pkg/circuitbreaker"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)

	serviceLogger := logger.New("orchestrator", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Redis; the shared state store is a critical collaborator.
	redisClient, err := redis.NewClient(ctx, &cfg.Databases.Redis)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
	}
	store := statestore.NewRedisStore(redisClient)
	serviceLogger.Info("Successfully connected to Redis")

	// Connect to Kafka; the broker is a critical collaborator.
	kafkaClient, err := kafka.NewClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Kafka")
	}
	messageBroker := broker.NewKafkaBroker(kafkaClient, &cfg.Databases.Kafka, serviceLogger)
	serviceLogger.Info("Successfully connected to Kafka")

	// Connect to etcd; the secret store is non-critical, failure degrades
	// instead of aborting startup.
	var secretStore secrets.Store
	if etcdStore, err := secrets.NewEtcdStore(&cfg.Databases.Etcd); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Secret store unavailable, starting degraded")
	} else {
		secretStore = etcdStore
		if cb := cfg.Middleware.CircuitBreaker; cb.Enabled {
			timeout, err := time.ParseDuration(cb.Timeout)
			if err != nil {
				timeout = 30 * time.Second
			}
			secretStore = secrets.Guard(etcdStore, circuitbreaker.New(cb.FailureThreshold, cb.SuccessThreshold, timeout))
		}
		serviceLogger.Info("Successfully connected to secret store")
	}

	auditLog, err := audit.NewLog(&cfg.Audit)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to open audit log")
	}

	orc := orchestrator.New(store, messageBroker, secretStore, auditLog, cfg)

	// Register the worker catalog. All workers share one text generator.
	gen := buildGenerator(ctx, secretStore, serviceLogger)
	orc.RegisterAgentType("architect", func() agent.Agent { return workers.NewArchitect(gen) })
	orc.RegisterAgentType("coder", func() agent.Agent { return workers.NewCoder(gen) })
	orc.RegisterAgentType("researcher", func() agent.Agent { return workers.NewResearcher(gen) })
	orc.RegisterAgentType("tester", func() agent.Agent { return workers.NewTester(gen) })
	orc.RegisterAgentType("infra", func() agent.Agent { return workers.NewInfra(gen) })

	if err := orc.Start(ctx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to start orchestrator")
	}

	// Spawn one resident agent per registered type.
	for _, agentType := range []string{"architect", "coder", "researcher", "tester", "infra"} {
		if _, err := orc.SpawnAgent(ctx, agentType); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to spawn agent " + agentType)
		}
	}

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	if rl := cfg.Middleware.RateLimiter; rl.Enabled {
		router.Use(api.RateLimit(api.NewLimiter(rl)))
	}
	apiHandler := api.NewAPI(orc, serviceLogger)
	apiHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Orchestrator.ServerAddress,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Server forced to shutdown")
	}
	if err := orc.Stop(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error stopping orchestrator")
	}

	cancel()
	if err := messageBroker.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing broker")
	}
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka client")
	}
	if secretStore != nil {
		if err := secretStore.Close(); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing secret store")
		}
	}
	if err := store.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis")
	}

	serviceLogger.Info("Orchestrator gracefully stopped")
}

// buildGenerator resolves the text generator. The API key comes from the
// environment or the secret store; without one, workers fall back to the
// offline generator.
func buildGenerator(ctx context.Context, secretStore secrets.Store, log *logger.Logger) workers.TextGenerator {
	apiKey := os.Getenv("GEMINI_API_KEY")
	model := "gemini-1.5-flash"

	if apiKey == "" && secretStore != nil {
		if secret, err := secretStore.Get(ctx, "llm"); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Could not read llm secret")
		} else if secret != nil {
			apiKey = secret["api_key"]
			if m := secret["model"]; m != "" {
				model = m
			}
		}
	}

	if apiKey == "" {
		log.Warn("No generation API key configured, using offline generator")
		return &generation.Static{}
	}

	gen, err := generation.NewGemini(ctx, model, apiKey)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to create Gemini generator, using offline generator")
		return &generation.Static{}
	}
	return gen
}
