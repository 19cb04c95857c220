package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	agentpkg "github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/audit"
	"github.com/thedomainai/agentic-stack/internal/broker"
	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/database/kafka"
	"github.com/thedomainai/agentic-stack/internal/database/redis"
	"github.com/thedomainai/agentic-stack/internal/generation"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/statestore"
	"github.com/thedomainai/agentic-stack/internal/workers"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

// Standalone worker process: runs a single agent of the requested type and
// competes for deliveries with every other member of the agents group.
func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the configuration file")
	agentType := flag.String("type", "coder", "agent type to run (architect, coder, researcher, tester, infra)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Invalid logger level: %v", err)
	}
	logger.Init(logLevel)

	serviceLogger := logger.New("agent", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := redis.NewClient(ctx, &cfg.Databases.Redis)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
	}
	store := statestore.NewRedisStore(redisClient)

	kafkaClient, err := kafka.NewClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Kafka")
	}
	messageBroker := broker.NewKafkaBroker(kafkaClient, &cfg.Databases.Kafka, serviceLogger)

	auditLog, err := audit.NewLog(&cfg.Audit)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to open audit log")
	}

	gen := buildGenerator(serviceLogger)
	worker, err := newWorker(*agentType, gen)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Unknown agent type")
	}

	runtime := agentpkg.NewRuntime(worker, store, messageBroker, auditLog, &cfg.Agent)
	if err := runtime.Start(ctx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to start agent runtime")
	}

	group := cfg.Databases.Kafka.GroupID + "-agents"
	for _, channel := range []broker.Channel{broker.ChannelDefault, broker.ChannelHigh} {
		if err := messageBroker.Consume(ctx, channel, group, runtime.HandleMessage); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to subscribe to " + string(channel))
		}
	}
	serviceLogger.WithPayload(map[string]interface{}{"agent_id": runtime.ID}).Info("Agent running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := runtime.Stop(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error stopping agent runtime")
	}

	cancel()
	if err := messageBroker.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing broker")
	}
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka client")
	}
	if err := store.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis")
	}

	serviceLogger.Info("Agent gracefully stopped")
}

func newWorker(agentType string, gen workers.TextGenerator) (agentpkg.Agent, error) {
	switch agentType {
	case "architect":
		return workers.NewArchitect(gen), nil
	case "coder":
		return workers.NewCoder(gen), nil
	case "researcher":
		return workers.NewResearcher(gen), nil
	case "tester":
		return workers.NewTester(gen), nil
	case "infra":
		return workers.NewInfra(gen), nil
	default:
		return nil, fmt.Errorf("unknown agent type: %s", agentType)
	}
}

func buildGenerator(log *logger.Logger) workers.TextGenerator {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Warn("No generation API key configured, using offline generator")
		return &generation.Static{}
	}
	gen, err := generation.NewGemini(context.Background(), "gemini-1.5-flash", apiKey)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to create Gemini generator, using offline generator")
		return &generation.Static{}
	}
	return gen
}
