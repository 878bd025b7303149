// Command latticed runs the mutation engine core's HTTP/websocket server:
// it wires the graph repository, semantic index, agent orchestrator,
// mutation store, approval manager, and live channel hub together and
// serves the API pkg/api exposes.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/api"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/approval"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/config"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/conflict"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/database"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/engine"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/index"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/mutation"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/orchestrator"

	"github.com/gin-gonic/gin"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "./deploy/config/lattice.yaml"), "Path to lattice.yaml")
	envPath := flag.String("env-file", getEnv("ENV_FILE", "./deploy/config/.env"), "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("warning: could not load %s: %v", *envPath, err)
		log.Printf("continuing with existing environment variables...")
	} else {
		log.Printf("loaded environment from %s", *envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	log.Printf("configuration loaded: %d agent types registered", len(cfg.Agents))

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	log.Println("connected to PostgreSQL, migrations applied")

	m := metrics.New()

	repo := graph.NewPostgresRepository(dbClient.Pool())
	store := mutation.NewPostgresStore(dbClient.Pool())

	idx := buildIndex(repo, cfg.SemanticIndex)

	registry, agents := buildAgents(cfg)
	orch := orchestrator.New(registry, agents, cfg.Orchestrator, cfg.Approval, orchestrator.WithMetrics(m))

	h := hub.New(m)
	conflicts := conflict.NewEngine(conflict.DefaultRules())

	// Two-step wiring: Engine needs a *approval.Manager, and
	// approval.NewManager needs a Completer — satisfied by Engine itself.
	eng := engine.New(repo, idx, orch, store, nil, conflicts, h, m, cfg.Graph.MaxTraversalDepth)
	approvals := approval.NewManager(h, eng, m)
	eng.SetApprovals(approvals)

	srv := &api.Server{
		Graph:    repo,
		Index:    idx,
		Store:    store,
		Approval: approvals,
		Engine:   eng,
		Hub:      h,
		Metrics:  m,
		DB:       dbClient,
	}

	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

// buildIndex wires the Semantic Index with an optional redis-backed
// caching layer in front of the built-in lexical fallback ranker, per
// spec.md §4.3 and the semantic_index.redis_addr config tunable.
func buildIndex(repo graph.Repository, cfg config.SemanticIndexConfig) *index.Index {
	var primary index.Backend
	if cfg.RedisAddr != "" {
		primary = index.NewCachingBackend(index.NewLexicalBackend(), cfg.RedisAddr, cfg.EmbeddingCacheTTL)
	}
	return index.New(repo, primary)
}

// buildAgents constructs one agentrt.Runtime per configured agent type,
// registering each in the capability registry the orchestrator consults
// for dispatch (spec.md §4.4, §4.5).
func buildAgents(cfg *config.Config) (*agentrt.Registry, map[string]agentrt.Agent) {
	registry := agentrt.NewRegistry()
	agents := make(map[string]agentrt.Agent, len(cfg.Agents))

	for agentType, def := range cfg.Agents {
		agentID := agentType + "-agent"

		var primary agentrt.PrimaryExecutor
		if def.Backend == config.AgentBackendHTTP {
			httpClient := &http.Client{Timeout: def.Timeout}
			primary = agentrt.NewHTTPExecutor(def.Endpoint, httpClient)
		}

		runtime := agentrt.NewRuntime(agentrt.AgentType(agentType), primary, def.FallbackConfidence)
		agents[agentID] = runtime

		registry.Register(&agentrt.AgentRegistration{
			AgentID:            agentID,
			AgentType:          agentrt.AgentType(agentType),
			Priority:           1,
			MaxConcurrentTasks: 5,
		})

		slog.Info("agent registered", "agent_type", agentType, "backend", def.Backend)
	}

	return registry, agents
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains in-flight
// requests for up to 15 seconds before returning.
func waitForShutdown(httpServer *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
