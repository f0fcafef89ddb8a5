package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"docchat-be/internal/config"
	"docchat-be/internal/controller"
	"docchat-be/internal/model"
	"docchat-be/internal/pkg/logger"
	"docchat-be/internal/service"
	"docchat-be/pkg/database"
	"docchat-be/pkg/docstore"
	"docchat-be/pkg/extract"
	"docchat-be/pkg/index"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/llm/factory"
	"docchat-be/pkg/memory"
	"docchat-be/pkg/rag/assembler"
	"docchat-be/pkg/rag/prompt"
	"docchat-be/pkg/rag/query"
	"docchat-be/pkg/rag/retrieval"

	pktNats "docchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger *logger.ZapLogger

	// Controllers
	DocumentController controller.IDocumentController
	SessionController  controller.ISessionController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	Watcher         *docstore.Watcher

	// Shared with the cli, which runs without the HTTP layer.
	DocumentService service.IDocumentService
	ChatService     service.IChatService

	closers []func() error
}

func NewContainer(cfg *config.Config, sysLogger *logger.ZapLogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Database (only when some component keeps its state in postgres)
	var db *gorm.DB
	if needsDatabase(cfg) {
		var err error
		db, err = database.NewGormDBFromDSN(cfg.Storage.DBConnection)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(db, model.Tables()...); err != nil {
			return nil, err
		}
	}

	// 2. Documents
	var store docstore.Store
	switch cfg.Storage.Backend {
	case config.StorageBackendPostgres:
		store = docstore.NewPostgresStore(db)
	default:
		local, err := docstore.NewLocalStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		store = local
	}

	asm := assembler.NewAssembler(store, extract.NewExtractor(sysLogger), cfg.Storage.MaxFileSizeBytes, sysLogger)

	strategy, err := c.newStrategy(cfg, store, asm, db)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "Retrieval strategy ready", map[string]interface{}{"mode": strategy.Name()})

	var groups []query.KeywordGroup
	if cfg.Retrieval.QueryHintsFile != "" {
		groups, err = query.LoadGroups(cfg.Retrieval.QueryHintsFile)
		if err != nil {
			return nil, fmt.Errorf("load query hints: %w", err)
		}
	}
	normalizer := query.NewNormalizer(groups...)
	builder := prompt.NewBuilder(cfg.App.AllowGeneralChat)

	// 3. Model gateway. A missing provider leaves chat answering not_configured.
	var gateway *llm.Gateway
	provider, err := factory.NewLLMProvider(cfg.LLM)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "LLM provider not configured", map[string]interface{}{"error": err.Error()})
	} else {
		gateway = llm.NewGateway(provider, llm.GatewayConfig{
			MaxAttempts:       cfg.LLM.MaxRetries,
			BaseDelay:         cfg.LLM.RetryBaseDelay,
			Timeout:           cfg.LLM.Timeout,
			StreamTimeout:     cfg.LLM.StreamTimeout,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
		}, sysLogger)
		sysLogger.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{
			"provider": cfg.LLM.Provider,
			"model":    cfg.LLM.Model,
		})
	}

	// 4. User memory
	memoryManager, err := c.newMemory(cfg, db, gateway)
	if err != nil {
		return nil, err
	}

	// 5. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, pubSub.Close)

	var bridge service.EventBridge
	var remote service.RemoteSubscriber
	if cfg.Events.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.Events.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			bridge = natsPub
			c.closers = append(c.closers, func() error { natsPub.Close(); return nil })
		}
		natsSub, err := pktNats.NewSubscriber(cfg.Events.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS subscriber", map[string]interface{}{"error": err.Error()})
		} else {
			remote = natsSub
			c.closers = append(c.closers, func() error { natsSub.Close(); return nil })
		}
	}

	publisherService := service.NewPublisherService(cfg.Events.Topic, pubSub, bridge, sysLogger)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Events.Topic, strategy, remote, durableName(), sysLogger)

	// 6. Services
	c.DocumentService = service.NewDocumentService(store, strategy, memoryManager, publisherService, cfg.Storage.MaxFileSizeBytes, sysLogger)
	c.ChatService = service.NewChatService(asm, normalizer, strategy, builder, gateway, memoryManager, sysLogger)

	if cfg.Storage.WatchDataDir && cfg.Storage.Backend != config.StorageBackendPostgres {
		c.Watcher, err = docstore.NewWatcher(cfg.Storage.DataDir, sysLogger, c.DocumentService.NotifyExternalChange)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Data dir watcher disabled", map[string]interface{}{"error": err.Error()})
		} else {
			c.closers = append(c.closers, c.Watcher.Close)
		}
	}

	// 7. Controllers
	c.DocumentController = controller.NewDocumentController(c.DocumentService)
	c.SessionController = controller.NewSessionController(c.DocumentService, memoryManager)
	c.ChatController = controller.NewChatController(c.ChatService, sysLogger)

	return c, nil
}

func (c *Container) newStrategy(cfg *config.Config, store docstore.Store, asm *assembler.Assembler, db *gorm.DB) (retrieval.Strategy, error) {
	if cfg.Retrieval.Mode != config.RetrievalModeIndexed {
		return retrieval.NewFullContext(asm, cfg.Retrieval.MaxContextChars, c.Logger), nil
	}

	var embedder index.Embedder
	switch cfg.Retrieval.EmbeddingProvider {
	case "ollama":
		embedder = index.NewOllamaEmbedder(cfg.Retrieval.OllamaBaseURL, cfg.Retrieval.OllamaModel)
	default:
		embedder = index.NewTFIDFEmbedder()
	}

	var repo index.Repository
	switch cfg.Retrieval.IndexBackend {
	case config.IndexBackendPgvector:
		if db == nil {
			return nil, fmt.Errorf("pgvector index backend needs DB_CONNECTION_STRING")
		}
		repo = index.NewPgvectorRepository(db)
	default:
		bolt, err := index.NewBoltRepository(cfg.Retrieval.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("open index store: %w", err)
		}
		c.closers = append(c.closers, bolt.Close)
		repo = bolt
	}

	return retrieval.NewIndexed(store, asm, embedder, repo, retrieval.IndexedConfig{
		TopK:         cfg.Retrieval.TopK,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
	}, c.Logger), nil
}

func (c *Container) newMemory(cfg *config.Config, db *gorm.DB, gateway *llm.Gateway) (*memory.Manager, error) {
	if !cfg.Memory.Enabled {
		return nil, nil
	}

	var store memory.Store
	switch cfg.Memory.Backend {
	case config.MemoryBackendRedis:
		opt, err := redis.ParseURL(cfg.Memory.RedisURL)
		if err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.Memory.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
		}
		c.closers = append(c.closers, rdb.Close)
		store = memory.NewRedisStore(rdb, c.Logger)
	case config.MemoryBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres memory backend needs DB_CONNECTION_STRING")
		}
		store = memory.NewPostgresStore(db, c.Logger)
	default:
		fs, err := memory.NewFileStore(cfg.Memory.Dir, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("open memory dir: %w", err)
		}
		store = fs
	}

	var extractor memory.FactExtractor
	if cfg.Memory.ModelExtraction && gateway != nil {
		extractor = memory.NewModelExtractor(gateway)
	}

	return memory.NewManager(store, extractor, memory.ManagerConfig{
		MaxHistory:   cfg.Memory.MaxHistory,
		ContextTurns: cfg.Memory.ContextTurns,
	}, c.Logger), nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn("BOOTSTRAP", "Close failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func needsDatabase(cfg *config.Config) bool {
	return cfg.Storage.Backend == config.StorageBackendPostgres ||
		(cfg.Memory.Enabled && cfg.Memory.Backend == config.MemoryBackendPostgres) ||
		(cfg.Retrieval.Mode == config.RetrievalModeIndexed && cfg.Retrieval.IndexBackend == config.IndexBackendPgvector)
}

// durableName is per instance so every replica sees every invalidation.
func durableName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "docchat-" + strings.NewReplacer(".", "-", "*", "-", ">", "-").Replace(host)
}
