package server

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/voyx/engine/internal/api/http"
	"github.com/voyx/engine/internal/api/middleware"
	"github.com/voyx/engine/internal/api/ws"
	"github.com/voyx/engine/internal/engine"
	"github.com/voyx/engine/internal/engine/sandbox"
	"github.com/voyx/engine/internal/infrastructure/config"
	"github.com/voyx/engine/internal/infrastructure/monitoring"
	"github.com/voyx/engine/internal/infrastructure/tracing"
	"github.com/voyx/engine/internal/logging"
	"github.com/voyx/engine/internal/paywall"
	"github.com/voyx/engine/internal/policy"
	"github.com/voyx/engine/internal/rules"
	"github.com/voyx/engine/internal/settings"
	"github.com/voyx/engine/internal/userscript"
	"github.com/voyx/engine/internal/userscript/capability"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	engine  *engine.Engine
	hub     *ws.Hub
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.ForEnv(cfg.Logging.Level)
	}

	logger.Info("Initializing content policy engine",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Paths.DataDir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// On-disk layout
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.RulesDir, cfg.Paths.ScriptsDir, cfg.Paths.StorageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	// Persisted settings back both the security config and per-script
	// toggles. A corrupt file means defaults, not a failed startup; the
	// error stays visible through /health.
	store, err := settings.Open(cfg.Paths.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	if loadErr := store.LoadError(); loadErr != nil {
		logger.Warn("settings file unusable, starting from defaults", zap.Error(loadErr))
	}

	// Rule sources: an explicit manifest wins, otherwise the rules
	// directory is scanned with the default category mapping.
	manifest := cfg.Paths.Manifest
	rulesDir := cfg.Paths.RulesDir
	sources := func() ([]rules.Source, error) {
		if _, err := os.Stat(manifest); err == nil {
			m, err := rules.LoadManifest(manifest)
			if err != nil {
				return nil, err
			}
			return m.Sources, nil
		}
		return rules.DiscoverSources(rulesDir)
	}
	ruleStore := rules.NewStore(rules.NewLoader(logger.Logger), logger.Logger, sources)

	// Event hub doubles as the capability sink.
	hub := ws.NewHub(metrics, logger.Logger)
	sink := capability.Sink(hub.Publish)

	clipboard := capability.NewClipboard(sink)
	caps := capability.Caps{
		Storage:   capability.NewFileStorage(cfg.Paths.StorageDir),
		HTTP:      capability.NewClient(logger.Logger),
		Notifier:  capability.NewNotifier(sink, logger.Logger),
		Clipboard: clipboard,
		Menu:      capability.NewMenu(sink),
	}

	sandboxCfg := sandbox.Config{
		Timeout:          time.Duration(cfg.Sandbox.TimeoutMs) * time.Millisecond,
		EnableConsole:    true,
		MaxHTTPCalls:     cfg.Sandbox.MaxHTTPCalls,
		OnCapabilityCall: metrics.RecordCapabilityCall,
	}
	pool, err := sandbox.NewPool(sandboxCfg, caps, sink, logger.Logger, cfg.Sandbox.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	installClient := resty.New().SetTimeout(30 * time.Second)
	registry := userscript.NewRegistry(cfg.Paths.ScriptsDir, store, installClient, logger.Logger)

	eng := engine.New(engine.Options{
		Config:  policy.NewConfigManager(store, logger.Logger),
		Policy:  policy.NewEngine(logger.Logger),
		Rules:   ruleStore,
		Scripts: registry,
		Bypass:  paywall.NewBypasser(ruleStore.Current, logger.Logger),
		Pool:    pool,
		Metrics: metrics,
		Logger:  logger.Logger,
	})

	// Initial load; failures surface in the reports, not as startup
	// errors.
	eng.Reload()
	if err := registry.EnsureExample(); err != nil {
		logger.Warn("failed to seed example userscript", zap.Error(err))
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracing.New("engine", logger.Logger)))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(eng, clipboard, store, metrics, logger.Logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Security settings and policy decisions
	router.GET("/security/config", handlers.GetSecurityConfig)
	router.PUT("/security/config", handlers.UpdateSecurityConfig)
	router.GET("/security/status", handlers.SecurityStatus)
	router.POST("/policy/check", handlers.CheckPolicy)

	// Rule sets
	router.POST("/rules/reload", handlers.ReloadRules)
	router.GET("/rules/status", handlers.RulesStatus)

	// Paywall techniques
	router.GET("/paywall/techniques", handlers.ListPaywallTechniques)
	router.POST("/paywall/techniques", handlers.AddPaywallTechnique)
	router.DELETE("/paywall/techniques/:name", handlers.RemovePaywallTechnique)
	router.PUT("/paywall/enabled", handlers.SetPaywallEnabled)
	router.POST("/paywall/detect", handlers.DetectPaywall)

	// Userscripts
	router.GET("/scripts", handlers.ListScripts)
	router.POST("/scripts", handlers.CreateScript)
	router.POST("/scripts/install", handlers.InstallScript)
	router.POST("/scripts/reload", handlers.ReloadScripts)
	router.GET("/scripts/match", handlers.MatchScripts)
	router.PUT("/scripts/enabled", handlers.SetScriptsEnabled)
	router.GET("/scripts/:name", handlers.GetScript)
	router.DELETE("/scripts/:name", handlers.DeleteScript)
	router.PUT("/scripts/:name/enabled", handlers.SetScriptEnabled)

	// Page lifecycle
	router.POST("/page/loaded", handlers.PageLoaded)
	router.GET("/page/scripts", handlers.PageScripts)
	router.GET("/clipboard", handlers.ReadClipboard)

	// WebSocket event stream
	router.GET("/stream", hub.HandleConnection)

	// Metrics endpoints
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
	router.GET("/metrics/json", handlers.MetricsJSON)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		engine:  eng,
		hub:     hub,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Engine exposes the assembled engine, mainly for tests.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Router exposes the gin router, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if s.engine.Pool != nil {
		if err := s.engine.Pool.Close(); err != nil {
			s.logger.Error("Failed to close sandbox pool", zap.Error(err))
		}
	}

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
