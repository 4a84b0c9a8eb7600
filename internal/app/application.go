package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"codesync/internal/api"
	"codesync/internal/config"
	"codesync/internal/database"
	"codesync/internal/execution"
	"codesync/internal/hub"
	"codesync/internal/presence"
	"codesync/internal/reaper"
	"codesync/internal/router"
	"codesync/internal/sandbox"
	"codesync/internal/session"
	"codesync/internal/websocket"
	pkgdatabase "codesync/pkg/database"
	"codesync/pkg/interfaces"
)

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	dbManager  *database.Manager // nil when the audit log is disabled
	registry   *websocket.Registry
	dispatcher *execution.Dispatcher
	eventHub   *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Scratch dir → Database → State → Router → Dispatcher → Hub → API → HTTP
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Scratch directory for interpreter source files, created idempotently
	if err := os.MkdirAll(cfg.Execution.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	// STEP 2: Optional execution audit log
	var dbManager *database.Manager
	var executionLog interfaces.ExecutionLog
	if cfg.Database.Enabled {
		dbConfig := pkgdatabase.DefaultConfig()
		dbConfig.DatabasePath = cfg.Database.Path
		dbConfig.ConnMaxLifetime = cfg.Database.Timeout
		dbConfig.ConnMaxIdleTime = cfg.Database.Timeout / 3

		manager, err := database.NewManager(dbConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database manager: %w", err)
		}
		log.Printf("Execution audit log enabled at %s", cfg.Database.Path)
		dbManager = manager
		executionLog = manager
	}

	// STEP 3: Room state and transport membership
	registry := websocket.NewRegistry()
	presenceRegistry := presence.NewRegistry()
	store := session.NewStore()

	// STEP 4: Fan-out router
	eventRouter := router.NewRouter(registry)

	// STEP 5: Execution dispatcher with one executor per extension
	throttle := execution.NewThrottle(cfg.Execution.ThrottleRate, cfg.Execution.ThrottleBurst)
	dispatcher := execution.NewDispatcher(eventRouter, executionLog, throttle)
	registerExecutors(dispatcher, cfg.Execution)

	// STEP 6: Event hub owns every state mutation and the reaper ticks
	roomReaper := reaper.NewReaper(store, registry, cfg.Reaper.Interval)
	eventHub := hub.NewHub(registry, presenceRegistry, store, eventRouter, dispatcher, roomReaper)

	// STEP 7: Read-only API and websocket endpoint
	apiServer := api.NewServer(store, registry, presenceRegistry, executionLog)
	wsHandler := websocket.NewHandler(registry, eventHub, websocket.Options{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		BufferSize:   cfg.WebSocket.BufferSize,
		MaxFrameSize: cfg.WebSocket.MaxFrameSize,
	})

	// STEP 8: Setup HTTP server with both API and WebSocket endpoints
	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTP.Host, fmt.Sprint(cfg.HTTP.Port)),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		registry:   registry,
		dispatcher: dispatcher,
		eventHub:   eventHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// registerExecutors binds the supported extensions to their executors
func registerExecutors(dispatcher *execution.Dispatcher, cfg *config.ExecutionConfig) {
	javascript := execution.NewJavaScriptExecutor()
	dispatcher.Register(".js", "javascript", javascript, cfg.JavaScriptBudget)
	dispatcher.Register(".mjs", "javascript", javascript, cfg.JavaScriptBudget)
	dispatcher.Register(".py", "python", pythonExecutor(cfg), cfg.PythonBudget)
}

// pythonExecutor confines the interpreter with the sandbox helper
// FUNCTIONAL DISCOVERY: When confinement was requested but the kernel cannot
// provide it, Python runs are refused. Only sandbox=false runs unconfined.
func pythonExecutor(cfg *config.ExecutionConfig) interfaces.Executor {
	if !cfg.Sandbox {
		log.Println("WARNING: sandbox disabled by configuration, Python code runs with full host access")
		return execution.NewPythonExecutor(cfg.PythonBinary, cfg.ScratchDir, nil)
	}

	builder, err := sandbox.Command(cfg.ScratchDir)
	if err != nil {
		log.Printf("ERROR: sandbox unavailable, Python execution is disabled: %v", err)
		return execution.NewRefusingExecutor(fmt.Sprintf("%v: %v", execution.ErrUnconfined, err))
	}

	log.Println("Interpreters run inside the Landlock sandbox")
	return execution.NewPythonExecutor(cfg.PythonBinary, cfg.ScratchDir, builder)
}

// Start begins application execution
// Hub starts first to handle events, then the listener accepts connections
func (app *Application) Start(ctx context.Context) error {
	if err := app.eventHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	// TECHNICAL DISCOVERY: Listening synchronously surfaces bind errors here
	// and resolves port 0 before GetAddr is read
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		_ = app.eventHub.Stop()
		return fmt.Errorf("HTTP server error: %w", err)
	}
	app.listener = listener

	log.Printf("Server is listening on port %d", listener.Addr().(*net.TCPAddr).Port)

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → Connections → Hub → Dispatcher → Database
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down codesync")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not covered by Shutdown
	if n := app.registry.CloseAll(); n > 0 {
		log.Printf("Closed %d websocket connections", n)
	}

	if err := app.eventHub.Stop(); err != nil {
		log.Printf("Event hub shutdown error: %v", err)
	}

	app.dispatcher.Close()

	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			log.Printf("Database shutdown error: %v", err)
		}
	}

	log.Printf("codesync shutdown complete")
	return nil
}

// GetAddr returns the bound address once started, the configured one before
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Handler exposes the HTTP routes for in-process tests
func (app *Application) Handler() http.Handler {
	return app.httpServer.Handler
}
