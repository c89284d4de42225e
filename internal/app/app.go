package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"bikepulse/internal/config"
	"bikepulse/internal/dataset"
	apierrors "bikepulse/internal/errors"
	"bikepulse/internal/exporter"
	"bikepulse/internal/infrastructure"
	"bikepulse/internal/locale"
	custommw "bikepulse/internal/middleware"
	"bikepulse/internal/services"
	handlers "bikepulse/internal/transport/http"
	ws "bikepulse/internal/websocket"
)

// BuildTime is set at compile time
var BuildTime = time.Now().Format(time.RFC3339)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         *dataset.Store
	Hub           *ws.Hub
	Dashboard     *services.DashboardService
	Health        *services.HealthService
	Exporter      *exporter.Exporter
	Scheduler     *exporter.Scheduler
	Watcher       *dataset.Watcher
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	locale    *locale.Locale
	validator *custommw.Validator
	errors    *apierrors.ErrorHandler
	// watchCancel stops the watcher's Run loop
	watchCancel context.CancelFunc
}

// NewApplication loads configuration and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(context.Background(), cfg, logger)
}

// New wires every component from cfg. A dataset that cannot be loaded is
// fatal and comes back as a load error.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	loc, err := locale.Parse(cfg.Dataset.Locale)
	if err != nil {
		return nil, apierrors.NewConfigError("invalid locale", err)
	}

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		locale:    loc,
		validator: custommw.NewValidator(),
		errors:    apierrors.NewErrorHandler(logger, cfg.Development),
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry, cfg.Development), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = otelProviders

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		logger.WarnContext(ctx, "Business metrics unavailable", slog.String("error", err.Error()))
		metrics = infrastructure.NoopBusinessMetrics()
	}
	a.Metrics = metrics

	if err := a.initializeServices(ctx); err != nil {
		a.shutdownTelemetry(ctx)
		return nil, err
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

func (a *Application) datasetOptions() dataset.Options {
	return dataset.Options{
		Sheet:  a.Config.Dataset.Sheet,
		Policy: dataset.ValidationPolicy(a.Config.Dataset.Validation),
		Logger: a.Logger,
	}
}

// initializeServices loads the dataset and builds the services around it
func (a *Application) initializeServices(ctx context.Context) error {
	opts := a.datasetOptions()

	table, err := dataset.Load(ctx, a.Config.Dataset.Path, opts)
	a.Metrics.RecordDatasetLoad(ctx, table.Len(), err)
	if err != nil {
		return err
	}

	a.Store = dataset.NewStore(table)
	a.Hub = ws.NewHub(a.Logger, a.Metrics)
	a.Store.OnSwap(a.Hub.NotifyReload)

	a.Dashboard = services.NewDashboardService(a.Store, a.locale, a.Metrics, a.Logger)
	a.Health = services.NewHealthService(config.AppVersion, BuildTime, a.Store, a.Hub, a.Logger)

	a.Exporter = exporter.New(a.Config.Export.Dir, a.Metrics, a.Logger)
	if spec := a.Config.Export.Schedule; spec != "" {
		formats, err := exporter.ParseFormats(a.Config.Export.Formats)
		if err != nil {
			return apierrors.NewConfigError("invalid export formats", err)
		}
		scheduler, err := exporter.NewScheduler(spec, exporter.SnapshotJob(a.Dashboard, a.Exporter, formats), a.Logger)
		if err != nil {
			return apierrors.NewConfigError("invalid export schedule", err)
		}
		a.Scheduler = scheduler
	}

	if a.Config.Dataset.Watch {
		watcher, err := dataset.NewWatcher(a.Config.Dataset.Path, a.Store, opts, a.Config.Dataset.WatchDebounce)
		if err != nil {
			return fmt.Errorf("failed to watch dataset: %w", err)
		}
		watcher.OnReload = func(t *dataset.Table, err error) {
			a.Metrics.RecordDatasetLoad(context.Background(), t.Len(), err)
		}
		a.Watcher = watcher
	}

	a.Logger.InfoContext(ctx, "Services initialized",
		slog.Int("rows", table.Len()),
		slog.String("locale", a.locale.Code()),
		slog.Bool("watch", a.Watcher != nil),
		slog.Bool("scheduled_exports", a.Scheduler != nil))

	return nil
}

// setupRouter configures the HTTP router
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter untouched runs before /ws
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)

	wsHandler := handlers.NewWebSocketHandler(a.Hub, a.Dashboard, a.validator, handlers.WebSocketConfig{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		AllowedOrigins:  a.getCORSConfig().AllowedOrigins,
		Development:     a.Config.Development,
		Options:         a.websocketOptions(),
	}, a.Logger)
	r.Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		otelMiddleware := custommw.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger)
		r.Use(otelMiddleware.Handler)
		r.Use(custommw.StructuredLogger(a.Logger))
		r.Use(custommw.Recoverer(a.Logger))
		r.Use(custommw.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(custommw.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		if a.Config.Server.RequestTimeout > 0 {
			r.Use(custommw.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		}

		a.setupRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) setupRoutes(r chi.Router) {
	page := handlers.NewPageHandler(a.Dashboard, a.validator, "", a.Logger, a.errors)
	r.Method(http.MethodGet, "/", page)

	health := handlers.NewHealthHandler(a.Health, a.Logger)
	dashboard := handlers.NewDashboardHandler(a.Dashboard, a.validator, a.Metrics, a.Logger, a.errors)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HealthCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)

		r.Mount("/dashboard", dashboard.Routes())
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.errors.HandleError(w, r, apierrors.NotFoundError(r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.errors.HandleError(w, r, apierrors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed"))
	})
}

func (a *Application) websocketOptions() ws.Options {
	opts := ws.DefaultOptions()
	wc := a.Config.WebSocket
	if wc.PingPeriod > 0 {
		opts.PingPeriod = wc.PingPeriod
	}
	if wc.PongWait > 0 {
		opts.PongWait = wc.PongWait
	}
	if wc.MaxMessageSize > 0 {
		opts.MaxMessageSize = wc.MaxMessageSize
	}
	// a ping must land before the peer's read deadline expires
	if opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	return opts
}

// getCORSConfig returns CORS configuration for the current environment
func (a *Application) getCORSConfig() custommw.CORSConfig {
	cfg := custommw.CORSConfig{
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}

	port := a.Config.Server.Port
	cfg.AllowedOrigins = []string{
		fmt.Sprintf("http://localhost:%d", port),
		fmt.Sprintf("http://127.0.0.1:%d", port),
	}
	if a.Config.Development {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}
	for _, origin := range a.Config.Security.AllowedOrigins {
		if !custommw.OriginAllowed(cfg.AllowedOrigins, origin) {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP server. A listener
// failure calls cancel instead of exiting.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("address", a.Server.Addr),
		slog.String("dataset", a.Config.Dataset.Path))

	a.Hub.Start()

	if a.Watcher != nil {
		watchCtx, watchCancel := context.WithCancel(context.Background())
		a.watchCancel = watchCancel
		go func() {
			if err := a.Watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.ErrorContext(ctx, "Dataset watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var serverErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			serverErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	a.Hub.Stop()

	if a.Watcher != nil {
		if a.watchCancel != nil {
			a.watchCancel()
		}
		if err := a.Watcher.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing dataset watcher", slog.String("error", err.Error()))
		}
	}

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	a.shutdownTelemetry(shutdownCtx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return serverErr
}

func (a *Application) shutdownTelemetry(ctx context.Context) {
	if a.OTelProviders == nil {
		return
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// ctx may already be cancelled by a listener failure
	return a.Stop(context.Background())
}
