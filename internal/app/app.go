package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"pmSchedule/internal/client/scheduleapi"
	"pmSchedule/internal/config"
	"pmSchedule/internal/dashboard"
	"pmSchedule/internal/dashboard/store"
	"pmSchedule/internal/handlers"
	"pmSchedule/internal/logger"
	"pmSchedule/internal/mcp"
	"pmSchedule/internal/middleware"
	seedfile "pmSchedule/internal/repository/schedule"
	"pmSchedule/internal/repository/schedule/inmemory"
	"pmSchedule/internal/repository/schedule/postgres"
	"pmSchedule/internal/repository/schedule/sqlite"
	"pmSchedule/internal/service"
	"pmSchedule/internal/web"
	"pmSchedule/internal/worker"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository service.ScheduleRepository // интерфейс!
	service    *service.ScheduleService
	dashboard  *dashboard.Dashboard
	worker     *worker.KPIWorker
	registerer prometheus.Registerer
	shutdowns  []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:     cfg,
		registerer: prometheus.DefaultRegisterer,
		shutdowns:  make([]func(), 0),
	}
}

// Init собирает все слои. Логгер должен быть уже инициализирован.
func (a *App) Init(ctx context.Context) (*App, error) {
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	repo, repoType, err := a.initRepository(ctx)
	if err != nil {
		return nil, err
	}
	a.repository = repo
	a.service = service.NewScheduleService(repo, repoType)

	if path := a.config.Repository.SeedFile; path != "" {
		tasks, err := seedfile.LoadSeedFile(path)
		if err != nil {
			return nil, fmt.Errorf("начальные данные: %w", err)
		}
		if _, err := a.service.Seed(ctx, tasks); err != nil {
			return nil, fmt.Errorf("загрузка начальных данных: %w", err)
		}
	}

	client, err := scheduleapi.New(scheduleapi.Config{
		BaseURL:       a.config.APIBaseURL(),
		Timeout:       a.config.API.Timeout,
		FetchRetries:  a.config.API.FetchRetries,
		RetryInterval: a.config.API.RetryInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("клиент API: %w", err)
	}

	loc, err := a.config.Location()
	if err != nil {
		return nil, err
	}
	a.dashboard = dashboard.New(client, store.New(), func() time.Time { return time.Now().In(loc) })

	interval := a.config.Dashboard.RefreshInterval
	a.worker = worker.NewKPIWorker(a.dashboard, &interval, a.registerer)

	a.router = a.initRouter()
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.router, "pm-schedule"),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("Приложение инициализировано",
		zap.String("repository", string(repoType)),
		zap.String("api", a.config.APIBaseURL()),
		zap.String("addr", a.server.Addr))
	return a, nil
}

func (a *App) initRepository(ctx context.Context) (service.ScheduleRepository, service.RepoType, error) {
	switch a.config.Repository.Type {
	case string(service.PostgresType):
		db := a.config.Database
		storage, err := postgres.New(ctx, db.URL, postgres.Options{
			MaxConns:        int32(db.MaxConnections),
			MinConns:        int32(db.MinConnections),
			MaxConnIdleTime: db.IdleTimeout,
		})
		if err != nil {
			return nil, "", fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)

		if err := storage.Migrate(ctx); err != nil {
			return nil, "", fmt.Errorf("миграции: %w", err)
		}
		return storage, service.PostgresType, nil

	case string(service.SQLiteType):
		storage, err := sqlite.Open(ctx, a.config.Database.SQLitePath)
		if err != nil {
			return nil, "", fmt.Errorf("открытие SQLite: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)
		return storage, service.SQLiteType, nil

	default:
		return inmemory.NewScheduleStorage(), service.InMemoryType, nil
	}
}

func (a *App) initRouter() *chi.Mux {
	apiHandler := handlers.NewScheduleHandler(a.service)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))

	r.Get("/health", apiHandler.HealthCheck)
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Route("/api/schedule", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.config.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
		apiHandler.Routes(r)
	})

	web.New(a.dashboard).Routes(r)
	return r
}

// Router нужен тестам, чтобы ходить в приложение без сети
func (a *App) Router() http.Handler {
	return a.router
}

// Run слушает порт и крутит воркер до отмены ctx, затем корректно останавливает сервер
func (a *App) Run(ctx context.Context) error {
	return a.run(ctx, nil)
}

// RunMCP дополнительно обслуживает MCP по stdio. Конец ввода завершает всё приложение.
func (a *App) RunMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	return a.run(ctx, func(ctx context.Context) error {
		return mcp.Serve(ctx, a.dashboard, in, out)
	})
}

func (a *App) run(ctx context.Context, extra func(context.Context) error) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("прослушивание %s: %w", a.server.Addr, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Сервер запущен", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.worker.Start(ctx)
		return nil
	})

	if extra != nil {
		g.Go(func() error {
			if err := extra(ctx); err != nil {
				return err
			}
			// завершение MCP-сессии останавливает и остальные части
			return errMCPClosed
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errMCPClosed) {
		return err
	}
	return nil
}

var errMCPClosed = errors.New("mcp сессия завершена")

// Shutdown освобождает ресурсы в обратном порядке
func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
