package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/config"
	"github.com/aliuyar1234/projecthub/internal/db"
	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/aliuyar1234/projecthub/internal/invitations"
	"github.com/aliuyar1234/projecthub/internal/memberships"
	"github.com/aliuyar1234/projecthub/internal/messages"
	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/notifications"
	"github.com/aliuyar1234/projecthub/internal/projects"
	"github.com/aliuyar1234/projecthub/internal/retention"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/aliuyar1234/projecthub/internal/store/postgres"
	"github.com/aliuyar1234/projecthub/internal/users"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Services are the domain components shared by the HTTP layer and the
// admin commands.
type Services struct {
	Store         store.Store
	Catalog       *roles.Catalog
	Evaluator     *access.Evaluator
	Memberships   *memberships.Store
	Directory     *users.Directory
	Notifications *notifications.Service
	Invitations   *invitations.Workflow
	Projects      *projects.Manager
	Auditor       *audit.Writer
	Messages      *messages.Catalog
	Metrics       *metrics.Metrics
}

// App holds the application state
type App struct {
	Config    *config.Config
	Services  *Services
	Router    http.Handler
	publisher *notifications.RedisPublisher
	scheduler *cron.Cron
	server    *http.Server
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	SetupLogger(cfg.LogLevel)

	log.Info().Msg("Initializing projecthub application")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher *notifications.RedisPublisher
	if cfg.RedisURL != "" {
		publisher, err = notifications.NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info().Msg("Redis notification channel enabled")
	} else {
		log.Info().Msg("PH_REDIS_URL not set: realtime notifications disabled")
	}

	files, err := openFileStore(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	m := metrics.New()
	var pub notifications.Publisher
	if publisher != nil {
		pub = publisher
	}
	svc, err := NewServices(ctx, cfg, st, pub, files, m)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		st.Close()
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Services:  svc,
		publisher: publisher,
	}
	a.Router = NewRouter(cfg, svc, a.ready)

	log.Info().Msg("Application initialized successfully")
	return a, nil
}

// OpenStore connects to PostgreSQL, or returns the in-process store when
// PH_DB_DSN is memory://. Migrations run automatically in dev.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.UsesMemoryStore() {
		log.Warn().Msg("Using in-memory store: data is lost on restart")
		return memory.New(), nil
	}

	log.Info().Msg("Connecting to database...")
	pool, err := db.Connect(ctx, cfg.DBDSN, db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if cfg.IsDev() {
		log.Info().Msg("Development mode: running migrations automatically")
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info().Msg("Production mode: migrations must be run manually")
	}

	return postgres.New(pool), nil
}

func openFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if cfg.S3Bucket == "" {
		log.Info().Msg("PH_S3_BUCKET not set: project icon uploads disabled")
		return filestore.Disabled{}, nil
	}
	files, err := filestore.NewS3Store(ctx, filestore.S3Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		Endpoint:     cfg.S3Endpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
		PublicURL:    cfg.S3PublicURL,
		MaxBytes:     cfg.IconMaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure icon storage: %w", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("S3 icon storage enabled")
	return files, nil
}

// NewServices wires the domain components over st and synchronizes the
// built-in role catalog. publisher may be nil.
func NewServices(ctx context.Context, cfg *config.Config, st store.Store, publisher notifications.Publisher, files filestore.Store, m *metrics.Metrics) (*Services, error) {
	msgs, err := messages.Load(cfg.DefaultLanguage())
	if err != nil {
		msgs, err = messages.Load("en")
		if err != nil {
			return nil, err
		}
		log.Warn().Str("locale", cfg.DefaultLanguage()).Msg("No messages for default language, falling back to en")
	}

	catalog := roles.NewCatalog(cfg.RoleCacheSize, cfg.RoleCacheTTL, m)
	defs, err := roles.DefaultDefinitions()
	if err != nil {
		return nil, err
	}
	if err := catalog.Sync(ctx, st, defs); err != nil {
		return nil, fmt.Errorf("failed to sync role catalog: %w", err)
	}

	svc := &Services{
		Store:         st,
		Catalog:       catalog,
		Evaluator:     access.NewEvaluator(catalog),
		Memberships:   memberships.NewStore(),
		Directory:     users.NewDirectory(),
		Notifications: notifications.NewService(publisher, m),
		Auditor:       audit.NewWriter(st),
		Messages:      msgs,
		Metrics:       m,
	}
	svc.Invitations = invitations.NewWorkflow(invitations.Deps{
		Store:         st,
		Directory:     svc.Directory,
		Memberships:   svc.Memberships,
		Catalog:       catalog,
		Evaluator:     svc.Evaluator,
		Notifications: svc.Notifications,
		Auditor:       svc.Auditor,
		Metrics:       m,
	})
	svc.Projects = projects.NewManager(projects.Deps{
		Store:       st,
		Catalog:     catalog,
		Evaluator:   svc.Evaluator,
		Memberships: svc.Memberships,
		Invitations: svc.Invitations,
		Directory:   svc.Directory,
		Files:       files,
		Auditor:     svc.Auditor,
		Metrics:     m,
		Languages:   cfg.Languages,
	})
	return svc, nil
}

func (a *App) ready(ctx context.Context) error {
	if err := a.Services.Store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.publisher != nil {
		if err := a.publisher.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// StartScheduler runs the notification retention job on the configured
// cron schedule.
func (a *App) StartScheduler() error {
	c := cron.New()
	_, err := c.AddFunc(a.Config.RetentionSchedule, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Retention job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := retention.RunRetentionJob(ctx, a.Services.Store, a.Config.NotificationRetentionDays, a.Services.Metrics); err != nil {
			log.Error().Err(err).Msg("Retention job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention job: %w", err)
	}

	c.Start()
	a.scheduler = c
	log.Info().
		Str("schedule", a.Config.RetentionSchedule).
		Int("retention_days", a.Config.NotificationRetentionDays).
		Msg("Retention scheduler started")
	return nil
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Close gracefully shuts down the application
func (a *App) Close() {
	log.Info().Msg("Shutting down application")
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if a.Services != nil && a.Services.Store != nil {
		log.Info().Msg("Closing database connection")
		a.Services.Store.Close()
	}
}

// SetupLogger configures the global logger
func SetupLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", level).Msg("Logger configured")
}
