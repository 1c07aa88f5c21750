package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/clinic-management/internal"
	"github.com/frahmantamala/clinic-management/internal/audit"
	auditpg "github.com/frahmantamala/clinic-management/internal/audit/postgres"
	"github.com/frahmantamala/clinic-management/internal/auth"
	authpg "github.com/frahmantamala/clinic-management/internal/auth/postgres"
	"github.com/frahmantamala/clinic-management/internal/permission"
	permissionpg "github.com/frahmantamala/clinic-management/internal/permission/postgres"
	"github.com/frahmantamala/clinic-management/internal/role"
	rolepg "github.com/frahmantamala/clinic-management/internal/role/postgres"
	"github.com/frahmantamala/clinic-management/internal/transport"
	"github.com/frahmantamala/clinic-management/internal/transport/rest"
	"github.com/frahmantamala/clinic-management/internal/user"
	userpg "github.com/frahmantamala/clinic-management/internal/user/postgres"
	"github.com/frahmantamala/clinic-management/pkg/logger"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}

	router := chi.NewRouter()
	registerRoutes(router, db, gormDB, config, lg)

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		Router: router,
	}, nil
}

// registerRoutes builds the full dependency graph: repositories over the
// shared gorm session, services over the repositories, handlers over the
// services.
func registerRoutes(router *chi.Mux, db *sqlx.DB, gormDB *gorm.DB, config *internal.Config, lg *slog.Logger) {
	userRepo := userpg.NewUserRepository(gormDB)
	roleRepo := rolepg.NewRoleRepository(gormDB)
	permissionRepo := permissionpg.NewPermissionRepository(gormDB)
	refreshRepo := authpg.NewRefreshTokenRepository(gormDB)
	auditRepo := auditpg.NewAuditRepository(gormDB)

	auditService := audit.NewService(auditRepo, userRepo, lg)
	resolver := permission.NewResolver(permissionRepo)

	permissionService := permission.NewService(permissionRepo, auditService, lg)
	roleService := role.NewService(roleRepo, permissionRepo, auditService, lg)
	userService := user.NewService(userRepo, roleRepo, auditService, config.Security.BCryptCost, lg)

	tokenIssuer := auth.NewJWTTokenIssuer(
		config.Security.JWTSecret,
		config.Security.JWTIssuer,
		config.Security.AccessTokenDuration,
	)
	refreshService := auth.NewRefreshTokenService(refreshRepo, config.Security.RefreshTokenDuration)
	authService := auth.NewService(userRepo, resolver, tokenIssuer, refreshService, auditService, config.Security.BCryptCost, lg)

	base := transport.NewBaseHandler(lg)
	authHandler := auth.NewHandler(base, authService)
	permissionHandler := permission.NewHandler(permissionService)
	roleHandler := role.NewHandler(roleService)
	userHandler := user.NewHandler(userService)
	auditHandler := audit.NewHandler(auditService)

	rest.RegisterAllRoutes(router, db.DB, authHandler, permissionHandler, roleHandler, userHandler, auditHandler, lg)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
