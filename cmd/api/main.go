package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "workflowbridge/api/swagger" // swagger docs
	"workflowbridge/internal/broadcast"
	"workflowbridge/internal/config"
	"workflowbridge/internal/database"
	"workflowbridge/internal/handler"
	"workflowbridge/internal/mailer"
	"workflowbridge/internal/metrics"
	"workflowbridge/internal/repository"
	"workflowbridge/internal/service"
	"workflowbridge/internal/tracing"
	"workflowbridge/internal/websocket"
	"workflowbridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const version = "1.0.0"

// @title           Workflow Bridge API
// @version         1.0
// @description     Department request forms routed through ordered approver chains.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		OutputPath: cfg.Logger.OutputPath,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(cfg.Tracing.ServiceName, version, cfg.Tracing.Output)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	db, err := database.NewConnection(cfg.DatabaseDSN(), database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, database.Seed{
		AdminEmail:    cfg.Seed.AdminEmail,
		AdminPassword: cfg.Seed.AdminPassword,
		AdminName:     cfg.Seed.AdminName,
	}, zl)
	if err != nil {
		return err
	}
	zl.Info("connected to PostgreSQL")

	m := metrics.New()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zl)
	go wsHub.Run(ctx)
	m.WatchConnections(wsHub.ClientCount)

	broadcasters := broadcast.Fanout{wsHub}
	if cfg.NATS.URL != "" {
		nc, err := broadcast.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, zl)
		if err != nil {
			return err
		}
		defer nc.Close()
		broadcasters = append(broadcasters, nc)
	}

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, zl)

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authService := service.NewAuthService(userRepo, auditRepo, cfg.JWT.Secret, cfg.JWT.TTL, zl)
	userService := service.NewUserService(userRepo, departmentRepo, auditRepo, txManager)
	departmentService := service.NewDepartmentService(departmentRepo, auditRepo, txManager)
	templateService := service.NewTemplateService(templateRepo, departmentRepo, userRepo, auditRepo, txManager)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, broadcasters, mail, m, zl)
	requestService := service.NewRequestService(service.RequestDeps{
		Requests:    requestRepo,
		Templates:   templateRepo,
		Users:       userRepo,
		Sequences:   repository.NewSequenceRepository(db),
		Audits:      auditRepo,
		TxManager:   txManager,
		Notifier:    notificationService,
		Broadcaster: broadcasters,
		Metrics:     m,
		Logger:      zl,
		FrontendURL: cfg.Server.FrontendURL,
	})
	dashboardService := service.NewDashboardService(requestRepo, userRepo, templateRepo, notificationRepo)
	auditService := service.NewAuditService(auditRepo)

	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         zl,
		Metrics:        m,
		Verifier:       authService,
		Hub:            wsHub,
	}, handler.Handlers{
		Auth:          handler.NewAuthHandler(authService, userService, cfg.JWT.TTL),
		Users:         handler.NewUserHandler(userService),
		Departments:   handler.NewDepartmentHandler(departmentService),
		Templates:     handler.NewTemplateHandler(templateService),
		Requests:      handler.NewRequestHandler(requestService),
		Notifications: handler.NewNotificationHandler(notificationService),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Audit:         handler.NewAuditHandler(auditService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
