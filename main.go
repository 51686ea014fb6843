package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/config"
	"realtime-chat/internal/db"
	grpcserver "realtime-chat/internal/grpc"
	"realtime-chat/internal/handlers"
	"realtime-chat/internal/logging"
	"realtime-chat/internal/mailer"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/rabbitmq"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/services"
	"realtime-chat/internal/storage"
	"realtime-chat/internal/telemetry"
	"realtime-chat/internal/ws"
)

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, log)
	if err != nil {
		log.Fatal("failed to init tracer", zap.Error(err))
	}

	var (
		users    repositories.UserRepository
		otps     repositories.OTPRepository
		messages repositories.MessageRepository
		pinger   grpcserver.Pinger
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		database, err := db.Connect(ctx, cfg.DatabaseDSN, log)
		if err != nil {
			log.Fatal("failed to connect to db", zap.Error(err))
		}
		defer database.Close()
		users = repositories.NewUserRepo(database)
		otps = repositories.NewOTPRepo(database)
		messages = repositories.NewMessageRepo(database)
		pinger = database
	default:
		log.Warn("using in-memory store, data is lost on restart")
		store := repositories.NewMemoryStore()
		users, otps, messages = store, store, store
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("event publisher ready", zap.String("mode", rabbitmq.PublisherMode(publisher)), zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	audit := telemetry.NewAuditEmitter(publisher, "audit.auth", cfg.ServiceName, cfg.Environment, log)

	mail, err := mailer.New(cfg.SMTP, log)
	if err != nil {
		log.Fatal("failed to configure mailer", zap.Error(err))
	}

	var uploader storage.Uploader = storage.DisabledUploader{}
	if cfg.S3.Bucket != "" && cfg.S3.Endpoint != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatal("failed to configure object store", zap.Error(err))
		}
		uploader = s3Uploader
	} else {
		log.Warn("object store disabled, image uploads will fail")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	hub := ws.NewHub(log)
	router := ws.NewRouter(hub, log)

	authSvc := services.NewAuthService(users, otps, mail, uploader, tokens, audit, cfg.OTPTTL, log)
	msgSvc := services.NewMessageService(users, messages, uploader, router, log)
	go services.NewOTPSweeper(otps, cfg.OTPSweepInterval, log).Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		otelgin.Middleware(cfg.ServiceName),
		observability.HTTPMetricsMiddleware(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		gin.Recovery(),
	)

	authMW := middleware.AuthMiddleware(tokens)
	api := engine.Group("/api")
	handlers.NewAuthHandler(authSvc).Register(api, authMW)
	handlers.NewMessageHandler(msgSvc).Register(api, authMW)
	handlers.RegisterDebugRoutes(engine, audit, hub, cfg.DebugRoutes)

	engine.GET("/ws", ws.NewWebSocketHandler(hub, router, tokens, cfg.TypingQuietPeriod, log).Handle)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	healthSrv := health.NewServer()
	go grpcserver.NewStoreProbe(healthSrv, pinger, cfg.ServiceName, cfg.HealthCheckInterval, log).Run(ctx)
	grpcSrv := grpcserver.NewServer(healthSrv)
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Fatal("grpc listen failed", zap.Error(err))
		}
		log.Info("grpc server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc server stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
}
