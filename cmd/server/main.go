package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/database"
	"github.com/kevin07696/checkout-callback-service/internal/adapters/kafka"
	adapterports "github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/adapters/postgres"
	"github.com/kevin07696/checkout-callback-service/internal/adapters/redis"
	"github.com/kevin07696/checkout-callback-service/internal/adapters/valitor"
	"github.com/kevin07696/checkout-callback-service/internal/config"
	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
	callbackHandler "github.com/kevin07696/checkout-callback-service/internal/handlers/callback"
	paymentHandler "github.com/kevin07696/checkout-callback-service/internal/handlers/payment"
	"github.com/kevin07696/checkout-callback-service/internal/middleware"
	callbackService "github.com/kevin07696/checkout-callback-service/internal/services/callback"
	orderService "github.com/kevin07696/checkout-callback-service/internal/services/order"
	paymentRequestService "github.com/kevin07696/checkout-callback-service/internal/services/payment_request"
	pkgmiddleware "github.com/kevin07696/checkout-callback-service/pkg/middleware"
	"github.com/kevin07696/checkout-callback-service/pkg/observability"
	"github.com/kevin07696/checkout-callback-service/pkg/shutdown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting checkout callback service",
		zap.String("environment", cfg.Environment),
		zap.Int("http_port", cfg.Server.HTTPPort),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)

	// Database
	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	dbCfg.StatementTimeout = cfg.Database.StatementTimeout

	dbAdapter, err := database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	shutdownMgr.RegisterNoErr("database", dbAdapter.Close)
	dbAdapter.StartPoolMonitoring(ctx, 30*time.Second)

	db := postgres.NewDBExecutor(dbAdapter.Pool())
	orderRepo := postgres.NewOrderRepository(db)
	basketRepo := postgres.NewBasketRepository(db)
	historyRepo := postgres.NewCallbackHistoryRepository(db)

	healthChecks := map[string]observability.Pinger{
		"database": observability.PingFunc(dbAdapter.HealthCheck),
	}

	// Order lock: in-process always, Redis on top when several replicas share callbacks
	var locker ports.OrderLocker = callbackService.NewKeyedLocker()
	if cfg.Redis.URL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		shutdownMgr.RegisterCloser("redis", redisClient)

		lockCfg := redis.DefaultOrderLockConfig()
		if cfg.Redis.KeyPrefix != "" {
			lockCfg.KeyPrefix = cfg.Redis.KeyPrefix
		}
		if cfg.Redis.LockTTL > 0 {
			lockCfg.TTL = cfg.Redis.LockTTL
		}
		redisLock := redis.NewOrderLock(redisClient, lockCfg, logger)
		locker = callbackService.NewChainLocker(locker, redisLock)
		healthChecks["redis"] = observability.PingFunc(redisLock.HealthCheck)

		logger.Info("Distributed order lock enabled", zap.String("key_prefix", lockCfg.KeyPrefix))
	}

	// Outcome events
	var publisher adapterports.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		outcomePublisher := kafka.NewOutcomePublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		shutdownMgr.RegisterCloser("kafka", outcomePublisher)
		publisher = outcomePublisher

		logger.Info("Order outcome events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		logger.Warn("KAFKA_BROKERS not set - order outcome events are disabled")
	}

	// Gateway merchant API
	secretManager, err := initSecretManager(ctx, cfg.Secrets, logger)
	if err != nil {
		logger.Fatal("Failed to initialize secret manager", zap.Error(err))
	}

	clientCfg := valitor.DefaultClientConfig(cfg.Gateway.BaseURL)
	if cfg.Gateway.CredentialsPath != "" {
		clientCfg.CredentialsPath = cfg.Gateway.CredentialsPath
	}
	if cfg.Gateway.Timeout > 0 {
		clientCfg.Timeout = cfg.Gateway.Timeout
	}
	clientCfg.MaxRetries = cfg.Gateway.MaxRetries
	clientCfg.InsecureSkipVerify = cfg.Gateway.InsecureSkipVerify

	breaker := valitor.NewCircuitBreaker(valitor.DefaultBreakerConfig())
	breakerStates := []string{
		valitor.BreakerClosed.String(),
		valitor.BreakerOpen.String(),
		valitor.BreakerHalfOpen.String(),
	}
	observability.SetGatewayBreakerState(valitor.BreakerClosed.String(), breakerStates...)
	breaker.OnStateChange(func(from, to valitor.BreakerState) {
		observability.SetGatewayBreakerState(to.String(), breakerStates...)
		logger.Warn("Gateway circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})

	gatewayClient := valitor.NewAPIClient(clientCfg, valitor.NewHTTPClient(clientCfg), secretManager, breaker, logger)

	terminals, err := config.LoadTerminals(cfg.Gateway.TerminalsFile)
	if err != nil {
		logger.Fatal("Failed to load terminal mapping",
			zap.String("path", cfg.Gateway.TerminalsFile),
			zap.Error(err),
		)
	}

	// Services
	orders := orderService.NewService(orderRepo, logger)
	parser := valitor.NewCallbackParser(cfg.Callback.OrderTokenKey)

	reconciler := callbackService.NewReconciler(callbackService.Dependencies{
		DB:        db,
		Orders:    orders,
		Baskets:   orderService.NewBasketRecoverer(basketRepo, logger),
		Updater:   callbackService.NewInstrumentUpdater(orderRepo, cfg.Callback.InstrumentPrefix, logger),
		Parser:    parser,
		Auth:      callbackService.NewAuthenticator(logger),
		Locker:    locker,
		Gateway:   gatewayClient,
		Publisher: publisher,
		History:   historyRepo,
	}, callbackService.Config{
		AllowedIPs:        cfg.Callback.AllowedIPs,
		Timeout:           cfg.Callback.ProcessingTimeout,
		SideEffectTimeout: cfg.Callback.SideEffectTimeout,
	}, logger)

	paymentRequests := paymentRequestService.NewService(orders, terminals, gatewayClient, paymentRequestService.Config{
		CallbackBaseURL: cfg.Gateway.CallbackBaseURL,
		Language:        cfg.Gateway.Language,
		PaymentType:     cfg.Gateway.PaymentType,
		TokenKey:        parser.TokenKey(),
	}, logger)

	// HTTP routes
	callbacks := callbackHandler.NewHandler(reconciler, logger)
	paymentRequestHdlr := paymentHandler.NewPaymentRequestHandler(paymentRequests, logger)

	gwMux := runtime.NewServeMux()
	// The mux tries the most recently registered pattern first, so the
	// static form route must come after the {outcome} wildcard.
	mustHandlePath(logger, gwMux, http.MethodPost, domain.CallbackRoutePrefix+"/{outcome}", callbacks.HandleCallback)
	mustHandlePath(logger, gwMux, http.MethodGet, domain.CallbackFormPath, callbacks.HandleForm)
	mustHandlePath(logger, gwMux, http.MethodPost, domain.CallbackFormPath, callbacks.HandleForm)
	mustHandlePath(logger, gwMux, http.MethodPost, paymentHandler.PaymentRequestPath, paymentRequestHdlr.HandleCreate)

	clientIP := middleware.NewClientIP(cfg.Server.TrustedProxies, logger)
	rateLimiter := pkgmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, middleware.ClientIPFromRequest, logger)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Environment == "development")
	inFlight := shutdown.NewInFlightTracker("http", logger)

	var handler http.Handler = gwMux
	handler = observability.HTTPMiddleware("api", handler)
	handler = inFlight.Middleware(handler)
	handler = securityHeaders.Middleware(handler)
	handler = rateLimiter.Middleware(handler)
	handler = clientIP.Middleware(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// Admin gRPC: health and reflection for grpcurl and orchestrators
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			observability.UnaryServerInterceptor(),
			loggingInterceptor(logger),
			recoveryInterceptor(logger),
		),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.AdminGRPCPort))
	if err != nil {
		logger.Fatal("Failed to listen for admin gRPC", zap.Int("port", cfg.Server.AdminGRPCPort), zap.Error(err))
	}

	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		observability.NewHealthChecker(healthChecks),
		logger,
	)

	// Shutdown runs in reverse: stop accepting, drain requests, stop servers,
	// then release the rate limiter and connections registered above.
	shutdownMgr.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)
	shutdownMgr.Register("metrics_server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})
	shutdownMgr.Register("admin_grpc", func(ctx context.Context) error {
		return stopGRPC(ctx, grpcServer)
	})
	shutdownMgr.RegisterHTTPServer("http_server", httpServer)
	shutdownMgr.Register("http_in_flight", inFlight.Shutdown)
	shutdownMgr.RegisterNoErr("health_status", healthServer.Shutdown)

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("Admin gRPC server listening", zap.Int("port", cfg.Server.AdminGRPCPort))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("admin grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("callbacks", domain.CallbackRoutePrefix+"/{outcome}"),
			zap.String("form", domain.CallbackFormPath),
			zap.String("payment_requests", paymentHandler.PaymentRequestPath),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http: %w", err)
		}
	}()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	waitCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	go func() {
		select {
		case err := <-serveErr:
			logger.Error("Server failed", zap.Error(err))
			stop(err)
		case <-waitCtx.Done():
		}
	}()

	if errs := shutdownMgr.WaitForShutdown(waitCtx); len(errs) > 0 {
		os.Exit(1)
	}
	logger.Info("Checkout callback service stopped")
}

func initLogger(cfg config.LoggerConfig) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func mustHandlePath(logger *zap.Logger, mux *runtime.ServeMux, method, pattern string, h runtime.HandlerFunc) {
	if err := mux.HandlePath(method, pattern, h); err != nil {
		logger.Fatal("Failed to register route",
			zap.String("method", method),
			zap.String("pattern", pattern),
			zap.Error(err),
		)
	}
}

// stopGRPC drains the admin server and forces it down when ctx expires
func stopGRPC(ctx context.Context, server *grpc.Server) error {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		server.Stop()
		return ctx.Err()
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		if err != nil {
			logger.Error("gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		} else {
			logger.Debug("gRPC request",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
			)
		}

		return resp, err
	}
}

func recoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panic",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
				)
				err = fmt.Errorf("internal error")
			}
		}()

		return handler(ctx, req)
	}
}
