package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"majorcompass/internal/cache"
	"majorcompass/internal/catalog"
	"majorcompass/internal/config"
	"majorcompass/internal/identity"
	"majorcompass/internal/logger"
	"majorcompass/internal/metrics"
	"majorcompass/internal/repository"
	"majorcompass/internal/service"
	"majorcompass/internal/transport/rest"
	"majorcompass/internal/transport/rest/middleware"
	"majorcompass/internal/transport/ws"
)

var rootCmd = &cobra.Command{
	Use:   "majorcompass-server",
	Short: "Major Compass assessment API",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		return run(path)
	},
	SilenceUsage: true,
}

var hashCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for auth.admin_password_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := service.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml)")
	rootCmd.AddCommand(hashCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.InitLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	logger.Log.Info("catalog loaded",
		zap.Int("questions", len(cat.Questions)),
		zap.Int("items", cat.ItemCount()),
		zap.Int("clusters", len(cat.Clusters)),
	)

	// MongoDB is the primary result store. The service still starts when it
	// is unreachable; results then go to Redis until it comes back.
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	mongoClient, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetServerSelectionTimeout(cfg.Mongo.Timeout))
	cancel()
	if err != nil {
		return fmt.Errorf("failed to configure MongoDB client: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		logger.Log.Warn("MongoDB unreachable, results will use the local store", zap.Error(err))
	} else {
		logger.Log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	}
	cancel()
	db := mongoClient.Database(cfg.Mongo.Database)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	logger.Log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	metrics.Init()

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	defer wsHub.Close()

	// Initialize repositories
	resultRepo := repository.NewResultRepo(db)
	indexCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	resultRepo.EnsureIndexes(indexCtx)
	cancel()

	// Initialize caches
	resultCache := cache.NewResultCache(rdb, cfg.Results.LocalIndexCap)
	snapshotCache := cache.NewSnapshotCache(rdb, cfg.Survey.SnapshotTTL)
	hollandCache := cache.NewHollandCache(rdb)
	dashboardCache := cache.NewDashboardCache(rdb, cfg.Results.DashboardCacheTTL)

	// Initialize services
	authSvc := service.NewAuthService(cfg.Auth)
	resultSvc := service.NewResultService(resultRepo, resultCache, hollandCache, dashboardCache, cfg.Results.CodeAttempts)
	sessionSvc := service.NewSessionService(cat, resultSvc, snapshotCache, cfg.Survey, cfg.Results.RecommendCount)
	dashboardSvc := service.NewDashboardService(resultSvc, hollandCache, dashboardCache, cfg.Results.ListMax)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	resultSvc.SetBroadcaster(wsHub)
	sessionSvc.SetBroadcaster(wsHub)

	proxies, err := identity.NewProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid server.trusted_proxies: %w", err)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, proxies)

	container := &rest.Container{
		AuthService:      authSvc,
		SessionService:   sessionSvc,
		ResultService:    resultSvc,
		DashboardService: dashboardSvc,
		Catalog:          cat,
		Decoder:          identity.NewDecoder(cfg.Survey.HandoffKey),
		Proxies:          proxies,
		RateLimiter:      limiter,
		WSHub:            wsHub,
		DeviceSalt:       cfg.Survey.DeviceSalt,
		ListMax:          cfg.Results.ListMax,
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		Checks: map[string]rest.Pinger{
			"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      rest.NewRouter(container),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	workersDone := make(chan struct{}, 2)
	go func() {
		sessionSvc.Run(ctx)
		workersDone <- struct{}{}
	}()
	go func() {
		limiter.Run(ctx)
		workersDone <- struct{}{}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log.Info("shutting down server")
	case runErr = <-serveErr:
		stop()
		logger.Log.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server forced to shutdown", zap.Error(err))
	}

	// session snapshots are flushed by Run once ctx is cancelled
	for i := 0; i < 2; i++ {
		select {
		case <-workersDone:
		case <-shutdownCtx.Done():
			logger.Log.Warn("background workers did not stop in time")
			i = 2
		}
	}

	logger.Log.Info("server exited")
	return runErr
}
