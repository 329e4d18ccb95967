package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"collageAPI/handlers"
	"collageAPI/internal/asset"
	"collageAPI/internal/config"
	"collageAPI/internal/history"
	"collageAPI/internal/storage"
	"collageAPI/internal/workers"
	"collageAPI/middleware"
	"collageAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	config.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		log.Info("Closing database connection pool...")
		dbPool.Close()
	}()

	if err := storage.EnsureSchema(ctx, dbPool); err != nil {
		log.Fatal(err)
	}

	table := asset.DefaultTable()
	if cfg.AssetTable != "" {
		if table, err = asset.LoadTable(cfg.AssetTable); err != nil {
			log.Fatal(err)
		}
	}
	codec := history.NewCodec(table)
	loader := asset.NewLoader(os.DirFS(cfg.AssetsDir), table)

	shareRepo := storage.NewShareRepository(dbPool)
	shareService := services.NewShareService(shareRepo, codec, cfg.PublicBaseURL, cfg.ShareTTL)
	historyService := services.NewHistoryService(func(owner string) storage.Store {
		return storage.NewPostgresStore(dbPool, owner)
	}, codec)
	renderService, err := services.NewRenderService(loader, codec)
	if err != nil {
		log.Fatal(err)
	}

	middleware.InitPrometheus(services.ShareCollectors()...)

	shareHandler := handlers.NewShareHandler(shareService)
	historyHandler := handlers.NewHistoryHandler(historyService)
	assetHandler := handlers.NewAssetHandler(table)
	renderHandler := handlers.NewRenderHandler(renderService)

	generalLimiter := middleware.NewRateLimiter("general", 5, 30).TrustForwardedFor(cfg.TrustProxy)
	shareLimiter := middleware.NewRateLimiter("share", rate.Every(10*time.Second), 3).TrustForwardedFor(cfg.TrustProxy)
	go generalLimiter.CleanupVisitors(ctx)
	go shareLimiter.CleanupVisitors(ctx)

	cleanupDone := workers.StartShareCleanup(ctx, shareRepo, time.Hour)

	r := mux.NewRouter()
	r.Use(generalLimiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	fs := http.FileServer(http.Dir(cfg.AssetsDir))
	r.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", fs))
	log.Infof("Serving static files from %s at /assets/", cfg.AssetsDir)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "collage-api"}`))
	}).Methods("GET")

	r.HandleFunc("/s/{id}", shareHandler.SharePage).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/assets", assetHandler.GetAssets).Methods("GET")
	api.HandleFunc("/render", renderHandler.RenderPreview).Methods("POST")
	api.HandleFunc("/share/{id}", shareHandler.GetShare).Methods("GET")
	api.HandleFunc("/share/{id}/image", shareHandler.GetShareImage).Methods("GET")
	createShare := http.Handler(http.HandlerFunc(shareHandler.CreateShare))

	if cfg.ClerkSecretKey != "" {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Info("Clerk initialized successfully")

		createShare = middleware.OptionalAuthMiddleware(createShare)

		protected := api.PathPrefix("/me").Subrouter()
		protected.Use(middleware.ClerkAuthMiddleware)

		protected.HandleFunc("/history", historyHandler.GetHistory).Methods("GET")
		protected.HandleFunc("/history", historyHandler.SaveHistory).Methods("PUT")
		protected.HandleFunc("/history", historyHandler.DeleteHistory).Methods("DELETE")
	} else {
		log.Warn("CLERK_SECRET_KEY not set, per-user history is disabled")
	}

	api.Handle("/share", shareLimiter.Middleware(createShare)).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length", "X-Skipped-Entries"}),
	)

	server := http.Server{
		Addr:         cfg.Addr(),
		Handler:      corsHandler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}
	<-cleanupDone

	log.Info("Server shutdown complete")
}

func connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, err
	}

	log.Info("Successfully connected to database")
	return dbPool, nil
}
