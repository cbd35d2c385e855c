package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"modpackBack/internal/config"
	"modpackBack/internal/explore"
	"modpackBack/utils"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig(config.Path())
	logger := utils.NewLogger(cfg.Log.Level, os.Stdout)
	if envErr != nil {
		logger.Warnf("Warning: Error loading .env file: %v", envErr)
	}
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Address
	} else {
		port = ":" + port
	}

	addr := flag.String("addr", port, "HTTP network address")
	flag.Parse()

	db, err := openDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	exploreCfg, err := explore.LoadExploreConfig()
	if err != nil {
		logger.Fatalf("explore config: %v", err)
	}

	tokens, err := utils.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatalf("jwt: %v", err)
	}

	app := initializeApp(logger, tokens, &explore.ExploreDeps{
		DB:       db,
		DBDriver: cfg.Database.Driver,
		RDB:      rdb,
		Logger:   logger,
		Config:   exploreCfg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, err := app.routes()
	if err != nil {
		logger.Fatalf("routes: %v", err)
	}
	if err := explore.StartExploreWorkers(ctx, app.explore); err != nil {
		logger.Fatalf("explore workers: %v", err)
	}
	startPaymentExpirer(ctx, app.explore, logger)

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:         *addr,
		ErrorLog:     newStdLogger(logger),
		Handler:      addSecurityHeaders(c.Handler(handler)),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting server on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal(err)
	}
}
