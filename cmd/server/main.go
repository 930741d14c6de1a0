package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tgo/mindvault/internal/config"
	"github.com/tgo/mindvault/internal/database"
	"github.com/tgo/mindvault/internal/handler"
	"github.com/tgo/mindvault/internal/pkg/redis"
	"github.com/tgo/mindvault/internal/service"
	"github.com/tgo/mindvault/internal/task"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Permission cache is optional; without Redis the resolver hits the DB.
	var cache service.PrivilegeCache
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		cache = service.NewRedisPrivilegeCache(redisClient, 10*time.Minute)
	}

	svcs, err := handler.Build(cfg, db, cache)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}

	// Requeue documents left pending by the previous run.
	if err := svcs.Coordinator.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start ingestion coordinator: %v", err)
	}

	scheduler := task.NewScheduler()
	scheduler.Register(svcs.Sweeper)
	scheduler.Register(svcs.Requeuer)
	scheduler.Start(cfg.SweepInterval())

	r := handler.SetupRouter(cfg, db, svcs)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("MindVault Knowledge Service starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	scheduler.Stop()
	svcs.Coordinator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
