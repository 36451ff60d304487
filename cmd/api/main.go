package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ankicollab/api/internal/app"
	"ankicollab/api/internal/authpw"
	"ankicollab/api/internal/config"
	"ankicollab/api/internal/email"
	"ankicollab/api/internal/export"
	"ankicollab/api/internal/history"
	"ankicollab/api/internal/media"
	"ankicollab/api/internal/review"
	"ankicollab/api/internal/sanitize"
	"ankicollab/api/internal/search"
	"ankicollab/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	pg := store.NewPostgresStore(db)

	// Media refresh queue. Empty REDIS_URL falls back to synchronous
	// refresh inside the request.
	refresher := media.NewRefresher(pg)
	var refresh review.Refresher
	if strings.TrimSpace(cfg.RedisURL) != "" {
		queue, err := media.NewQueue(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer queue.Close()

		workerCtx, stopWorker := context.WithCancel(ctx)
		defer stopWorker()
		go media.NewWorker(queue, refresher).Run(workerCtx)

		refresh = func(noteIDs []int64) {
			enqueueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := queue.Enqueue(enqueueCtx, noteIDs); err != nil {
				log.Printf("media: enqueue refresh: %v", err)
			}
		}
	} else {
		log.Printf("Redis not configured, refreshing media references inline")
		refresh = func(noteIDs []int64) {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := refresher.RefreshNotes(refreshCtx, noteIDs); err != nil {
				log.Printf("media: refresh notes: %v", err)
			}
		}
	}

	begin := func(ctx context.Context) (review.Tx, error) {
		return pg.BeginReviewTx(ctx)
	}
	engine := review.NewEngine(begin, pg.Review(), sanitize.Clean, refresh)
	projector := history.NewProjector(pg, sanitize.Clean)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
		searchService.ReindexAllFromPG(ctx)
	}

	deps := app.ServiceDeps{
		Users:     pg,
		Engine:    engine,
		Projector: projector,
		SignIn:    authpw.NewService(pg),
		Search:    searchService,
		Exporter:  export.NewService(pg, sanitize.Clean),
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err := media.NewStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		deps.Blobs = blobs
	} else {
		log.Printf("MinIO not configured, media downloads disabled")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		deps.Mail = mailer
	} else {
		log.Printf("SMTP not configured, review notifications disabled")
	}

	service := app.NewService(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("AnkiCollab API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
