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

	"conarrator/api/internal/app"
	"conarrator/api/internal/assist"
	"conarrator/api/internal/bus"
	"conarrator/api/internal/call"
	"conarrator/api/internal/collab"
	"conarrator/api/internal/config"
	"conarrator/api/internal/export"
	"conarrator/api/internal/history"
	"conarrator/api/internal/search"
	"conarrator/api/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		log.Fatalf("failed to create export dir: %v", err)
	}

	snapshots, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("snapshot store failed: %v", err)
	}
	defer snapshots.Close()

	eventBus, err := bus.NewRedisBus(cfg.RedisURL, cfg.Channel)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer eventBus.Close()

	store := collab.NewStore(eventBus, snapshots)
	store.Start(ctx)
	stopSnapshots := collab.AttachAutoSnapshot(store, snapshots)
	defer stopSnapshots()

	var generator assist.Generator
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		generator = assist.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AssistTimeout)
	} else {
		log.Printf("GEMINI_API_KEY not set, AI assistance disabled")
		generator = assist.Static{}
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemoryScan(store.State))

	var journal *history.Journal
	if cfg.HistoryEnabled {
		journal = history.New(cfg.HistoryDir)
	}

	calls := call.NewClient(func() call.Session {
		return call.NewLocalSession("")
	})
	rooms := call.NewRoomProvisioner(cfg.DailyAPIKey, cfg.DailyAPIURL, cfg.DailyDomain)

	service := app.NewService(store, generator, calls, rooms, searchService, export.NewService(), journal, cfg.HistoryWindow, cfg.ExportDir)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, eventBus.Ping)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Co-Narrator API listening on %s", cfg.Addr)
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
