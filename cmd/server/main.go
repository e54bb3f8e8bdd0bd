package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"turbolearn/internal/analytics"
	"turbolearn/internal/auth"
	"turbolearn/internal/chat"
	"turbolearn/internal/config"
	"turbolearn/internal/llm"
	"turbolearn/internal/ratelimit"
	"turbolearn/internal/scheduler"
	"turbolearn/internal/server"
	"turbolearn/internal/storage"
	"turbolearn/internal/store"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	authSvc := auth.New(st)
	if err := authSvc.EnsureAdmin(context.Background(), cfg.AdminUserID, time.Now()); err != nil {
		log.Printf("failed to bootstrap admin %s: %v", cfg.AdminUserID, err)
	}

	counters, err := ratelimit.NewBoltCounters(st.DB())
	if err != nil {
		log.Fatalf("failed to init rate limit store: %v", err)
	}
	limiter := ratelimit.New(counters, cfg.RateLimitMax, cfg.RateLimitWindow)

	var rec storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			rec = fr
		}
	}

	factory := llm.NewFactory(cfg, readSystemPrompt(cfg.SystemPromptPath))
	orch := chat.New(authSvc, limiter, st, factory, rec, cfg.StreamTimeout)

	sched := scheduler.New()
	if rec != nil {
		sched.SetReportFunction(func(ctx context.Context) error {
			events, err := rec.LoadInteractions()
			if err != nil {
				return err
			}
			stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC())
			log.Print(analytics.FormatReport(stats))
			return nil
		})
	}
	sched.SetPruneFunction(func(ctx context.Context) error {
		removed, err := counters.Prune(time.Now().Add(-24 * time.Hour))
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Printf("pruned %d stale rate counters", removed)
		}
		return nil
	})
	if err := sched.Start(); err != nil {
		log.Printf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv := server.New(authSvc, orch, st, rec, cfg.Port)

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-done
	log.Println("shutting down")
	if err := srv.Stop(); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Printf("failed to read system prompt %s, using default: %v", path, err)
		return ""
	}
	return strings.TrimSpace(string(b))
}
