package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edifica.org/internal/auth"
	"edifica.org/internal/building"
	"edifica.org/internal/config"
	"edifica.org/internal/httpapi"
	"edifica.org/internal/obs"
	"edifica.org/internal/store/pg"
	"edifica.org/internal/unit"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

// logMailer writes reset tokens to the structured log instead of sending
// mail. Swap for a real delivery channel when one exists.
type logMailer struct{}

func (logMailer) SendPasswordReset(_ context.Context, email, token string) error {
	obs.LogRequest(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   "password_reset_issued",
		"email": email,
		// Logged so operators can hand the token over out of band.
		"token": token,
	})
	return nil
}

func main() {
	configPath := flag.String("config", os.Getenv("EDIFICA_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	codec, err := auth.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, nil)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	authSvc, err := auth.NewService(store, codec,
		auth.WithResetTTL(cfg.Auth.ResetTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithMailer(logMailer{}),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	buildingSvc := building.NewService(store.Buildings(), store.Identities())
	unitSvc := unit.NewService(store.Units(), store.Buildings(), store.Identities())

	api := httpapi.New(authSvc, buildingSvc, unitSvc,
		httpapi.ReadyProbe{DB: store.DB()}, version,
		httpapi.Options{
			MaxBodyBytes:    cfg.Server.MaxBodyBytes,
			RateLimitPerSec: cfg.Server.RateLimitPerSec,
			RateLimitBurst:  cfg.Server.RateLimitBurst,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
		})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting edifica-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
