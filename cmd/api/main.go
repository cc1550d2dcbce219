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

	botservice "github.com/parleyhq/parley/internal/bot"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/handler"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/socket"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := session.NewStore()
	sock := socket.NewRegistry(store, cfg.Chat.MaxMessageLength)
	sessions := orchestrator.NewSessionRegistry(sock)

	bots := botservice.NewRegistry()
	registerProviders(bots, cfg)

	router := handler.NewRouter(store, bots, sessions, sock)

	startServer(ctx, cfg.Server, router)

	sessions.Clear()
}

// registerProviders wires a factory for every backend with credentials.
func registerProviders(bots *botservice.Registry, cfg *config.Config) {
	if cfg.OpenAI.Enabled() {
		openAICfg := cfg.OpenAI
		bots.RegisterProvider("openai", func(ctx context.Context) (provider.Provider, error) {
			return provider.NewOpenAI(ctx, provider.OpenAIOptions{
				APIKey:       openAICfg.APIKey,
				BaseURL:      openAICfg.BaseURL,
				DefaultModel: openAICfg.Model,
				Timeout:      openAICfg.Timeout,
			})
		})
		log.Println("OpenAI provider registered")
	} else {
		log.Println("OpenAI credentials not configured, skipping provider")
	}

	if cfg.Ark.Enabled() {
		arkCfg := cfg.Ark
		bots.RegisterProvider("ark", func(ctx context.Context) (provider.Provider, error) {
			return provider.NewArk(ctx, provider.ArkOptions{
				APIKey:       arkCfg.APIKey,
				AccessKey:    arkCfg.AccessKey,
				SecretKey:    arkCfg.SecretKey,
				BaseURL:      arkCfg.BaseURL,
				Region:       arkCfg.Region,
				DefaultModel: arkCfg.Model,
				Timeout:      arkCfg.Timeout,
			})
		})
		log.Println("Ark provider registered")
	} else {
		log.Println("Ark credentials not configured, skipping provider")
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Parley backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
