package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/corebrain/go-session-service/backend"
	"github.com/corebrain/go-session-service/entitlement"
	"github.com/corebrain/go-session-service/identity"
	"github.com/corebrain/go-session-service/internal/config"
	"github.com/corebrain/go-session-service/server"
	"github.com/corebrain/go-session-service/session"
	"github.com/corebrain/go-session-service/session/store"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	logger := newLogger(c)
	displayAppname(c.GetAppName())

	srv, err := buildServer(c, logger)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config, logger zerolog.Logger) (*server.Server, error) {
	identityFacade, err := identity.NewFacade(c, logger)
	if err != nil {
		return nil, fmt.Errorf("identity.NewFacade: %w", err)
	}

	backendClient, err := backend.New(c)
	if err != nil {
		return nil, fmt.Errorf("backend.New: %w", err)
	}

	sessionStore, err := buildStore(c)
	if err != nil {
		return nil, fmt.Errorf("buildStore: %w", err)
	}

	entitlements, err := entitlement.NewProvider(backendClient, entitlement.DefaultCatalog(), logger)
	if err != nil {
		return nil, fmt.Errorf("entitlement.NewProvider: %w", err)
	}

	sessions, err := session.NewManager(session.Deps{
		Identity: identityFacade,
		Backend:  backendClient,
		Store:    sessionStore,
	}, c, logger,
		session.WithDestroyHook(entitlements.Clear),
		session.WithBridgeHook(server.ObserveBridge),
	)
	if err != nil {
		return nil, fmt.Errorf("session.NewManager: %w", err)
	}

	return server.New(c, logger, sessions, entitlements)
}

// buildStore selects Redis when configured and falls back to the in-memory
// store, with at-rest encryption when a store key is set.
func buildStore(c config.Config) (store.Repo, error) {
	addr := c.GetRedisAddr()
	if addr == "" {
		return store.NewInMemoryRepo(), nil
	}

	options := []store.RedisOption{}
	if key := c.GetStoreEncryptionKey(); key != "" {
		codec, err := store.NewAEADCodec(key)
		if err != nil {
			return nil, fmt.Errorf("store.NewAEADCodec: %w", err)
		}
		options = append(options, store.WithCodec(codec))
	}
	return store.NewRedisRepo(redis.NewClient(&redis.Options{Addr: addr}), options...)
}

func newLogger(c config.Config) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
