// Command bookql runs the book GraphQL API server.  Settings come from environment
// variables (or a .env file): HTTP_PORT, HTTP_HOST, GRAPHQL_PATH, SHUTDOWN_TIMEOUT
// GRAPHQL_INTROSPECTION, WS_INIT_TIMEOUT, WS_PING_FREQUENCY and WS_PONG_TIMEOUT.
package main

import (
	"context"
	"log"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrewwphillips/bookql"
	"github.com/andrewwphillips/bookql/internal/config"
	"github.com/andrewwphillips/bookql/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("💀 Error %v", err)
		stop()
		os.Exit(1)
	}
}

// run starts the server and blocks until ctx is cancelled and the server has shut down
func run(ctx context.Context) error {
	srv, url, err := start()
	if err != nil {
		return fmt.Errorf("starting the server: %w", err)
	}
	log.Printf("🚀 Server started at %s", url)

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("stopping the server: %w", err)
	}
	return nil
}

// start configures the server and binds its port, returning the server and the URL for queries
func start() (*server.Server, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}

	h, err := bookql.New(
		bookql.NoIntrospection(!cfg.Introspection),
		bookql.InitialTimeout(cfg.WSInitTimeout),
		bookql.PingFrequency(cfg.WSPingFrequency),
		bookql.PongTimeout(cfg.WSPongTimeout),
	)
	if err != nil {
		return nil, "", err
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h)

	srv := server.New(mux, cfg.ShutdownTimeout)
	if err := srv.Listen(cfg.Addr()); err != nil {
		return nil, "", err
	}
	return srv, cfg.URL(), nil
}
