// Command inboxstub serves an in-memory messaging backend seeded with demo
// accounts, for local development against inboxd.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/inbox/internal/fakeapi"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":5000", "listen address")
	secret := flag.String("secret", "inbox-dev-secret", "token signing secret")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	b := fakeapi.NewBackend()
	demo, err := fakeapi.Seed(b)
	if err != nil {
		logger.Fatal("seed backend", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           fakeapi.NewServer(b, *secret, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("inboxstub listening on %s/api\n", *addr)
	for _, u := range []struct{ name, email string }{
		{demo.Alice.DisplayName(), demo.Alice.Email},
		{demo.Bob.DisplayName(), demo.Bob.Email},
		{demo.Carol.DisplayName(), demo.Carol.Email},
	} {
		fmt.Printf("  %-14s %s / %s\n", u.name, u.email, fakeapi.DemoPassword)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}
