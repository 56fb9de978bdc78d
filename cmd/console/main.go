package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/internal/app"
	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/logger"
)

func main() {
	// Logs go to stderr so the panel owns stdout
	cfg, log, err := config.InitializeWithOutput(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	controller, err := app.NewController(cfg, log)
	if err != nil {
		log.Fatal("Failed to create tracking controller", zap.Error(err))
	}
	adapter := view.NewAdapter(controller, log, view.NewConsoleRenderer(os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := controller.Run(ctx); err != nil {
			log.Error("Tracking controller stopped", zap.Error(err))
		}
	}()
	go adapter.Run(ctx)

	go readCommands(os.Stdin, adapter, cancel, log)

	<-ctx.Done()
	<-done
}

// readCommands toggles on "t" and quits on "q" or end of input
func readCommands(in io.Reader, adapter *view.Adapter, quit context.CancelFunc, log *logger.Logger) {
	defer quit()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "t":
			if _, err := adapter.Toggle(); err != nil {
				log.Warn("Toggle failed", zap.Error(err))
				return
			}
		case "q":
			return
		}
	}
}
