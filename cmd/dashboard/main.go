package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pmSchedule/internal/app"
	"pmSchedule/internal/config"
	"pmSchedule/internal/logger"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := config.NewFlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	mcpMode, _ := fs.GetBool("mcp")

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("конфигурация: %w", err)
	}

	// в режиме MCP stdout занят протоколом
	if mcpMode {
		err = logger.InitStderr(cfg.Logging.Development)
	} else {
		err = logger.Init(cfg.Logging.Development)
	}
	if err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	application, err := app.New(cfg).Init(ctx)
	if err != nil {
		logger.Error("Ошибка инициализации приложения", err)
		logger.Sync()
		return err
	}
	defer application.Shutdown()

	if mcpMode {
		return application.RunMCP(ctx, os.Stdin, os.Stdout)
	}
	return application.Run(ctx)
}
