package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"camera-streamer/internal/infrastructure/camera"
	"camera-streamer/internal/infrastructure/logger"
	"camera-streamer/internal/infrastructure/streaming"
	"camera-streamer/internal/infrastructure/transcode"
	"camera-streamer/internal/presentation/cli"
)

func main() {
	if err := cli.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка чтения .env: %v\n", err)
		os.Exit(2)
	}

	// Парсим флаги
	config, err := cli.ParseArgs(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(2)
	}

	// Инициализируем логгер
	log := logger.New(os.Stderr, config.LogFormat, config.Stream.Debug)

	// Инициализируем инфраструктурные компоненты
	deps := cli.Dependencies{
		Cameras:    camera.NewManager(log.WithComponent("camera")),
		Transcoder: transcode.NewJPEGTranscoder(),
		Transport: streaming.NewWebSocketTransport(
			log.WithComponent("transport"),
			config.Stream.ConnectTimeout,
			config.Stream.SendTimeout,
		),
	}

	cliApp := cli.NewCLI(deps, log, os.Stdout)
	cliApp.SetConfig(config)

	// Первый сигнал останавливает цикл между кадрами, второй завершает процесс
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := cliApp.Run(ctx); err != nil {
		log.Error("Ошибка: %v", err)
		os.Exit(1)
	}
}
