package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camera-streamer/internal/collector"
	"camera-streamer/internal/infrastructure/logger"
)

func main() {
	// Парсинг флагов командной строки
	addr := flag.String("addr", ":11572", "адрес для запуска сервера")
	path := flag.String("path", "/stream", "путь, по которому принимаются потоки")
	debug := flag.Bool("debug", false, "включить отладочные сообщения")
	logFormat := flag.String("log-format", logger.FormatText, "формат логов: text или json")
	flag.Parse()

	log := logger.New(os.Stderr, *logFormat, *debug)
	c := collector.New(log.WithComponent("collector"), nil)

	mux := http.NewServeMux()
	mux.Handle(*path, c)
	mux.Handle("/", c.StatusHandler())

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка остановки сервера: %v", err)
		}
	}()

	// Запускаем HTTP-сервер
	log.Info("Запуск сервера на %s, потоки принимаются по пути %s", *addr, *path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Ошибка сервера: %v", err)
		os.Exit(1)
	}
}
