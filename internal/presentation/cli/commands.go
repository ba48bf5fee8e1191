package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"

	"camera-streamer/internal/application"
)

// Dependencies инфраструктура, которую CLI связывает в конвейер
type Dependencies struct {
	Cameras    application.CameraManager
	Transcoder application.FrameTranscoder
	Transport  application.StreamTransport
}

// CLI представляет CLI интерфейс приложения
type CLI struct {
	deps   Dependencies
	logger application.Logger
	config *Config
	out    io.Writer
}

// NewCLI создает новый CLI интерфейс
func NewCLI(deps Dependencies, logger application.Logger, out io.Writer) *CLI {
	return &CLI{
		deps:   deps,
		logger: logger,
		out:    out,
	}
}

// SetConfig устанавливает конфигурацию напрямую
func (c *CLI) SetConfig(config *Config) {
	c.config = config
}

// LoadEnv загружает переменные из .env, если файл есть
func LoadEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Run запускает CLI. Возвращается только при фатальной ошибке или отмене ctx.
func (c *CLI) Run(ctx context.Context) error {
	if c.config == nil {
		return errors.New("конфигурация не задана")
	}

	// Если нужно вывести список устройств
	if c.config.ListDevices {
		return c.listDevices()
	}

	stream := c.config.Stream
	source, err := c.deps.Cameras.OpenCamera(stream)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			c.logger.Error("Ошибка закрытия камеры: %v", err)
		}
	}()

	var transcoder application.FrameTranscoder
	if stream.Reencode {
		transcoder = c.deps.Transcoder
		c.logger.Info("Перекодирование в %s, качество %d", stream.OutputResolution, stream.OutputQuality)
	}

	loop, err := application.NewStreamingLoop(stream, source, transcoder, c.deps.Transport, c.logger)
	if err != nil {
		return err
	}

	err = loop.Run(ctx)

	stats := loop.Stats()
	c.logger.WithFields(application.Fields{
		"captured":          stats.Captured,
		"sent":              stats.Sent,
		"transcode_skipped": stats.TranscodeSkipped,
		"send_skipped":      stats.SendSkipped,
		"reconnects":        stats.Reconnects,
		"connect_failures":  stats.ConnectFailures,
		"bytes_sent":        stats.BytesSent,
	}).Info("Стриминг завершен")

	return err
}

// listDevices выводит список доступных устройств
func (c *CLI) listDevices() error {
	devices, err := c.deps.Cameras.ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Доступные устройства:")
	for i, device := range devices {
		fmt.Fprintf(c.out, "[%d] %s (%s) %s\n", i, device.Label, device.Kind, device.ID)
	}

	return nil
}
