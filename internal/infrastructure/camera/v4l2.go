package camera

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blackjack/webcam"

	"camera-streamer/internal/application"
	"camera-streamer/internal/domain"
)

const (
	// readTimeoutSec сколько ждать кадр за один вызов WaitForFrame
	readTimeoutSec = 5
	// bufferCount буферов драйвера; меньше буферов - меньше задержка
	bufferCount = 4
)

// device подмножество методов *webcam.Webcam, которым пользуется источник
type device interface {
	GetSupportedFormats() map[webcam.PixelFormat]string
	SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error)
	SetFramerate(fps float32) error
	SetBufferCount(count uint32) error
	StartStreaming() error
	StopStreaming() error
	WaitForFrame(timeout uint32) error
	ReadFrame() ([]byte, error)
	Close() error
}

func openWebcam(path string) (device, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// V4L2Source источник кадров MJPEG с устройства V4L2
type V4L2Source struct {
	dev            device
	path           string
	format         domain.PixelFormat
	captureTimeout time.Duration
	number         uint64
	logger         application.Logger
	now            func() time.Time
}

// openV4L2 открывает и настраивает устройство. Если драйвер не может отдавать
// кадры в нужном формате, открытие завершается ошибкой сразу.
func openV4L2(open func(string) (device, error), config domain.StreamConfig, logger application.Logger) (*V4L2Source, error) {
	fail := func(err error) error {
		return &domain.DeviceError{Device: config.Device, Err: err}
	}

	dev, err := open(config.Device)
	if err != nil {
		return nil, fail(err)
	}

	source := &V4L2Source{
		dev:            dev,
		path:           config.Device,
		format:         config.PixelFormat,
		captureTimeout: config.CaptureTimeout,
		logger:         logger,
		now:            time.Now,
	}
	if err := source.configure(config); err != nil {
		dev.Close()
		return nil, fail(err)
	}

	logger.Info("Камера %s запущена: %s %s @ %d fps", config.Device, config.PixelFormat, config.InputResolution, config.FrameRate)
	return source, nil
}

func (s *V4L2Source) configure(config domain.StreamConfig) error {
	want := webcam.PixelFormat(config.PixelFormat.FourCC())

	formats := s.dev.GetSupportedFormats()
	if _, ok := formats[want]; !ok {
		return fmt.Errorf("формат %s не поддерживается, доступны: %s", config.PixelFormat, describeFormats(formats))
	}

	got, width, height, err := s.dev.SetImageFormat(want, config.InputResolution.Width, config.InputResolution.Height)
	if err != nil {
		return fmt.Errorf("установка формата %s %s: %w", config.PixelFormat, config.InputResolution, err)
	}
	if got != want {
		return &domain.FormatError{Want: config.PixelFormat, Got: domain.PixelFormatFromFourCC(uint32(got))}
	}
	actual := domain.Resolution{Width: width, Height: height}
	if actual != config.InputResolution {
		s.logger.Warn("Драйвер выбрал разрешение %s вместо %s", actual, config.InputResolution)
	}

	if err := s.dev.SetFramerate(float32(config.FrameRate)); err != nil {
		return fmt.Errorf("установка частоты кадров %d: %w", config.FrameRate, err)
	}
	if err := s.dev.SetBufferCount(bufferCount); err != nil {
		return fmt.Errorf("установка числа буферов: %w", err)
	}
	if err := s.dev.StartStreaming(); err != nil {
		return fmt.Errorf("запуск захвата: %w", err)
	}
	return nil
}

// Capture блокируется до следующего кадра. Пустые чтения повторяются;
// при ненулевом captureTimeout его превышение считается ошибкой захвата.
func (s *V4L2Source) Capture() (*domain.Frame, error) {
	var deadline time.Time
	if s.captureTimeout > 0 {
		deadline = s.now().Add(s.captureTimeout)
	}

	for {
		wait := uint32(readTimeoutSec)
		if !deadline.IsZero() {
			remaining := deadline.Sub(s.now())
			if remaining <= 0 {
				return nil, s.captureError(fmt.Errorf("нет кадра дольше %s", s.captureTimeout))
			}
			if secs := uint32((remaining + time.Second - 1) / time.Second); secs < wait {
				wait = secs
			}
		}

		err := s.dev.WaitForFrame(wait)
		var timeout *webcam.Timeout
		switch {
		case err == nil:
		case errors.As(err, &timeout):
			continue
		default:
			return nil, s.captureError(err)
		}

		buf, err := s.dev.ReadFrame()
		if err != nil {
			return nil, s.captureError(err)
		}
		if len(buf) == 0 {
			continue
		}

		// Буфер принадлежит драйверу и будет перезаписан
		data := make([]byte, len(buf))
		copy(data, buf)

		s.number++
		return &domain.Frame{
			Data:       data,
			Format:     s.format,
			Number:     s.number,
			CapturedAt: s.now(),
		}, nil
	}
}

func (s *V4L2Source) captureError(err error) error {
	return &domain.CaptureError{Device: s.path, Err: err}
}

// Close останавливает захват и освобождает устройство
func (s *V4L2Source) Close() error {
	stopErr := s.dev.StopStreaming()
	closeErr := s.dev.Close()
	if closeErr != nil {
		return closeErr
	}
	return stopErr
}

func describeFormats(formats map[webcam.PixelFormat]string) string {
	names := make([]string, 0, len(formats))
	for code, desc := range formats {
		names = append(names, fmt.Sprintf("%s (%s)", domain.PixelFormatFromFourCC(uint32(code)), desc))
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "нет"
	}
	return strings.Join(names, ", ")
}
