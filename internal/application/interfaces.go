package application

import (
	"context"

	"camera-streamer/internal/domain"
)

// CameraManager интерфейс для управления камерой
type CameraManager interface {
	// ListDevices возвращает список доступных устройств захвата
	ListDevices() ([]domain.VideoDevice, error)

	// OpenCamera открывает камеру с заданными параметрами
	OpenCamera(config domain.StreamConfig) (FrameSource, error)
}

// FrameSource источник сжатых кадров
type FrameSource interface {
	// Capture блокируется до появления следующего кадра
	Capture() (*domain.Frame, error)
	Close() error
}

// FrameTranscoder перекодирует кадр в другое разрешение и качество
type FrameTranscoder interface {
	Transcode(frame *domain.Frame, size domain.Resolution, quality int) (*domain.Frame, error)
}

// StreamTransport устанавливает соединения с сервером
type StreamTransport interface {
	Connect(ctx context.Context, endpoint string) (Connection, error)
}

// Connection живое соединение с сервером
type Connection interface {
	// ID идентификатор сессии для логов
	ID() string
	// Send отправляет один кадр; ошибки имеют тип *domain.SendError
	Send(payload []byte) error
	Close() error
}

// Fields поля структурированного лога
type Fields map[string]interface{}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	WithFields(fields Fields) Logger
}
