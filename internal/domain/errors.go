package domain

import (
	"errors"
	"fmt"
)

// Recovery описывает, как конвейер реагирует на ошибку
type Recovery int

const (
	// Fatal завершает процесс
	Fatal Recovery = iota
	// Reconnect требует нового подключения
	Reconnect
	// Skip пропускает один кадр
	Skip
)

func (r Recovery) String() string {
	switch r {
	case Fatal:
		return "fatal"
	case Reconnect:
		return "reconnect"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// SendErrorKind класс ошибки отправки
type SendErrorKind int

const (
	// ConnectionLost поток больше непригоден, нужно переподключение
	ConnectionLost SendErrorKind = iota
	// Transient ошибка касается только одного сообщения
	Transient
)

func (k SendErrorKind) String() string {
	if k == ConnectionLost {
		return "connection lost"
	}
	return "transient"
}

// DeviceError ошибка открытия или настройки камеры
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("устройство %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CaptureError ошибка чтения кадра
type CaptureError struct {
	Device string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("захват кадра: %v", e.Err)
	}
	return fmt.Sprintf("захват кадра с %s: %v", e.Device, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// FormatError кадр пришел не в том формате, который поддерживает конвейер
type FormatError struct {
	Want PixelFormat
	Got  PixelFormat
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("формат кадра %q, ожидался %q", e.Got, e.Want)
}

// TranscodeError ошибка перекодирования кадра
type TranscodeError struct {
	Op  string // decode, resize, encode
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("перекодирование (%s): %v", e.Op, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ConnectError ошибка подключения к серверу
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("подключение к %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError ошибка отправки кадра
type SendError struct {
	Kind SendErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("отправка кадра (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Classify определяет реакцию конвейера на ошибку.
// Неизвестные ошибки считаются фатальными, err не может быть nil.
func Classify(err error) Recovery {
	var (
		sendErr      *SendError
		connectErr   *ConnectError
		transcodeErr *TranscodeError
	)
	switch {
	case errors.As(err, &sendErr):
		if sendErr.Kind == ConnectionLost {
			return Reconnect
		}
		return Skip
	case errors.As(err, &connectErr):
		return Reconnect
	case errors.As(err, &transcodeErr):
		return Skip
	default:
		return Fatal
	}
}
