package domain

import (
	"fmt"
	"net/url"
	"time"
)

// PixelFormat четырехсимвольный код формата пикселей V4L2
type PixelFormat string

// FormatMJPEG единственный формат, который поддерживает конвейер
const FormatMJPEG PixelFormat = "MJPG"

// FourCC возвращает числовой код формата в представлении V4L2
func (p PixelFormat) FourCC() uint32 {
	var code uint32
	for i := 0; i < 4 && i < len(p); i++ {
		code |= uint32(p[i]) << (8 * uint(i))
	}
	return code
}

// PixelFormatFromFourCC восстанавливает строковый код из числового
func PixelFormatFromFourCC(code uint32) PixelFormat {
	b := []byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
	return PixelFormat(b)
}

// Frame представляет один сжатый кадр
type Frame struct {
	Data       []byte      // Сжатые данные кадра
	Format     PixelFormat // Формат, заявленный источником
	Number     uint64      // Номер кадра с момента запуска
	CapturedAt time.Time   // Время захвата
}

// Size возвращает размер данных кадра в байтах
func (f *Frame) Size() int {
	return len(f.Data)
}

// Resolution ширина и высота в пикселях
type Resolution struct {
	Width  uint32
	Height uint32
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Validate проверяет, что обе стороны ненулевые
func (r Resolution) Validate() error {
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("некорректное разрешение %s", r)
	}
	return nil
}

// VideoDevice представляет устройство захвата видео
type VideoDevice struct {
	ID    string // Уникальный идентификатор устройства
	Label string // Человекочитаемое имя устройства
	Kind  string // Тип устройства
}

// ReconnectPolicy параметры повторных подключений
type ReconnectPolicy struct {
	InitialDelay time.Duration // 0 - повторять сразу
	MaxDelay     time.Duration
	Jitter       float64 // Доля случайного разброса, 0..1
}

// StreamConfig содержит конфигурацию видеопотока.
// Заполняется один раз при запуске и больше не меняется.
type StreamConfig struct {
	Device           string
	InputResolution  Resolution
	FrameRate        uint32
	OutputResolution Resolution
	OutputQuality    int
	Reencode         bool
	Debug            bool
	Endpoint         string
	PixelFormat      PixelFormat

	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	CaptureTimeout time.Duration
	Reconnect      ReconnectPolicy
}

// Validate проверяет конфигурацию целиком
func (c StreamConfig) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("не указано устройство захвата")
	}
	if c.FrameRate == 0 {
		return fmt.Errorf("частота кадров должна быть больше нуля")
	}
	if err := c.InputResolution.Validate(); err != nil {
		return fmt.Errorf("входное разрешение: %w", err)
	}
	if err := c.OutputResolution.Validate(); err != nil {
		return fmt.Errorf("выходное разрешение: %w", err)
	}
	if c.OutputQuality < 0 || c.OutputQuality > 100 {
		return fmt.Errorf("качество должно быть в диапазоне 0..100, получено %d", c.OutputQuality)
	}
	if c.PixelFormat != FormatMJPEG {
		return fmt.Errorf("неподдерживаемый формат пикселей %q", c.PixelFormat)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("разброс задержки должен быть в диапазоне 0..1")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"таймаут подключения", c.ConnectTimeout},
		{"таймаут отправки", c.SendTimeout},
		{"таймаут захвата", c.CaptureTimeout},
		{"начальная задержка переподключения", c.Reconnect.InitialDelay},
		{"максимальная задержка переподключения", c.Reconnect.MaxDelay},
	} {
		if d.value < 0 {
			return fmt.Errorf("%s не может быть отрицательным: %s", d.name, d.value)
		}
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("некорректный адрес сервера: %w", err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("адрес сервера должен быть ws:// или wss:// URL: %q", c.Endpoint)
	}
	return nil
}
