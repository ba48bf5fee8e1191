// Package collector принимающая сторона потока: каждое бинарное сообщение
// WebSocket содержит один кадр JPEG. Кадры не сохраняются, только
// проверяются и считаются.
package collector

import (
	"bytes"
	"fmt"
	"html/template"
	"image"
	_ "image/jpeg" // Регистрируем декодер JPEG для DecodeConfig
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"camera-streamer/internal/application"
)

// FrameInfo сведения о принятом кадре
type FrameInfo struct {
	Session int
	Size    int
	Width   int
	Height  int
	Format  string
	Err     error // Ошибка разбора заголовка изображения
}

// Stats счетчики коллектора
type Stats struct {
	Sessions       int
	ActiveSessions int
	Frames         uint64
	InvalidFrames  uint64
	Bytes          uint64
	LastFrame      FrameInfo
	LastFrameAt    time.Time
}

// Collector http.Handler, принимающий потоки кадров
type Collector struct {
	upgrader websocket.Upgrader
	logger   application.Logger
	onFrame  func(FrameInfo)

	mutex sync.Mutex
	stats Stats
}

// New создает коллектор. onFrame вызывается для каждого принятого кадра и может быть nil.
func New(logger application.Logger, onFrame func(FrameInfo)) *Collector {
	return &Collector{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем все подключения
			},
		},
		logger:  logger,
		onFrame: onFrame,
	}
}

// Stats возвращает снимок счетчиков
func (c *Collector) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// ServeHTTP принимает один поток
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Error("Ошибка при апгрейде до WebSocket: %v", err)
		return
	}
	defer conn.Close()

	c.mutex.Lock()
	c.stats.Sessions++
	c.stats.ActiveSessions++
	session := c.stats.Sessions
	c.mutex.Unlock()

	defer func() {
		c.mutex.Lock()
		c.stats.ActiveSessions--
		c.mutex.Unlock()
	}()

	log := c.logger.WithFields(application.Fields{"session": session, "remote": conn.RemoteAddr().String()})
	log.Info("Клиент подключен")

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Ошибка чтения: %v", err)
			}
			break
		}

		// Обрабатываем только бинарные сообщения
		if messageType != websocket.BinaryMessage {
			log.Debug("Пропущено сообщение типа %d", messageType)
			continue
		}

		info := inspectFrame(session, message)
		c.record(info)
		if info.Err != nil {
			log.Warn("Некорректный кадр, %d байт: %v", info.Size, info.Err)
		} else {
			log.Debug("Кадр %s %dx%d, %d байт", info.Format, info.Width, info.Height, info.Size)
		}
		if c.onFrame != nil {
			c.onFrame(info)
		}
	}

	log.Info("Клиент отключен")
}

func (c *Collector) record(info FrameInfo) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.stats.Frames++
	c.stats.Bytes += uint64(info.Size)
	if info.Err != nil {
		c.stats.InvalidFrames++
	}
	c.stats.LastFrame = info
	c.stats.LastFrameAt = time.Now()
}

func inspectFrame(session int, data []byte) FrameInfo {
	info := FrameInfo{Session: session, Size: len(data)}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		info.Err = fmt.Errorf("заголовок изображения: %w", err)
		return info
	}
	info.Width = cfg.Width
	info.Height = cfg.Height
	info.Format = format
	return info
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Сервер приема видеопотока</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		.status { padding: 20px; background-color: #e0f7fa; border-radius: 5px; }
	</style>
</head>
<body>
	<h1>Сервер приема видеопотока</h1>
	<div class="status">
		<p>Активных потоков: {{.ActiveSessions}} (всего {{.Sessions}})</p>
		<p>Принято кадров: {{.Frames}}, из них некорректных: {{.InvalidFrames}}</p>
		<p>Принято байт: {{.Bytes}}</p>
		{{if .Frames}}<p>Последний кадр: {{.LastFrame.Format}} {{.LastFrame.Width}}x{{.LastFrame.Height}}, {{.LastFrame.Size}} байт</p>{{end}}
	</div>
</body>
</html>
`))

// StatusHandler простая страница со счетчиками
func (c *Collector) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := statusPage.Execute(w, c.Stats()); err != nil {
			c.logger.Error("Ошибка отрисовки страницы статуса: %v", err)
		}
	})
}
