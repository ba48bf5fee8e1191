package streaming

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"camera-streamer/internal/application"
	"camera-streamer/internal/domain"
)

// closeTimeout сколько ждать отправки кадра закрытия
const closeTimeout = time.Second

// WebSocketTransport устанавливает WebSocket соединения с сервером
type WebSocketTransport struct {
	dialer      *websocket.Dialer
	sendTimeout time.Duration
	logger      application.Logger
}

// NewWebSocketTransport создает транспорт. Нулевые таймауты означают
// отсутствие ограничения.
func NewWebSocketTransport(logger application.Logger, connectTimeout, sendTimeout time.Duration) *WebSocketTransport {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = connectTimeout

	return &WebSocketTransport{
		dialer:      &dialer,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Connect подключается к серверу
func (t *WebSocketTransport) Connect(ctx context.Context, endpoint string) (application.Connection, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &domain.ConnectError{Endpoint: endpoint, Err: err}
	}

	t.logger.Debug("Подключение к %s", u.String())
	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, &domain.ConnectError{Endpoint: endpoint, Err: err}
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &WebSocketConnection{
		conn:        conn,
		id:          uuid.NewString(),
		sendTimeout: t.sendTimeout,
		done:        make(chan struct{}),
	}
	c.logger = t.logger.WithFields(application.Fields{"session": c.id})
	go c.readLoop()

	return c, nil
}

// WebSocketConnection одно соединение с сервером.
// Send и Close вызываются из одной горутины конвейера.
type WebSocketConnection struct {
	conn        *websocket.Conn
	id          string
	sendTimeout time.Duration
	logger      application.Logger

	done    chan struct{}
	mutex   sync.Mutex
	readErr error
	closed  bool
}

// ID возвращает идентификатор сессии
func (c *WebSocketConnection) ID() string {
	return c.id
}

// readLoop читает входящие сообщения, чтобы gorilla обработала кадры
// управления. Ошибка чтения означает, что поток мертв.
func (c *WebSocketConnection) readLoop() {
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			c.mutex.Lock()
			c.readErr = err
			c.mutex.Unlock()
			close(c.done)
			return
		}
	}
}

// Send отправляет один кадр бинарным сообщением
func (c *WebSocketConnection) Send(payload []byte) error {
	c.mutex.Lock()
	closed := c.closed
	c.mutex.Unlock()
	if closed {
		return &domain.SendError{Kind: domain.ConnectionLost, Err: net.ErrClosed}
	}

	select {
	case <-c.done:
		return &domain.SendError{Kind: domain.ConnectionLost, Err: c.readError()}
	default:
	}

	if c.sendTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
			return &domain.SendError{Kind: ClassifySendError(err), Err: err}
		}
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		kind := ClassifySendError(err)
		c.logger.Debug("Ошибка записи (%s): %v", kind, err)
		return &domain.SendError{Kind: kind, Err: err}
	}
	return nil
}

// Close отправляет кадр закрытия и закрывает сокет. Повторный вызов ничего не делает.
func (c *WebSocketConnection) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	c.mutex.Unlock()

	select {
	case <-c.done:
	default:
		err := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout),
		)
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug("Ошибка отправки кадра закрытия: %v", err)
		}
	}

	return c.conn.Close()
}

func (c *WebSocketConnection) readError() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.readErr == nil {
		return io.EOF
	}
	return c.readErr
}

// ClassifySendError делит ошибки отправки на два класса: ConnectionLost,
// когда поток больше непригоден, и Transient для всего остального.
// Таймаут записи относится к ConnectionLost: после него gorilla
// больше не пишет в соединение.
func ClassifySendError(err error) domain.SendErrorKind {
	var (
		closeErr *websocket.CloseError
		netErr   net.Error
	)
	switch {
	case errors.Is(err, websocket.ErrCloseSent),
		errors.As(err, &closeErr),
		errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED):
		return domain.ConnectionLost
	default:
		return domain.Transient
	}
}
