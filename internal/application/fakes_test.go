package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"camera-streamer/internal/domain"
)

type logEntry struct {
	level  string
	msg    string
	fields Fields
}

type fakeLogger struct {
	mutex   *sync.Mutex
	entries *[]logEntry
	fields  Fields
}

func newFakeLogger() *fakeLogger {
	return &fakeLogger{mutex: &sync.Mutex{}, entries: &[]logEntry{}, fields: Fields{}}
}

func (l *fakeLogger) log(level, msg string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: fmt.Sprintf(msg, args...), fields: l.fields})
}

func (l *fakeLogger) Info(msg string, args ...interface{})  { l.log("info", msg, args...) }
func (l *fakeLogger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args...) }
func (l *fakeLogger) Error(msg string, args ...interface{}) { l.log("error", msg, args...) }
func (l *fakeLogger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args...) }

func (l *fakeLogger) WithFields(fields Fields) Logger {
	merged := Fields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &fakeLogger{mutex: l.mutex, entries: l.entries, fields: merged}
}

// stageErrors возвращает записи уровня error для заданной стадии
func (l *fakeLogger) stageErrors(stage string) []logEntry {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var out []logEntry
	for _, e := range *l.entries {
		if (e.level == "error" || e.level == "warn") && e.fields["stage"] == stage {
			out = append(out, e)
		}
	}
	return out
}

// fakeSource выдает кадры MJPG с возрастающими номерами.
// failAt задает номер кадра, на котором Capture вернет ошибку.
type fakeSource struct {
	next    uint64
	failAt  uint64
	failErr error
	format  domain.PixelFormat
	closed  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{format: domain.FormatMJPEG}
}

func (s *fakeSource) Capture() (*domain.Frame, error) {
	s.next++
	if s.failAt != 0 && s.next >= s.failAt {
		return nil, s.failErr
	}
	return &domain.Frame{
		Data:   []byte(fmt.Sprintf("frame-%d", s.next)),
		Format: s.format,
		Number: s.next,
	}, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeTranscoder падает на кадрах из failOn
type fakeTranscoder struct {
	failOn map[uint64]bool
	calls  int
}

func (t *fakeTranscoder) Transcode(frame *domain.Frame, size domain.Resolution, quality int) (*domain.Frame, error) {
	t.calls++
	if t.failOn[frame.Number] {
		return nil, &domain.TranscodeError{Op: "decode", Err: errors.New("corrupt jpeg")}
	}
	return &domain.Frame{
		Data:   []byte(fmt.Sprintf("small-%d@%s/q%d", frame.Number, size, quality)),
		Format: domain.FormatMJPEG,
		Number: frame.Number,
	}, nil
}

// sendOutcome результат одной отправки в сценарии
type sendOutcome int

const (
	sendOK sendOutcome = iota
	sendTransient
	sendLost
)

type sentMessage struct {
	session int
	payload string
}

// fakeTransport проигрывает сценарий исходов отправки общим списком для всех
// соединений и отменяет контекст, когда сценарий закончился.
type fakeTransport struct {
	mutex        sync.Mutex
	connectFails int // сколько первых подключений завершатся ошибкой
	connects     int
	sessions     int
	outcomes     []sendOutcome
	sent         []sentMessage
	cancel       context.CancelFunc
	conns        []*fakeConn
}

func (t *fakeTransport) Connect(ctx context.Context, endpoint string) (Connection, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.connects++
	if t.connects <= t.connectFails {
		return nil, &domain.ConnectError{Endpoint: endpoint, Err: errors.New("connection refused")}
	}
	t.sessions++
	conn := &fakeConn{transport: t, session: t.sessions}
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) sentPayloads() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	out := make([]string, 0, len(t.sent))
	for _, m := range t.sent {
		out = append(out, m.payload)
	}
	return out
}

type fakeConn struct {
	transport *fakeTransport
	session   int
	closed    bool
}

func (c *fakeConn) ID() string {
	return fmt.Sprintf("session-%d", c.session)
}

func (c *fakeConn) Send(payload []byte) error {
	t := c.transport
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if c.closed {
		return &domain.SendError{Kind: domain.ConnectionLost, Err: io.ErrClosedPipe}
	}
	if len(t.outcomes) == 0 {
		if t.cancel != nil {
			t.cancel()
		}
		return nil
	}

	outcome := t.outcomes[0]
	t.outcomes = t.outcomes[1:]
	if len(t.outcomes) == 0 && t.cancel != nil {
		t.cancel()
	}

	switch outcome {
	case sendTransient:
		return &domain.SendError{Kind: domain.Transient, Err: errors.New("frame rejected")}
	case sendLost:
		return &domain.SendError{Kind: domain.ConnectionLost, Err: io.EOF}
	default:
		t.sent = append(t.sent, sentMessage{session: c.session, payload: string(payload)})
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}
