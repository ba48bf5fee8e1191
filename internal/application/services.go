package application

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"camera-streamer/internal/domain"
)

// StreamingLoop забирает кадры с камеры, при необходимости перекодирует
// и отправляет их на сервер, переподключаясь при потере соединения.
// Работает в одной горутине: захват, перекодирование и отправка идут строго
// по очереди, кадры уходят в порядке захвата.
type StreamingLoop struct {
	config     domain.StreamConfig
	source     FrameSource
	transcoder FrameTranscoder
	transport  StreamTransport
	logger     Logger

	retry backoff.BackOff
	stats *statsTracker
}

// NewStreamingLoop создает оркестратор конвейера.
// transcoder обязателен только при config.Reencode.
func NewStreamingLoop(
	config domain.StreamConfig,
	source FrameSource,
	transcoder FrameTranscoder,
	transport StreamTransport,
	logger Logger,
) (*StreamingLoop, error) {
	if source == nil || transport == nil || logger == nil {
		return nil, errors.New("источник кадров, транспорт и логгер обязательны")
	}
	if config.Reencode && transcoder == nil {
		return nil, errors.New("перекодирование включено, но перекодировщик не задан")
	}

	return &StreamingLoop{
		config:     config,
		source:     source,
		transcoder: transcoder,
		transport:  transport,
		logger:     logger,
		retry:      newBackoff(config.Reconnect),
		stats:      newStatsTracker(),
	}, nil
}

// Stats возвращает снимок счетчиков
func (l *StreamingLoop) Stats() StreamStats {
	return l.stats.snapshot()
}

// Run крутит внешний цикл подключения. Возвращает только фатальные ошибки
// (захват, формат кадра) или nil после отмены контекста.
func (l *StreamingLoop) Run(ctx context.Context) error {
	l.logger.Info("Стриминг %s: %s @ %d fps -> %s, перекодирование: %v",
		l.config.Device, l.config.InputResolution, l.config.FrameRate, l.config.Endpoint, l.config.Reencode)

	for {
		if ctx.Err() != nil {
			l.logger.Info("Стриминг остановлен")
			return nil
		}

		conn, err := l.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("Стриминг остановлен")
				return nil
			}
			return err
		}

		connLogger := l.logger.WithFields(Fields{"session": conn.ID()})
		connLogger.Info("Подключено к серверу %s", l.config.Endpoint)

		err = l.streamFrames(ctx, conn, connLogger)
		if closeErr := conn.Close(); closeErr != nil {
			connLogger.Debug("Ошибка закрытия соединения: %v", closeErr)
		}
		if err != nil {
			return err
		}
	}
}

// connect повторяет подключение с паузами из политики переподключения,
// пока оно не удастся или пока не отменят контекст.
func (l *StreamingLoop) connect(ctx context.Context) (Connection, error) {
	attempt := 0
	operation := func() (Connection, error) {
		attempt++
		conn, err := l.transport.Connect(ctx, l.config.Endpoint)
		if err != nil {
			l.stats.update(func(st *StreamStats) { st.ConnectFailures++ })
		}
		return conn, err
	}
	notify := func(err error, delay time.Duration) {
		l.logger.WithFields(Fields{
			"stage":   "connect",
			"attempt": attempt,
			"delay":   delay.String(),
		}).Error("Ошибка подключения к серверу: %v", err)
	}

	return backoff.RetryNotifyWithData(operation, backoff.WithContext(l.retry, ctx), notify)
}

// streamFrames внутренний цикл кадров на одном соединении.
// nil означает, что соединение потеряно или контекст отменен.
func (l *StreamingLoop) streamFrames(ctx context.Context, conn Connection, logger Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		logger.Debug("Ожидание кадра")
		frame, err := l.source.Capture()
		if err != nil {
			var captureErr *domain.CaptureError
			if !errors.As(err, &captureErr) {
				err = &domain.CaptureError{Device: l.config.Device, Err: err}
			}
			return err
		}
		if frame.Format != l.config.PixelFormat {
			return &domain.FormatError{Want: l.config.PixelFormat, Got: frame.Format}
		}

		l.stats.update(func(st *StreamStats) { st.Captured++ })
		logger.Debug("Кадр %d: %s, размер %d байт", frame.Number, frame.Format, frame.Size())

		payload := frame.Data
		if l.config.Reencode {
			encoded, err := l.transcoder.Transcode(frame, l.config.OutputResolution, l.config.OutputQuality)
			if err != nil {
				l.stats.update(func(st *StreamStats) { st.TranscodeSkipped++ })
				logger.WithFields(Fields{"stage": "transcode", "frame": frame.Number}).
					Error("Ошибка перекодирования кадра: %v", err)
				continue
			}
			logger.Debug("Кадр %d перекодирован, размер %d байт", frame.Number, encoded.Size())
			payload = encoded.Data
		}

		if err := conn.Send(payload); err != nil {
			if domain.Classify(err) == domain.Reconnect {
				l.stats.update(func(st *StreamStats) { st.Reconnects++ })
				logger.WithFields(Fields{"stage": "send", "frame": frame.Number}).
					Warn("Соединение закрыто, переподключение: %v", err)
				return nil
			}
			l.stats.update(func(st *StreamStats) { st.SendSkipped++ })
			logger.WithFields(Fields{"stage": "send", "frame": frame.Number}).
				Error("Ошибка отправки кадра: %v", err)
			continue
		}

		st := l.stats.update(func(st *StreamStats) {
			st.Sent++
			st.BytesSent += uint64(len(payload))
		})
		if st.Sent%progressInterval == 0 {
			logger.Debug("Отправлено кадров: %d, FPS: %.2f, Размер последнего кадра: %d байт",
				st.Sent, l.stats.fps(st.Sent), len(payload))
		}
	}
}
