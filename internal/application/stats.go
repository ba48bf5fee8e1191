package application

import (
	"sync"
	"time"
)

// progressInterval каждые сколько отправленных кадров писать сводку в debug
const progressInterval = 30

// StreamStats счетчики конвейера, только для диагностики
type StreamStats struct {
	Captured         uint64 // Кадров захвачено с момента запуска
	Sent             uint64
	TranscodeSkipped uint64
	SendSkipped      uint64
	Reconnects       uint64 // Потерь соединения
	ConnectFailures  uint64
	BytesSent        uint64
}

type statsTracker struct {
	mutex     sync.Mutex
	stats     StreamStats
	startTime time.Time
}

func newStatsTracker() *statsTracker {
	return &statsTracker{startTime: time.Now()}
}

func (s *statsTracker) update(fn func(st *StreamStats)) StreamStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fn(&s.stats)
	return s.stats
}

func (s *statsTracker) snapshot() StreamStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// fps средняя частота отправки с момента запуска
func (s *statsTracker) fps(sent uint64) float64 {
	elapsed := time.Since(s.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(sent) / elapsed
}
