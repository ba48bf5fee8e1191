package application

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"camera-streamer/internal/domain"
)

// uncappedMaxDelay потолок задержки, когда MaxDelay не задан
const uncappedMaxDelay = time.Hour

// newBackoff строит паузы между попытками подключения:
// InitialDelay * 2^(attempt-1), не больше MaxDelay, со случайным разбросом Jitter.
// Нулевая начальная задержка означает немедленный повтор.
func newBackoff(policy domain.ReconnectPolicy) backoff.BackOff {
	if policy.InitialDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}

	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = uncappedMaxDelay
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialDelay
	exp.RandomizationFactor = policy.Jitter
	exp.Multiplier = 2
	exp.MaxInterval = maxDelay
	// Подключение повторяется, пока процесс не остановят
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &cappedBackOff{BackOff: exp, max: maxDelay}
}

// cappedBackOff не дает разбросу вывести задержку за потолок
type cappedBackOff struct {
	backoff.BackOff
	max time.Duration
}

func (b *cappedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next > b.max {
		return b.max
	}
	return next
}
