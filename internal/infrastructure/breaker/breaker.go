package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"purchases/internal/infrastructure/metrics"
)

// ErrOpen is returned without calling the dependency while the breaker is
// open, or while a half-open trial call is already in flight.
var ErrOpen = errors.New("circuit breaker is open")

type Settings struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	Interval         time.Duration
}

// Breaker guards calls to one named dependency. Only transport failures
// (refused or reset connections, timeouts) move it towards open; any answer
// from the dependency, whatever its status code, counts as success.
type Breaker struct {
	name    string
	cb      *gobreaker.TwoStepCircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(name string, s Settings, logger *zap.Logger, m *metrics.Metrics) *Breaker {
	b := &Breaker{
		name:    name,
		logger:  logger,
		metrics: m,
	}

	threshold := uint32(s.FailureThreshold)
	if threshold == 0 {
		threshold = 1
	}

	b.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: b.onStateChange,
	})

	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(metrics.BreakerClosed)
	}

	return b
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// Execute runs fn unless the breaker rejects the call, in which case the
// returned error wraps ErrOpen and fn is never invoked. A half-open trial
// cancelled by the caller sends the breaker back to open for another cooldown.
func (b *Breaker) Execute(fn func() error) error {
	done, err := b.cb.Allow()
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}
	trial := b.cb.State() == gobreaker.StateHalfOpen

	err = fn()
	if trial && errors.Is(err, context.Canceled) {
		b.logger.Info("half-open trial cancelled by caller", zap.String("dependency", b.name))
		done(false)
		return err
	}
	done(!IsTransportFailure(err))
	return err
}

func (b *Breaker) onStateChange(name string, from, to gobreaker.State) {
	fields := []zap.Field{
		zap.String("dependency", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	}
	if to == gobreaker.StateOpen {
		b.logger.Warn("circuit breaker opened", fields...)
	} else {
		b.logger.Info("circuit breaker state changed", fields...)
	}

	if b.metrics != nil {
		b.metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		b.metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	}
	return metrics.BreakerClosed
}

// IsTransportFailure reports whether err means the dependency could not be
// reached at all. Cancellation by the caller is not a dependency failure.
func IsTransportFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
