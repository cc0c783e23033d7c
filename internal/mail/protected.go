package mail

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tourhub/tourhub/internal/observability"
)

type ProtectedMailerConfig struct {
	Provider         string
	Timeout          time.Duration // hard timeout per send
	FailureThreshold uint32        // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls uint32        // allow N trial calls in half-open
	Prom             *observability.Prom
}

// ProtectedMailer bounds every send with a timeout and fails fast while the
// transport keeps failing.
type ProtectedMailer struct {
	inner   Mailer
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	label   string
	prom    *observability.Prom
}

func NewProtectedMailer(inner Mailer, cfg ProtectedMailerConfig) *ProtectedMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls == 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	if cfg.Provider == "" {
		cfg.Provider = "log"
	}

	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail-" + cfg.Provider,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// the caller giving up is not a transport failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &ProtectedMailer{
		inner:   inner,
		cb:      cb,
		timeout: cfg.Timeout,
		label:   cfg.Provider,
		prom:    cfg.Prom,
	}
}

func (m *ProtectedMailer) Send(ctx context.Context, msg Message) error {
	start := time.Now()

	_, err := m.cb.Execute(func() (any, error) {
		sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		return nil, m.inner.Send(sendCtx, msg)
	})

	result := "sent"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
		err = ErrCircuitOpen
	case err != nil:
		result = "failed"
	}
	if m.prom != nil {
		m.prom.ObserveMail(m.label, result, time.Since(start))
	}
	return err
}

// State reports the breaker state, for readiness output.
func (m *ProtectedMailer) State() string {
	return m.cb.State().String()
}
