package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/CasaMack/tibber-subscribe/internal/ports"
)

// ErrMaxAttempts is returned when MaxAttempts consecutive sessions failed.
var ErrMaxAttempts = errors.New("supervisor: reconnect attempts exhausted")

// ReconnectPolicy controls the delay between failed sessions.
type ReconnectPolicy struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"`
	// ResetAfter is how long a session must last before the attempt
	// counter starts over.
	ResetAfter time.Duration `yaml:"reset_after"`
	// MaxAttempts bounds consecutive failures; 0 retries forever.
	MaxAttempts int `yaml:"max_attempts"`
	// Disabled reconnects immediately, with no delay at all.
	Disabled bool `yaml:"disabled"`
}

func DefaultPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		Jitter:       0.2,
		ResetAfter:   time.Minute,
	}
}

// ApplyDefaults fills unset durations and the multiplier. Jitter is left
// alone since zero is a valid choice; loaders seed it from DefaultPolicy.
func (p *ReconnectPolicy) ApplyDefaults() {
	def := DefaultPolicy()
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.ResetAfter <= 0 {
		p.ResetAfter = def.ResetAfter
	}
}

func (p *ReconnectPolicy) Validate() error {
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max_delay %s is below initial_delay %s", p.MaxDelay, p.InitialDelay)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0,1], got %v", p.Jitter)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", p.MaxAttempts)
	}
	return nil
}

// Delay returns the wait before reconnect attempt n (1-based), without jitter.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if p.Disabled || attempt <= 0 {
		return 0
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

type Supervisor struct {
	session ports.Session
	policy  ReconnectPolicy
	obs     ports.Observability

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// New applies the policy defaults, so a zero policy still backs off.
func New(session ports.Session, policy ReconnectPolicy, obs ports.Observability) *Supervisor {
	policy.ApplyDefaults()
	return &Supervisor{
		session: session,
		policy:  policy,
		obs:     obs,
		now:     time.Now,
		sleep:   sleepContext,
		rand:    rand.Float64,
	}
}

// Run calls the session until ctx is cancelled, waiting between failed
// sessions according to the policy. Each call starts a fresh subscription;
// nothing is replayed. Run returns nil on cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		started := s.now()
		err := s.session.Run(ctx)
		if ctx.Err() != nil {
			s.obs.LogInfo("subscription stopped")
			return nil
		}
		if err == nil {
			err = errors.New("session ended without error")
		}

		if s.policy.ResetAfter > 0 && s.now().Sub(started) >= s.policy.ResetAfter {
			attempt = 0
		}
		attempt++

		if s.policy.MaxAttempts > 0 && attempt > s.policy.MaxAttempts {
			return fmt.Errorf("%w after %d failures: %w", ErrMaxAttempts, attempt-1, err)
		}

		delay := s.jittered(s.policy.Delay(attempt))
		s.obs.SetGauge(ports.GaugeReconnectDelay, delay.Seconds())
		s.obs.LogWarn("session failed, reconnecting", err,
			ports.F("attempt", attempt),
			ports.F("delay", delay.String()))

		if err := s.sleep(ctx, delay); err != nil {
			s.obs.LogInfo("subscription stopped")
			return nil
		}
	}
}

func (s *Supervisor) jittered(d time.Duration) time.Duration {
	if d <= 0 || s.policy.Jitter <= 0 {
		return d
	}
	// Spread uniformly over [d*(1-j), d*(1+j)].
	factor := 1 + s.policy.Jitter*(2*s.rand()-1)
	return time.Duration(float64(d) * factor)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
