package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CasaMack/tibber-subscribe/internal/ports"
)

func TestPolicyDelay(t *testing.T) {
	p := ReconnectPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(5))
	assert.Equal(t, 10*time.Second, p.Delay(50))

	p.Disabled = true
	assert.Equal(t, time.Duration(0), p.Delay(3))
}

func TestPolicyDefaultsAndValidate(t *testing.T) {
	var p ReconnectPolicy
	p.ApplyDefaults()
	assert.Equal(t, DefaultPolicy().InitialDelay, p.InitialDelay)
	assert.Equal(t, DefaultPolicy().MaxDelay, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	require.NoError(t, p.Validate())

	bad := ReconnectPolicy{InitialDelay: time.Minute, MaxDelay: time.Second}
	assert.Error(t, bad.Validate())

	bad = DefaultPolicy()
	bad.Jitter = 2
	assert.Error(t, bad.Validate())
}

func TestSupervisorReconnectsWithBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failure := errors.New("read timeout")
	sess := &scriptedSession{errs: []error{failure, failure, failure}, onExhausted: cancel}
	policy := ReconnectPolicy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2, ResetAfter: time.Hour}

	sup, delays := newTestSupervisor(sess, policy)
	require.NoError(t, sup.Run(ctx))

	assert.Equal(t, 4, sess.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *delays)
}

func TestSupervisorResetsAfterLongSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failure := errors.New("read failed")
	sess := &scriptedSession{
		errs:        []error{failure, failure, failure},
		durations:   []time.Duration{0, 0, 2 * time.Hour},
		onExhausted: cancel,
	}
	policy := ReconnectPolicy{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, ResetAfter: time.Hour}

	sup, delays := newTestSupervisor(sess, policy)
	require.NoError(t, sup.Run(ctx))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, *delays)
}

func TestSupervisorMaxAttempts(t *testing.T) {
	failure := errors.New("connect failed")
	sess := &scriptedSession{errs: []error{failure, failure, failure, failure}}
	policy := ReconnectPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2, ResetAfter: time.Hour, MaxAttempts: 2}

	sup, _ := newTestSupervisor(sess, policy)
	err := sup.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxAttempts))
	assert.True(t, errors.Is(err, failure))
	assert.Equal(t, 3, sess.calls)
}

func TestSupervisorZeroPolicyBacksOff(t *testing.T) {
	failure := errors.New("connect failed")
	sess := &scriptedSession{errs: []error{failure, failure, failure, failure, failure}}

	sup, delays := newTestSupervisor(sess, ReconnectPolicy{MaxAttempts: 3})
	err := sup.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxAttempts))
	assert.Equal(t, 4, sess.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestSupervisorStopsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &scriptedSession{errs: []error{errors.New("boom")}}
	sup := New(sess, ReconnectPolicy{InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2, ResetAfter: time.Hour}, &nopObs{})

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop during backoff")
	}
}

func TestSupervisorDisabledBackoffIsTightLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failure := errors.New("boom")
	sess := &scriptedSession{errs: []error{failure, failure}, onExhausted: cancel}
	policy := DefaultPolicy()
	policy.Disabled = true

	sup, delays := newTestSupervisor(sess, policy)
	require.NoError(t, sup.Run(ctx))
	assert.Equal(t, []time.Duration{0, 0}, *delays)
}

func TestJitterBounds(t *testing.T) {
	sup := New(&scriptedSession{}, ReconnectPolicy{Jitter: 0.2}, &nopObs{})

	sup.rand = func() float64 { return 0 }
	assert.Equal(t, 8*time.Second, sup.jittered(10*time.Second))
	sup.rand = func() float64 { return 1 }
	assert.Equal(t, 12*time.Second, sup.jittered(10*time.Second))
	assert.Equal(t, time.Duration(0), sup.jittered(0))
}

func newTestSupervisor(sess *scriptedSession, policy ReconnectPolicy) (*Supervisor, *[]time.Duration) {
	var (
		clock  = time.Unix(0, 0)
		delays []time.Duration
	)
	sess.clock = &clock
	sup := New(sess, policy, &nopObs{})
	sup.now = func() time.Time { return clock }
	sup.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return sup, &delays
}

// scriptedSession returns errs in order; once they run out it calls
// onExhausted and blocks until ctx is done.
type scriptedSession struct {
	errs        []error
	durations   []time.Duration
	onExhausted func()
	calls       int
	clock       *time.Time
}

func (s *scriptedSession) Run(ctx context.Context) error {
	i := s.calls
	s.calls++
	if i < len(s.durations) && s.clock != nil {
		*s.clock = s.clock.Add(s.durations[i])
	}
	if i < len(s.errs) {
		return s.errs[i]
	}
	if s.onExhausted != nil {
		s.onExhausted()
	}
	<-ctx.Done()
	return ctx.Err()
}

type nopObs struct{}

func (nopObs) LogDebug(string, ...ports.Field)        {}
func (nopObs) LogInfo(string, ...ports.Field)         {}
func (nopObs) LogWarn(string, error, ...ports.Field)  {}
func (nopObs) LogError(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)             {}
func (nopObs) ObserveLatency(string, float64)         {}
func (nopObs) SetGauge(string, float64)               {}
