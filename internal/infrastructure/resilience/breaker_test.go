package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSpawn = errors.New("spawn failed")

func run(b *Breaker, outcomes ...bool) {
	for _, ok := range outcomes {
		_ = b.Do(func() error {
			if ok {
				return nil
			}
			return errSpawn
		})
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		outcomes []bool
		expected State
	}{
		{
			name:     "stays closed on successes",
			outcomes: []bool{true, true, true},
			expected: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
			},
			outcomes: []bool{false, false, false},
			expected: StateOpen,
		},
		{
			name: "success resets the failure streak",
			settings: Settings{
				ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
			},
			outcomes: []bool{false, true, false},
			expected: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.settings.Clock = clock.NewMock()
			b := New("spawn", tt.settings)
			run(b, tt.outcomes...)
			assert.Equal(t, tt.expected, b.State())
		})
	}
}

func TestBreakerRecovers(t *testing.T) {
	clk := clock.NewMock()
	var transitions []string
	b := New("spawn", Settings{
		Timeout:     time.Second,
		Clock:       clk,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	run(b, false)
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clk.Add(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewMock()
	b := New("spawn", Settings{
		Timeout:     time.Second,
		Clock:       clk,
		ReadyToTrip: func(c Counts) bool { return true },
	})

	run(b, false)
	clk.Add(time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	clk := clock.NewMock()
	b := New("spawn", Settings{
		Timeout:     time.Second,
		Clock:       clk,
		ReadyToTrip: func(c Counts) bool { return true },
	})
	run(b, false)
	clk.Add(time.Second)

	var inner error
	err := b.Do(func() error {
		inner = b.Do(func() error { return nil })
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrTooManyRequests)
}

func TestBreakerCountsPanicAsFailure(t *testing.T) {
	b := New("spawn", Settings{Clock: clock.NewMock()})

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("launcher exploded") })
	})
	assert.Equal(t, uint32(1), b.Counts().TotalFailures)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clk := clock.NewMock()
	b := New("spawn", Settings{Interval: time.Minute, Clock: clk})

	run(b, false, false)
	assert.Equal(t, uint32(2), b.Counts().ConsecutiveFailures)

	clk.Add(2 * time.Minute)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())
}
