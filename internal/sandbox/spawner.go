package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/resilience"
)

var ErrSpawnerClosed = errors.New("sandbox: spawner closed")

// Spawner starts an isolated content thread for a serialized payload
type Spawner interface {
	Spawn(ctx context.Context, payload []byte) error
}

// LaunchFunc runs a content thread until it exits
type LaunchFunc func(ctx context.Context, content *UnprivilegedContent) error

// ThreadSpawner runs content threads as goroutines of this process
type ThreadSpawner struct {
	launch LaunchFunc
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
	active atomic.Int64
}

// NewThreadSpawner creates a spawner that runs launch for each payload
func NewThreadSpawner(launch LaunchFunc, logger *zap.Logger) *ThreadSpawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ThreadSpawner{
		launch: launch,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Spawn decodes payload and starts its content thread. It does not wait for
// the thread to do anything.
func (s *ThreadSpawner) Spawn(ctx context.Context, payload []byte) error {
	if s.closed.Load() {
		return ErrSpawnerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := Decode(payload)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	s.active.Inc()
	go s.run(content)
	return nil
}

func (s *ThreadSpawner) run(content *UnprivilegedContent) {
	defer s.wg.Done()
	defer s.active.Dec()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Content thread panicked",
				zap.Stringer("pipeline", content.Pipeline),
				zap.Any("panic", r))
		}
	}()

	if err := s.launch(s.ctx, content); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Content thread exited with error",
			zap.Stringer("pipeline", content.Pipeline),
			zap.Error(err))
	}
}

// Active returns the number of running content threads
func (s *ThreadSpawner) Active() int64 {
	return s.active.Load()
}

// Close refuses further spawns and cancels running threads
func (s *ThreadSpawner) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// Wait blocks until every content thread returned or ctx ends
func (s *ThreadSpawner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d content threads: %w", s.active.Load(), ctx.Err())
	}
}

// GuardedSpawner trips a circuit breaker when spawning keeps failing
type GuardedSpawner struct {
	next    Spawner
	breaker *resilience.Breaker
}

// NewGuardedSpawner wraps next with a breaker named "spawn"
func NewGuardedSpawner(next Spawner, logger *zap.Logger) *GuardedSpawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := resilience.New("spawn", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Spawner breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	return &GuardedSpawner{next: next, breaker: breaker}
}

// Spawn forwards to the wrapped spawner unless the breaker is open
func (g *GuardedSpawner) Spawn(ctx context.Context, payload []byte) error {
	return g.breaker.Do(func() error {
		return g.next.Spawn(ctx, payload)
	})
}

// State reports the breaker state
func (g *GuardedSpawner) State() resilience.State {
	return g.breaker.State()
}
