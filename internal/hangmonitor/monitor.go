// Package hangmonitor watches script actors for documents that stop making progress.
//
// A content thread registers each pipeline it hosts and reports activity while
// it processes messages. A registration that reports neither activity nor an
// idle wait for longer than its timeout is reported once through the alert
// callback, until activity resumes.
package hangmonitor

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// AlertFunc receives hang reports. It is called from the monitor goroutine.
type AlertFunc func(pipeline id.PipelineID, hungFor time.Duration)

// Config configures a Monitor
type Config struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *zap.Logger
	OnHang   AlertFunc
}

// Monitor checks registrations on a fixed interval
type Monitor struct {
	cfg Config

	mu      sync.Mutex
	regs    map[*Registration]struct{}
	started bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Registration is the handle a pipeline uses to report liveness
type Registration struct {
	m        *Monitor
	pipeline id.PipelineID
	timeout  time.Duration

	// guarded by m.mu
	lastActivity time.Time
	waiting      bool
	alerted      bool
}

// New creates a monitor. Call Start to begin checking.
func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Monitor{
		cfg:  cfg,
		regs: make(map[*Registration]struct{}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the checking goroutine
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	ticker := m.cfg.Clock.Ticker(m.cfg.Interval)
	go func() {
		defer close(m.done)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.check()
			}
		}
	}()
}

// Stop halts checking and waits for the goroutine to exit
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}

// Register starts watching pipeline
func (m *Monitor) Register(pipeline id.PipelineID, timeout time.Duration) *Registration {
	r := &Registration{
		m:            m,
		pipeline:     pipeline,
		timeout:      timeout,
		lastActivity: m.cfg.Clock.Now(),
	}

	m.mu.Lock()
	m.regs[r] = struct{}{}
	m.mu.Unlock()
	return r
}

// Registered returns the number of live registrations
func (m *Monitor) Registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

func (m *Monitor) check() {
	now := m.cfg.Clock.Now()

	type hang struct {
		pipeline id.PipelineID
		hungFor  time.Duration
	}
	var hangs []hang

	m.mu.Lock()
	for r := range m.regs {
		if r.waiting || r.alerted {
			continue
		}
		if elapsed := now.Sub(r.lastActivity); elapsed >= r.timeout {
			r.alerted = true
			hangs = append(hangs, hang{pipeline: r.pipeline, hungFor: elapsed})
		}
	}
	m.mu.Unlock()

	for _, h := range hangs {
		m.cfg.Logger.Warn("Pipeline hang detected",
			zap.Stringer("pipeline", h.pipeline),
			zap.Duration("hung_for", h.hungFor),
		)
		if m.cfg.OnHang != nil {
			m.cfg.OnHang(h.pipeline, h.hungFor)
		}
	}
}

// Pipeline returns the watched pipeline
func (r *Registration) Pipeline() id.PipelineID {
	return r.pipeline
}

// NotifyActivity reports progress
func (r *Registration) NotifyActivity() {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.lastActivity = r.m.cfg.Clock.Now()
	r.waiting = false
	r.alerted = false
}

// NotifyWait reports that the pipeline is idle and waiting for input
func (r *Registration) NotifyWait() {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.waiting = true
}

// Unregister stops watching. Idempotent.
func (r *Registration) Unregister() {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.regs, r)
}
