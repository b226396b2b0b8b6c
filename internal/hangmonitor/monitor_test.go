package hangmonitor

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

type alerts struct {
	mu  sync.Mutex
	got []id.PipelineID
}

func (a *alerts) record(p id.PipelineID, _ time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, p)
}

func (a *alerts) list() []id.PipelineID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]id.PipelineID(nil), a.got...)
}

func TestHangReportedOnce(t *testing.T) {
	mock := clock.NewMock()
	var a alerts
	m := New(Config{Clock: mock, OnHang: a.record})

	p := id.PipelineID{Namespace: 2, Index: 1}
	r := m.Register(p, time.Second)

	mock.Add(500 * time.Millisecond)
	m.check()
	assert.Empty(t, a.list())

	mock.Add(time.Second)
	m.check()
	m.check()
	assert.Equal(t, []id.PipelineID{p}, a.list())

	r.NotifyActivity()
	mock.Add(2 * time.Second)
	m.check()
	assert.Len(t, a.list(), 2)
}

func TestWaitingIsNotAHang(t *testing.T) {
	mock := clock.NewMock()
	var a alerts
	m := New(Config{Clock: mock, OnHang: a.record})

	r := m.Register(id.PipelineID{Namespace: 2, Index: 1}, time.Second)
	r.NotifyWait()

	mock.Add(time.Minute)
	m.check()
	assert.Empty(t, a.list())
}

func TestUnregister(t *testing.T) {
	mock := clock.NewMock()
	var a alerts
	m := New(Config{Clock: mock, OnHang: a.record})

	r := m.Register(id.PipelineID{Namespace: 2, Index: 1}, time.Second)
	assert.Equal(t, 1, m.Registered())

	r.Unregister()
	r.Unregister()
	assert.Equal(t, 0, m.Registered())

	mock.Add(time.Minute)
	m.check()
	assert.Empty(t, a.list())
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	var a alerts
	m := New(Config{Interval: 5 * time.Millisecond, OnHang: a.record})
	m.Register(id.PipelineID{Namespace: 2, Index: 1}, 10*time.Millisecond)
	m.Start()

	assert.Eventually(t, func() bool { return len(a.list()) == 1 }, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()
}
