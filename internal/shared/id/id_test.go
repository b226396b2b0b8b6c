package id

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceNotInstalled(t *testing.T) {
	ns := NewNamespace()

	_, err := ns.NextPipelineID()
	assert.ErrorIs(t, err, ErrNotInstalled)

	_, err = ns.NextBrowsingContextID()
	assert.ErrorIs(t, err, ErrNotInstalled)

	_, err = ns.ID()
	assert.ErrorIs(t, err, ErrNotInstalled)

	assert.Panics(t, func() { ns.MustPipelineID() })
}

func TestNamespaceInstallTwice(t *testing.T) {
	ns := NewNamespace()
	require.NoError(t, ns.Install(5))

	err := ns.Install(6)
	assert.ErrorIs(t, err, ErrAlreadyInstalled)

	got, err := ns.ID()
	require.NoError(t, err)
	assert.Equal(t, NamespaceID(5), got)
}

func TestNamespaceAllocationDistinct(t *testing.T) {
	const k = 1000
	ns := InstalledNamespace(7)

	seen := make(map[PipelineID]bool, k)
	for i := 0; i < k; i++ {
		p := ns.MustPipelineID()
		assert.Equal(t, NamespaceID(7), p.Namespace)
		assert.False(t, p.IsZero())
		assert.False(t, seen[p], "duplicate id %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, k)
}

func TestNamespacesNeverCollide(t *testing.T) {
	a := InstalledNamespace(2)
	b := InstalledNamespace(3)

	seen := make(map[PipelineID]bool)
	for i := 0; i < 500; i++ {
		for _, p := range []PipelineID{a.MustPipelineID(), b.MustPipelineID()} {
			require.False(t, seen[p], "collision on %s", p)
			seen[p] = true
		}
	}
}

func TestNamespaceConcurrentAllocation(t *testing.T) {
	ns := InstalledNamespace(4)

	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	ids := make(chan PipelineID, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- ns.MustPipelineID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[PipelineID]bool)
	for p := range ids {
		assert.False(t, seen[p], "duplicate id %s", p)
		seen[p] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestNamespaceExhaustion(t *testing.T) {
	ns := InstalledNamespace(9)
	ns.nextPipeline.Store(math.MaxUint32 - 2)

	p, err := ns.NextPipelineID()
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32-1), p.Index)

	for i := 0; i < 3; i++ {
		_, err = ns.NextPipelineID()
		assert.ErrorIs(t, err, ErrNamespaceExhausted)
	}
}

func TestPipelineAndContextCountersIndependent(t *testing.T) {
	ns := InstalledNamespace(1)

	p := ns.MustPipelineID()
	b := ns.MustBrowsingContextID()
	assert.Equal(t, uint32(1), p.Index)
	assert.Equal(t, uint32(1), b.Index)
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"1-1", false},
		{"12-345", false},
		{"", true},
		{"1", true},
		{"a-1", true},
		{"1-0", true},
		{"1--1", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bc, err := ParseBrowsingContextID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, bc.String())
		})
	}
}

func TestNamespaceAllocator(t *testing.T) {
	a := NewNamespaceAllocator()

	first := a.Next()
	second := a.Next()
	assert.Equal(t, FirstContentNamespace, first)
	assert.Equal(t, FirstContentNamespace+1, second)
}

func TestLoadID(t *testing.T) {
	before := time.Now()
	load := NewLoadID()

	assert.True(t, strings.HasPrefix(load.String(), LoadPrefix+"_"))
	require.NoError(t, load.Validate())

	ts, err := load.Started()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.UnixMilli(), before.UnixMilli())
}

func TestLoadIDValidate(t *testing.T) {
	ulidPart := Default().Generate().String()
	tests := []struct {
		name string
		id   LoadID
	}{
		{"empty", ""},
		{"no prefix", LoadID(ulidPart)},
		{"wrong prefix", LoadID("trace_" + ulidPart)},
		{"bad ulid", LoadID("load_not-a-ulid")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.id.Validate(), ErrInvalidID)
			_, err := tt.id.Started()
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func BenchmarkNextPipelineID(b *testing.B) {
	ns := InstalledNamespace(2)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = ns.MustPipelineID()
		}
	})
}
