package id

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

var (
	ErrNotInstalled       = errors.New("id: namespace not installed")
	ErrAlreadyInstalled   = errors.New("id: namespace already installed")
	ErrNamespaceExhausted = errors.New("id: namespace exhausted")
	ErrInvalidID          = errors.New("id: invalid identifier")
)

// NamespaceID partitions the id space between processes
type NamespaceID uint32

// Reserved namespaces. Spawned content receives namespaces from FirstContentNamespace upwards.
const (
	ConstellationNamespace NamespaceID = 0
	EmbedderNamespace      NamespaceID = 1
	FirstContentNamespace  NamespaceID = 2
)

// PipelineID identifies one document instance
type PipelineID struct {
	Namespace NamespaceID
	Index     uint32
}

// BrowsingContextID identifies a frame slot independent of the document occupying it
type BrowsingContextID struct {
	Namespace NamespaceID
	Index     uint32
}

// TopLevelBrowsingContextID identifies a tab. Its root browsing context shares the same value.
type TopLevelBrowsingContextID struct {
	BrowsingContextID
}

// IsZero reports whether the id is the zero value. Allocation never yields it.
func (p PipelineID) IsZero() bool { return p == PipelineID{} }

func (p PipelineID) String() string { return format(p.Namespace, p.Index) }

// IsZero reports whether the id is the zero value
func (b BrowsingContextID) IsZero() bool { return b == BrowsingContextID{} }

func (b BrowsingContextID) String() string { return format(b.Namespace, b.Index) }

// Root returns the browsing context id of the top-level context
func (t TopLevelBrowsingContextID) Root() BrowsingContextID { return t.BrowsingContextID }

func format(ns NamespaceID, index uint32) string {
	return fmt.Sprintf("%d-%d", ns, index)
}

// ParsePipelineID parses the "namespace-index" form produced by String
func ParsePipelineID(s string) (PipelineID, error) {
	ns, index, err := parse(s)
	if err != nil {
		return PipelineID{}, err
	}
	return PipelineID{Namespace: ns, Index: index}, nil
}

// ParseBrowsingContextID parses the "namespace-index" form produced by String
func ParseBrowsingContextID(s string) (BrowsingContextID, error) {
	ns, index, err := parse(s)
	if err != nil {
		return BrowsingContextID{}, err
	}
	return BrowsingContextID{Namespace: ns, Index: index}, nil
}

// ParseTopLevelID parses the "namespace-index" form produced by String
func ParseTopLevelID(s string) (TopLevelBrowsingContextID, error) {
	bc, err := ParseBrowsingContextID(s)
	if err != nil {
		return TopLevelBrowsingContextID{}, err
	}
	return TopLevelBrowsingContextID{BrowsingContextID: bc}, nil
}

func parse(s string) (NamespaceID, uint32, error) {
	nsPart, indexPart, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	ns, err := strconv.ParseUint(nsPart, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	index, err := strconv.ParseUint(indexPart, 10, 32)
	if err != nil || index == 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return NamespaceID(ns), uint32(index), nil
}

// Namespace allocates ids tagged with one installed NamespaceID.
// Create one per process (or per test) and pass it to everything that allocates.
type Namespace struct {
	mu        sync.Mutex // serializes Install
	id        NamespaceID
	installed atomic.Bool

	nextPipeline        atomic.Uint32
	nextBrowsingContext atomic.Uint32
}

// NewNamespace returns a namespace in the not-installed state
func NewNamespace() *Namespace {
	return &Namespace{}
}

// InstalledNamespace returns a namespace already installed with ns
func InstalledNamespace(ns NamespaceID) *Namespace {
	n := NewNamespace()
	if err := n.Install(ns); err != nil {
		panic(err)
	}
	return n
}

// Install sets the namespace id. It may be called exactly once.
func (n *Namespace) Install(ns NamespaceID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.installed.Load() {
		return fmt.Errorf("%w: %d", ErrAlreadyInstalled, n.id)
	}
	n.id = ns
	n.installed.Store(true)
	return nil
}

// Installed reports whether Install has been called
func (n *Namespace) Installed() bool {
	return n.installed.Load()
}

// ID returns the installed namespace id
func (n *Namespace) ID() (NamespaceID, error) {
	if !n.installed.Load() {
		return 0, ErrNotInstalled
	}
	return n.id, nil
}

// NextPipelineID allocates a pipeline id
func (n *Namespace) NextPipelineID() (PipelineID, error) {
	ns, index, err := n.next(&n.nextPipeline)
	if err != nil {
		return PipelineID{}, err
	}
	return PipelineID{Namespace: ns, Index: index}, nil
}

// NextBrowsingContextID allocates a browsing context id
func (n *Namespace) NextBrowsingContextID() (BrowsingContextID, error) {
	ns, index, err := n.next(&n.nextBrowsingContext)
	if err != nil {
		return BrowsingContextID{}, err
	}
	return BrowsingContextID{Namespace: ns, Index: index}, nil
}

// NextTopLevelID allocates a top-level browsing context id
func (n *Namespace) NextTopLevelID() (TopLevelBrowsingContextID, error) {
	bc, err := n.NextBrowsingContextID()
	if err != nil {
		return TopLevelBrowsingContextID{}, err
	}
	return TopLevelBrowsingContextID{BrowsingContextID: bc}, nil
}

// MustPipelineID allocates a pipeline id and panics if the namespace is unusable
func (n *Namespace) MustPipelineID() PipelineID {
	p, err := n.NextPipelineID()
	if err != nil {
		panic(err)
	}
	return p
}

// MustBrowsingContextID allocates a browsing context id and panics if the namespace is unusable
func (n *Namespace) MustBrowsingContextID() BrowsingContextID {
	b, err := n.NextBrowsingContextID()
	if err != nil {
		panic(err)
	}
	return b
}

func (n *Namespace) next(counter *atomic.Uint32) (NamespaceID, uint32, error) {
	if !n.installed.Load() {
		return 0, 0, ErrNotInstalled
	}
	index := counter.Inc()
	if index == 0 || index == math.MaxUint32 {
		// pin the counter so a wrapped namespace never hands out a reused index
		counter.Store(math.MaxUint32)
		return 0, 0, fmt.Errorf("%w: %d", ErrNamespaceExhausted, n.id)
	}
	return n.id, index, nil
}

// NamespaceAllocator hands out fresh namespace ids to spawned content.
// Only the constellation owns one.
type NamespaceAllocator struct {
	next atomic.Uint32
}

// NewNamespaceAllocator starts allocation at FirstContentNamespace
func NewNamespaceAllocator() *NamespaceAllocator {
	a := &NamespaceAllocator{}
	a.next.Store(uint32(FirstContentNamespace))
	return a
}

// Next returns an unused namespace id
func (a *NamespaceAllocator) Next() NamespaceID {
	return NamespaceID(a.next.Inc() - 1)
}
