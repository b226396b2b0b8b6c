// Package id provides identifier generation for the constellation.
//
// Two families of identifiers live here:
//   - Namespaced ids (PipelineID, BrowsingContextID, TopLevelBrowsingContextID):
//     a per-process namespace tag plus a per-namespace counter. No cross-process
//     coordination is needed because every process allocates from its own namespace.
//   - Correlation ids (LoadID): prefixed ULIDs used to tie log lines of one
//     navigation together. They carry no identity semantics.
//
// Design Principles:
//   - Namespaces are installed explicitly on a Namespace value and passed to
//     whoever allocates; there is no ambient global namespace.
//   - Allocation is lock-free after installation.
//   - Using a namespace before installation is reported as ErrNotInstalled, or
//     panics through the Must* allocators.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LoadID correlates the log lines of a single navigation
type LoadID string

// LoadPrefix is the prefix used for load correlation ids
const LoadPrefix = "load"

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewLoadID generates a new load correlation id
func NewLoadID() LoadID {
	return LoadID(Default().GenerateWithPrefix(LoadPrefix))
}

func (id LoadID) String() string { return string(id) }

// Validate checks that the id is a load-prefixed ULID
func (id LoadID) Validate() error {
	_, err := id.ulid()
	return err
}

// Started returns when the navigation that minted the id began
func (id LoadID) Started() (time.Time, error) {
	parsed, err := id.ulid()
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

func (id LoadID) ulid() (ulid.ULID, error) {
	prefix, rest, ok := strings.Cut(string(id), "_")
	if !ok || prefix != LoadPrefix {
		return ulid.ULID{}, fmt.Errorf("%w: load id %q", ErrInvalidID, string(id))
	}
	parsed, err := ulid.Parse(rest)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("%w: load id %q: %v", ErrInvalidID, string(id), err)
	}
	return parsed, nil
}
