package constellation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/compositor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/pipeline"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

// fakeSpawner records spawned content threads and keeps their queues
type fakeSpawner struct {
	mu        sync.Mutex
	endpoints *sandbox.Endpoints
	fail      error
	spawned   []*sandbox.UnprivilegedContent
	queues    map[id.PipelineID]*eventloop.Channel
}

func (f *fakeSpawner) Spawn(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	content, err := sandbox.Decode(payload)
	if err != nil {
		return err
	}
	v, err := f.endpoints.Take(content.ScriptEndpoint)
	if err != nil {
		return err
	}
	f.spawned = append(f.spawned, content)
	f.queues[content.Pipeline] = v.(*eventloop.Channel)
	return nil
}

func (f *fakeSpawner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawned)
}

func (f *fakeSpawner) queue(p id.PipelineID) *eventloop.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queues[p]
}

type recordingSink struct {
	mu     sync.Mutex
	events []embedder.Event
}

func (s *recordingSink) Publish(e embedder.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) types() []embedder.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]embedder.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	t          *testing.T
	c          *Constellation
	spawner    *fakeSpawner
	endpoints  *sandbox.Endpoints
	compositor *compositor.Compositor
	sink       *recordingSink
	embedderNS *id.Namespace
}

func newHarness(t *testing.T, retained int) *harness {
	endpoints := sandbox.NewEndpoints()
	h := &harness{
		t:          t,
		spawner:    &fakeSpawner{endpoints: endpoints, queues: make(map[id.PipelineID]*eventloop.Channel)},
		endpoints:  endpoints,
		compositor: compositor.New(nil),
		sink:       &recordingSink{},
		embedderNS: id.InstalledNamespace(id.EmbedderNamespace),
	}
	c, err := New(Options{
		Spawner:    h.spawner,
		Endpoints:  endpoints,
		Compositor: h.compositor,
		Events:     h.sink,
		Retention:  NewLRURetention(retained),
	})
	require.NoError(t, err)
	h.c = c
	return h
}

func (h *harness) openTab(url string) id.TopLevelBrowsingContextID {
	top, err := h.embedderNS.NextTopLevelID()
	require.NoError(h.t, err)
	h.c.handle(NewTopLevel{TopLevel: top, URL: url})
	require.Contains(h.t, h.c.topLevels, top)
	return top
}

func (h *harness) root(top id.TopLevelBrowsingContextID) *history.BrowsingContext {
	bc, ok := h.c.contexts[top.Root()]
	require.True(h.t, ok)
	return bc
}

func (h *harness) current(bc id.BrowsingContextID) id.PipelineID {
	return h.c.contexts[bc].Current().Pipeline()
}

// load starts a navigation and returns the pending pipeline
func (h *harness) load(bc id.BrowsingContextID, url string, replace bool) *pipeline.Pipeline {
	h.c.handle(LoadURL{BrowsingContext: bc, URL: url, Replace: replace})
	pend, ok := h.c.pending[bc]
	require.True(h.t, ok, "navigation should be pending")
	p, ok := h.c.pipelines.Get(pend.pipeline)
	require.True(h.t, ok)
	return p
}

func (h *harness) complete(p *pipeline.Pipeline) {
	h.c.handle(LoadComplete{Pipeline: p.ID, Generation: p.Generation, Title: "done"})
}

func (h *harness) navigateAndCommit(bc id.BrowsingContextID, url string) *pipeline.Pipeline {
	p := h.load(bc, url, false)
	h.complete(p)
	require.Equal(h.t, p.ID, h.current(bc))
	return p
}

func drain(ch *eventloop.Channel) []eventloop.Message {
	var out []eventloop.Message
	for {
		select {
		case msg := <-ch.Messages():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestNewRequiresInstalledNamespace(t *testing.T) {
	_, err := New(Options{
		Namespace: id.NewNamespace(),
		Spawner:   &fakeSpawner{},
		Endpoints: sandbox.NewEndpoints(),
	})
	assert.ErrorIs(t, err, id.ErrNotInstalled)

	_, err = New(Options{})
	assert.Error(t, err)
}

func TestNewPublishesProxy(t *testing.T) {
	h := newHarness(t, 4)
	v, err := h.endpoints.Lookup(ConstellationEndpoint)
	require.NoError(t, err)
	assert.IsType(t, &Proxy{}, v)
}

func TestNewTopLevel(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://example.com/")

	bc := h.root(top)
	assert.True(t, bc.IsTopLevel())
	assert.Equal(t, "https://example.com/", bc.Current().URL())
	assert.False(t, bc.CanGoBack())
	assert.Equal(t, 1, h.c.pipelines.Len())
	assert.Equal(t, 1, h.spawner.count())

	root, ok := h.compositor.Root(top)
	require.True(t, ok)
	assert.Equal(t, bc.Current().Pipeline(), root)
	assert.Contains(t, h.sink.types(), embedder.TopLevelCreated)

	// a second open of the same id is ignored
	h.c.handle(NewTopLevel{TopLevel: top, URL: "https://other.org/"})
	assert.Equal(t, 1, h.c.pipelines.Len())
}

func TestNewTopLevelWithBadURLShowsErrorDocument(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("ftp://example.com/file")

	assert.True(t, strings.HasPrefix(h.root(top).Current().URL(), "about:neterror?"))
}

func TestLoadCommitPushesHistory(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	p := h.load(bc, "https://b.com/", false)
	assert.Equal(t, pipeline.StatePending, p.State)
	assert.Equal(t, first, h.current(bc), "nothing changes before the load completes")

	h.complete(p)
	ctx := h.root(top)
	assert.Equal(t, p.ID, ctx.Current().Pipeline())
	require.Len(t, ctx.Prev(), 1)
	assert.Equal(t, first, ctx.Prev()[0].Pipeline())
	assert.Equal(t, pipeline.StateActive, p.State)

	old, ok := h.c.pipelines.Get(first)
	require.True(t, ok, "previous document is retained")
	assert.Equal(t, pipeline.StateInactive, old.State)
	assert.Equal(t, 1, h.c.opts.Retention.Len())

	msgs := drain(h.spawner.queue(first))
	assert.Contains(t, msgs, eventloop.Message(eventloop.SetActivity{Pipeline: first, Active: false}))

	assert.Contains(t, h.sink.types(), embedder.LoadStarted)
	assert.Contains(t, h.sink.types(), embedder.HistoryChanged)
}

func TestStaleLoadCompleteIsDiscarded(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	superseded := h.load(bc, "https://b.com/", false)
	latest := h.load(bc, "https://c.com/", false)

	_, ok := h.c.pipelines.Get(superseded.ID)
	assert.False(t, ok, "a newer navigation closes the one in flight")

	// the superseded pipeline is gone
	h.c.handle(LoadComplete{Pipeline: superseded.ID, Generation: superseded.Generation})
	assert.Equal(t, first, h.current(bc))

	// the latest pipeline answering with an older generation
	h.c.handle(LoadComplete{Pipeline: latest.ID, Generation: latest.Generation - 1})
	assert.Equal(t, first, h.current(bc))
	assert.Empty(t, h.root(top).Prev())

	h.complete(latest)
	assert.Equal(t, latest.ID, h.current(bc))
}

func TestStaleScriptNavigationIsDiscarded(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	superseded := h.load(bc, "https://b.com/", false)
	latest := h.load(bc, "https://c.com/", false)

	// the closed document's script asked for a load before it went away
	h.c.handle(LoadURL{BrowsingContext: bc, URL: "https://evil.test/", Source: superseded.ID})
	assert.Equal(t, latest.ID, h.c.pending[bc].pipeline)
	_, ok := h.c.pipelines.Get(latest.ID)
	assert.True(t, ok, "the newer navigation survives")

	h.complete(latest)
	require.Equal(t, latest.ID, h.current(bc))

	// a retained document no longer speaks for the tab
	h.c.handle(LoadURL{BrowsingContext: bc, URL: "https://evil.test/", Source: first})
	assert.NotContains(t, h.c.pending, bc)
	h.c.handle(Navigate{Direction: history.Back, TopLevel: top, Source: first})
	assert.Equal(t, latest.ID, h.current(bc))

	// a document cannot navigate a context it does not live in
	other := h.openTab("https://d.com/")
	h.c.handle(LoadURL{BrowsingContext: bc, URL: "https://evil.test/", Source: h.current(other.Root())})
	assert.NotContains(t, h.c.pending, bc)
	h.c.handle(Navigate{Direction: history.Back, TopLevel: top, Source: h.current(other.Root())})
	assert.Equal(t, latest.ID, h.current(bc))

	// the current document still may
	h.c.handle(Navigate{Direction: history.Back, TopLevel: top, Source: latest.ID})
	assert.Equal(t, first, h.current(bc))
	h.c.handle(LoadURL{BrowsingContext: bc, URL: "https://e.com/", Source: first})
	assert.Contains(t, h.c.pending, bc)
}

func TestReplaceCommitDoesNotPushHistory(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	p := h.load(bc, "https://a.com/redirected", true)
	h.complete(p)

	ctx := h.root(top)
	assert.Equal(t, p.ID, ctx.Current().Pipeline())
	assert.Equal(t, "https://a.com/redirected", ctx.Current().URL())
	assert.Empty(t, ctx.Prev())

	_, ok := h.c.pipelines.Get(first)
	assert.False(t, ok, "replaced document is not referenced by any entry")
}

func TestSameSiteSharesEventLoop(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://www.example.com/")
	bc := top.Root()
	first := h.current(bc)

	same := h.load(bc, "https://docs.example.com/guide", false)
	assert.Equal(t, 1, h.spawner.count(), "same site joins the existing content thread")

	firstPipeline, _ := h.c.pipelines.Get(first)
	assert.True(t, firstPipeline.EventLoop.Same(same.EventLoop))
	assert.Equal(t, 2, same.EventLoop.Refs())

	msgs := drain(h.spawner.queue(first))
	require.Len(t, msgs, 1)
	assert.Equal(t, same.ID, msgs[0].(eventloop.NewPipeline).Pipeline)

	h.load(bc, "https://other.org/", false)
	assert.Equal(t, 2, h.spawner.count(), "cross site spawns a new content thread")
	assert.Equal(t, 1, firstPipeline.EventLoop.Refs(), "superseded pipeline released its reference")
}

func TestClosedEventLoopIsRespawned(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()

	// the content thread gave up on its queue before reading it
	h.spawner.queue(h.current(bc)).Close()

	next := h.load(bc, "https://a.com/next", false)
	assert.Equal(t, 2, h.spawner.count(), "a closed queue is not shared")
	require.NotNil(t, h.spawner.queue(next.ID))
}

func TestEventLoopExitsWithLastPipeline(t *testing.T) {
	h := newHarness(t, 0)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)
	queue := h.spawner.queue(first)

	h.navigateAndCommit(bc, "https://b.com/")

	_, ok := h.c.pipelines.Get(first)
	assert.False(t, ok, "nothing is retained")
	assert.True(t, h.root(top).Prev()[0].Discarded())

	msgs := drain(queue)
	assert.Contains(t, msgs, eventloop.Message(eventloop.ExitPipeline{Pipeline: first}))
	assert.Equal(t, eventloop.Message(eventloop.Exit{}), msgs[len(msgs)-1])
}

func TestCrashOfCurrentShowsRecoveryDocument(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/page")
	bc := top.Root()
	crashed := h.current(bc)
	entry := h.root(top).Current()

	h.c.handle(FrameCrashed{Pipeline: crashed, Reason: "script panic"})

	_, ok := h.c.pipelines.Get(crashed)
	assert.False(t, ok)
	recovery := h.current(bc)
	assert.NotEqual(t, crashed, recovery)
	assert.Same(t, entry, h.root(top).Current(), "recovery goes through the same entry")
	assert.Equal(t, "https://a.com/page", entry.URL())

	p, ok := h.c.pipelines.Get(recovery)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(p.URL, "about:crash?"))
	root, _ := h.compositor.Root(top)
	assert.Equal(t, recovery, root)

	// a second report for the same pipeline changes nothing
	pipelines := h.c.pipelines.Len()
	h.c.handle(FrameCrashed{Pipeline: crashed})
	h.c.handle(PipelineExited{Pipeline: crashed})
	assert.Equal(t, pipelines, h.c.pipelines.Len())
	assert.Equal(t, recovery, h.current(bc))
	assert.Equal(t, 1, countType(h.sink.types(), embedder.PipelineCrashed))
}

func TestCrashRecoveryKeepsAliasedEntries(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	h.navigateAndCommit(bc, "https://b.com/")

	crashed := h.current(bc)
	h.c.handle(FrameCrashed{Pipeline: crashed})
	recovery := h.current(bc)

	h.c.handle(Navigate{Direction: history.Back, TopLevel: top})
	h.c.handle(Navigate{Direction: history.Forward, TopLevel: top})
	assert.Equal(t, recovery, h.current(bc), "the crashed entry still shows the recovery document")
}

func TestCrashOfRetainedPipelineDiscardsEntries(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)
	h.navigateAndCommit(bc, "https://b.com/")

	h.c.handle(FrameCrashed{Pipeline: first})
	prev := h.root(top).Prev()
	require.Len(t, prev, 1)
	assert.True(t, prev[0].Discarded())
	assert.Equal(t, "https://a.com/", prev[0].URL())

	// traversing to the discarded entry reloads it through the same handle
	h.c.handle(Navigate{Direction: history.Back, TopLevel: top})
	reloaded := h.current(bc)
	assert.False(t, reloaded.IsZero())
	assert.NotEqual(t, first, reloaded)
	assert.Same(t, prev[0], h.root(top).Current())
}

func TestCrashOfPendingPipeline(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	p := h.load(bc, "https://b.com/", false)
	h.c.handle(FrameCrashed{Pipeline: p.ID})

	assert.NotContains(t, h.c.pending, bc)
	assert.Equal(t, first, h.current(bc))
	h.complete(p)
	assert.Equal(t, first, h.current(bc))
}

func TestTraversalReactivatesRetainedPipeline(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)
	second := h.navigateAndCommit(bc, "https://b.com/")
	drain(h.spawner.queue(first))

	h.c.handle(Navigate{Direction: history.Back, TopLevel: top})
	assert.Equal(t, first, h.current(bc))
	assert.Equal(t, 2, h.spawner.count(), "no reload needed")

	p, _ := h.c.pipelines.Get(first)
	assert.Equal(t, pipeline.StateActive, p.State)
	assert.Equal(t, pipeline.StateInactive, second.State)
	assert.Contains(t, drain(h.spawner.queue(first)), eventloop.Message(eventloop.SetActivity{Pipeline: first, Active: true}))

	ctx := h.root(top)
	assert.False(t, ctx.CanGoBack())
	assert.True(t, ctx.CanGoForward())

	h.c.handle(Navigate{Direction: history.Forward, TopLevel: top})
	assert.Equal(t, second.ID, h.current(bc))
}

func TestTraversalSupersedesPendingLoad(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	h.navigateAndCommit(bc, "https://b.com/")

	p := h.load(bc, "https://c.com/", false)
	h.c.handle(Navigate{Direction: history.Back, TopLevel: top})

	h.complete(p)
	assert.Equal(t, "https://a.com/", h.root(top).Current().URL())
}

func TestRetentionEvictionDiscardsAndReloads(t *testing.T) {
	h := newHarness(t, 1)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)
	h.navigateAndCommit(bc, "https://b.com/")
	h.navigateAndCommit(bc, "https://c.com/")

	_, ok := h.c.pipelines.Get(first)
	assert.False(t, ok, "oldest retired pipeline was evicted")
	prev := h.root(top).Prev()
	require.Len(t, prev, 2)
	assert.True(t, prev[0].Discarded())
	assert.False(t, prev[1].Discarded())

	h.c.handle(Navigate{Direction: history.Back, TopLevel: top, Steps: 2})
	assert.Equal(t, "https://a.com/", h.root(top).Current().URL())
	assert.False(t, h.current(bc).IsZero())
	assert.Equal(t, 4, h.spawner.count())
}

func TestNavigateClearsForwardAndClosesPipelines(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	second := h.navigateAndCommit(bc, "https://b.com/")
	h.c.handle(Navigate{Direction: history.Back, TopLevel: top})

	h.navigateAndCommit(bc, "https://c.com/")
	assert.False(t, h.root(top).CanGoForward())
	_, ok := h.c.pipelines.Get(second.ID)
	assert.False(t, ok)
	_, forward := h.c.topLevels[top].joint.Len()
	assert.Zero(t, forward)
}

func TestIFrameJointHistory(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	rootPipeline := h.current(top.Root())

	h.c.handle(ScriptLoadedIFrame{Parent: rootPipeline, URL: "https://a.com/frame"})
	parent, _ := h.c.pipelines.Get(rootPipeline)
	require.Len(t, parent.Children, 1)
	frame := parent.Children[0]
	assert.Equal(t, 1, h.spawner.count(), "same-site iframe shares the tab's content thread")

	frameFirst := h.current(frame)
	h.navigateAndCommit(frame, "https://ads.net/")

	h.c.handle(Navigate{Direction: history.Back, TopLevel: top})
	assert.Equal(t, frameFirst, h.current(frame))
	assert.Equal(t, rootPipeline, h.current(top.Root()), "only the iframe moved")

	result := h.c.historyOf(top)
	require.True(t, result.Found)
	require.Len(t, result.Contexts, 2)
	assert.Equal(t, top.Root(), result.Contexts[0].ID)
	assert.Equal(t, frame, result.Contexts[1].ID)
	assert.True(t, result.CanGoForward)
}

func TestClosingParentClosesIFrames(t *testing.T) {
	h := newHarness(t, 0)
	top := h.openTab("https://a.com/")
	rootPipeline := h.current(top.Root())
	h.c.handle(ScriptLoadedIFrame{Parent: rootPipeline, URL: "https://b.com/frame"})
	parent, _ := h.c.pipelines.Get(rootPipeline)
	frame := parent.Children[0]
	h.navigateAndCommit(frame, "https://b.com/frame2")

	h.navigateAndCommit(top.Root(), "https://c.com/")

	assert.NotContains(t, h.c.contexts, frame)
	back, forward := h.c.topLevels[top].joint.Len()
	assert.Equal(t, 1, back, "only the root navigation remains in the joint history")
	assert.Zero(t, forward)
}

func TestCloseTopLevel(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)
	h.navigateAndCommit(bc, "https://b.com/")
	h.load(bc, "https://c.com/", false)

	h.c.handle(CloseTopLevel{TopLevel: top})

	assert.Zero(t, h.c.pipelines.Len())
	assert.Empty(t, h.c.contexts)
	assert.Empty(t, h.c.pending)
	assert.Zero(t, h.compositor.Layers())
	_, ok := h.compositor.Root(top)
	assert.False(t, ok)

	msgs := drain(h.spawner.queue(first))
	assert.Equal(t, eventloop.Message(eventloop.Exit{}), msgs[len(msgs)-1])
	assert.Contains(t, h.sink.types(), embedder.TopLevelClosed)

	h.c.handle(CloseTopLevel{TopLevel: top})
	assert.Equal(t, 1, countType(h.sink.types(), embedder.TopLevelClosed))
}

func TestSpawnFailureLeavesNoState(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	h.spawner.fail = errors.New("out of threads")
	h.c.handle(LoadURL{BrowsingContext: bc, URL: "https://b.com/"})

	assert.NotContains(t, h.c.pending, bc)
	assert.Equal(t, 1, h.c.pipelines.Len())
	assert.Equal(t, first, h.current(bc))
	assert.Zero(t, h.endpoints.Pending())
	assert.Len(t, h.c.eventLoops, 1)
}

func TestNewTopLevelSpawnFailureIsReported(t *testing.T) {
	h := newHarness(t, 4)
	h.spawner.fail = errors.New("out of threads")

	top, err := h.embedderNS.NextTopLevelID()
	require.NoError(t, err)
	h.c.handle(NewTopLevel{TopLevel: top, URL: "https://a.com/"})

	assert.NotContains(t, h.c.topLevels, top)
	require.Equal(t, []embedder.EventType{embedder.TopLevelFailed}, h.sink.types())
	failed := h.sink.events[0]
	assert.Equal(t, top.String(), failed.TopLevel)
	assert.Equal(t, "https://a.com/", failed.URL)
	assert.Contains(t, failed.Reason, "out of threads")
}

func TestSpawnerPanicDoesNotEscape(t *testing.T) {
	endpoints := sandbox.NewEndpoints()
	c, err := New(Options{Spawner: panicSpawner{}, Endpoints: endpoints})
	require.NoError(t, err)
	top := id.TopLevelBrowsingContextID{BrowsingContextID: id.BrowsingContextID{Namespace: id.EmbedderNamespace, Index: 1}}

	assert.NotPanics(t, func() { c.handle(NewTopLevel{TopLevel: top, URL: "https://a.com/"}) })
	assert.Zero(t, c.pipelines.Len())
	assert.NotContains(t, c.topLevels, top)
}

type panicSpawner struct{}

func (panicSpawner) Spawn(context.Context, []byte) error { panic("spawner bug") }

type mockHangMonitor struct {
	mock.Mock
}

func (m *mockHangMonitor) Unregister() {
	m.Called()
}

func TestHangMonitorRegistration(t *testing.T) {
	h := newHarness(t, 0)
	top := h.openTab("https://a.com/")
	bc := top.Root()
	first := h.current(bc)

	monitor := &mockHangMonitor{}
	monitor.On("Unregister").Once()
	h.c.handle(RegisterBackgroundHangMonitor{Pipeline: first, Monitor: monitor})
	monitor.AssertNotCalled(t, "Unregister")

	h.c.handle(HangAlert{Pipeline: first, HungFor: 3 * time.Second})
	assert.Contains(t, h.sink.types(), embedder.HangDetected)

	h.navigateAndCommit(bc, "https://b.com/")
	monitor.AssertExpectations(t)

	late := &mockHangMonitor{}
	late.On("Unregister").Once()
	h.c.handle(RegisterBackgroundHangMonitor{Pipeline: first, Monitor: late})
	late.AssertExpectations(t)
}

func TestQueryHistoryReply(t *testing.T) {
	h := newHarness(t, 4)
	top := h.openTab("https://a.com/")
	h.navigateAndCommit(top.Root(), "https://b.com/")

	reply := make(chan HistoryResult, 1)
	h.c.handle(QueryHistory{TopLevel: top, Reply: reply})
	result := <-reply
	require.True(t, result.Found)
	require.Len(t, result.Contexts, 1)
	assert.Equal(t, "https://b.com/", result.Contexts[0].Current.URL)
	require.Len(t, result.Contexts[0].Prev, 1)
	assert.True(t, result.CanGoBack)

	// an unbuffered reply nobody reads must not block the actor
	h.c.handle(QueryHistory{TopLevel: top, Reply: make(chan HistoryResult)})

	h.c.handle(QueryHistory{TopLevel: id.TopLevelBrowsingContextID{}, Reply: reply})
	assert.False(t, (<-reply).Found)
}

func TestRunExitTearsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, 4)
	proxy := h.c.Proxy()
	top, err := h.embedderNS.NextTopLevelID()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.c.Run(context.Background()) }()

	require.NoError(t, proxy.Send(NewTopLevel{TopLevel: top, URL: "https://a.com/"}))
	result, err := proxy.QueryHistory(context.Background(), top)
	require.NoError(t, err)
	require.True(t, result.Found)
	first := result.Contexts[0].Current.Pipeline

	require.NoError(t, proxy.Send(Exit{}))
	require.NoError(t, <-done)
	<-h.c.Done()

	assert.ErrorIs(t, proxy.Send(LoadURL{BrowsingContext: top.Root(), URL: "https://b.com/"}), ErrDisconnected)
	assert.True(t, proxy.Disconnected())

	msgs := drain(h.spawner.queue(first))
	require.NotEmpty(t, msgs)
	assert.Equal(t, eventloop.Message(eventloop.Exit{}), msgs[len(msgs)-1])
	assert.Equal(t, embedder.Shutdown, h.sink.types()[len(h.sink.types())-1])
}

func TestRunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, h.c.Proxy().Send(Exit{}), ErrDisconnected)
}

func countType(types []embedder.EventType, want embedder.EventType) int {
	n := 0
	for _, got := range types {
		if got == want {
			n++
		}
	}
	return n
}
