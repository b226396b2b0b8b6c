package content

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/embedder"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

type eventLog struct {
	mu     sync.Mutex
	events []embedder.Event
}

func (l *eventLog) Publish(e embedder.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) titles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.Type == embedder.LoadComplete {
			out = append(out, e.Title)
		}
	}
	return out
}

// TestConstellationDrivesContentThreads runs the real actor against real
// content threads: a tab loads a page with a frame, navigates, and a script on
// the second page sends it back.
func TestConstellationDrivesContentThreads(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fetcher := newFakeFetcher()
	fetcher.serve("https://a.test/", `<title>Home</title><iframe src="/frame"></iframe>`)
	fetcher.serve("https://a.test/frame", `<title>Frame</title>`)
	fetcher.serve("https://a.test/next", `<title>Next</title><script>history.back()</script>`)

	endpoints := sandbox.NewEndpoints()
	endpoints.Publish(constellation.ResourceEndpoint, fetcher)
	launcher := NewLauncher(endpoints, nil, Config{}, nil)
	spawner := sandbox.NewThreadSpawner(launcher.Launch, nil)
	events := &eventLog{}

	c, err := constellation.New(constellation.Options{
		Spawner:        spawner,
		Endpoints:      endpoints,
		Events:         events,
		ScriptsEnabled: true,
		ScriptTimeout:  time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	proxy := c.Proxy()
	top, err := id.InstalledNamespace(id.EmbedderNamespace).NextTopLevelID()
	require.NoError(t, err)
	require.NoError(t, proxy.Send(constellation.NewTopLevel{TopLevel: top, URL: "https://a.test/"}))

	query := func() constellation.HistoryResult {
		qctx, qcancel := context.WithTimeout(ctx, time.Second)
		defer qcancel()
		result, err := proxy.QueryHistory(qctx, top)
		require.NoError(t, err)
		return result
	}

	require.Eventually(t, func() bool {
		return len(query().Contexts) == 2
	}, 2*time.Second, 10*time.Millisecond, "the frame becomes a nested browsing context")

	result := query()
	assert.Equal(t, "https://a.test/frame", result.Contexts[1].Current.URL)
	root := result.Contexts[0].ID

	require.NoError(t, proxy.Send(constellation.LoadURL{BrowsingContext: root, URL: "https://a.test/next"}))

	require.Eventually(t, func() bool {
		r := query()
		return r.CanGoForward && r.Contexts[0].Current.URL == "https://a.test/"
	}, 2*time.Second, 10*time.Millisecond, "the script on the next page traverses back")

	result = query()
	require.Len(t, result.Contexts[0].Next, 1)
	assert.Equal(t, "https://a.test/next", result.Contexts[0].Next[0].URL)
	assert.False(t, result.Contexts[0].Next[0].Discarded(), "the next page is retained")
	assert.Subset(t, events.titles(), []string{"Home", "Frame", "Next"})

	require.NoError(t, proxy.Send(constellation.Exit{}))
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("constellation did not stop")
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	assert.NoError(t, spawner.Wait(waitCtx), "every content thread exits with the constellation")
	spawner.Close()

	assert.ErrorIs(t, proxy.Send(constellation.Navigate{Direction: history.Back, TopLevel: top}), constellation.ErrDisconnected)
}
