package assetcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meigma/assetcache"
	"github.com/meigma/assetcache/cache/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunLifecycleEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	storage := memory.New()
	_, err := storage.Open(ctx, "v0")
	require.NoError(t, err)

	network := siteNetwork()
	m := newManager(t, storage, network, "v1", "/a.html", "/b.css")

	events := make(chan *assetcache.Event)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, events) }()

	installEv := assetcache.InstallEvent()
	events <- installEv
	require.NoError(t, installEv.Wait(ctx).Err)

	activateEv := assetcache.ActivateEvent()
	events <- activateEv
	res := activateEv.Wait(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"v0"}, res.Removed)

	network.Reset()
	fetches := []*assetcache.Event{
		assetcache.FetchEvent(get(t, origin+"/a.html")),
		assetcache.FetchEvent(get(t, origin+"/b.css")),
		assetcache.FetchEvent(get(t, origin+"/c.js")),
	}
	for _, ev := range fetches {
		events <- ev
	}

	wantBodies := []string{"<h1>a</h1>", "body{}", "console.log('c')"}
	wantSources := []assetcache.Source{assetcache.SourceCache, assetcache.SourceCache, assetcache.SourceNetwork}
	for i, ev := range fetches {
		res := ev.Wait(ctx)
		require.NoError(t, res.Err)
		assert.Equal(t, wantSources[i], res.Source)
		assert.Equal(t, wantBodies[i], readBody(t, res.Response))
	}
	assert.Equal(t, 1, network.Total())

	close(events)
	require.NoError(t, <-done)
}

func TestRunActivateBeforeInstall(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := newManager(t, memory.New(), siteNetwork(), "v1", "/a.html")
	events := make(chan *assetcache.Event, 1)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, events) }()

	ev := assetcache.ActivateEvent()
	events <- ev
	assert.ErrorIs(t, ev.Wait(ctx).Err, assetcache.ErrInvalidTransition)

	close(events)
	require.NoError(t, <-done)
}

func TestRunUnknownEvent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m := newManager(t, memory.New(), siteNetwork(), "v1")
	events := make(chan *assetcache.Event, 2)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, events) }()

	ev := &assetcache.Event{Kind: assetcache.EventKind(42)}
	events <- nil
	events <- ev
	close(events)
	require.NoError(t, <-done)
	assert.Equal(t, "unknown", ev.Kind.String())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	m := newManager(t, memory.New(), siteNetwork(), "v1")

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, make(chan *assetcache.Event)) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEventWaitHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := assetcache.InstallEvent().Wait(ctx)
	assert.ErrorIs(t, res.Err, context.Canceled)
}
