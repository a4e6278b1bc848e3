package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestMarkDOMReadyReleasesWait(t *testing.T) {
	t.Parallel()

	p := &Page{}
	ready := make(chan struct{})
	p.mu.Lock()
	p.domReady = ready
	p.mu.Unlock()

	p.markDOMReady()

	select {
	case <-ready:
	default:
		t.Fatal("wait not released")
	}

	// Repeated fires after release must not panic on a closed channel.
	p.markDOMReady()
}

func TestWaitSignal(t *testing.T) {
	t.Parallel()

	ready := make(chan struct{})
	close(ready)
	require.NoError(t, waitSignal(ready).Do(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := waitSignal(make(chan struct{})).Do(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLowerHeaders(t *testing.T) {
	t.Parallel()

	out := lowerHeaders(network.Headers{"Content-Type": "text/html", "X-Cache": "HIT"})
	require.Equal(t, "text/html", out["content-type"])
	require.Equal(t, "HIT", out["x-cache"])
}
