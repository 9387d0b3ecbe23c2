package k8s

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/stretchr/testify/require"
)

type fakeForwarder struct {
	stopCh  chan struct{}
	readyCh chan struct{}
	exit    chan error
	ready   bool
	exited  chan struct{}
}

func (f *fakeForwarder) ForwardPorts() error {
	defer close(f.exited)
	if f.ready {
		close(f.readyCh)
	}
	select {
	case <-f.stopCh:
		return nil
	case err := <-f.exit:
		return err
	}
}

type fakeForwarders struct {
	mu      sync.Mutex
	created []*fakeForwarder
	// notReady forwarders never report readiness
	notReady bool
}

func (f *fakeForwarders) factory(_ context.Context, stopCh, readyCh chan struct{}) (forwarder, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fw := &fakeForwarder{stopCh: stopCh, readyCh: readyCh, exit: make(chan error, 1), ready: !f.notReady, exited: make(chan struct{})}
	f.created = append(f.created, fw)
	return fw, fmt.Sprintf("temporal/frontend #%d", len(f.created)), nil
}

func (f *fakeForwarders) get(i int) *fakeForwarder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}

func (f *fakeForwarders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func testTunnel(forwarders *fakeForwarders) *PortForwardTunnel {
	return &PortForwardTunnel{
		Service:      appbase.NewServiceBase("port-forward"),
		localPort:    TemporalPort,
		newForwarder: forwarders.factory,
		readyWait:    time.Second,
	}
}

func TestTunnelRestartsDeadForwarder(t *testing.T) {
	forwarders := &fakeForwarders{}
	tunnel := testTunnel(forwarders)
	ctx := context.Background()

	require.False(t, tunnel.Alive())
	require.NoError(t, tunnel.Start(ctx))
	require.True(t, tunnel.Alive())
	require.NoError(t, tunnel.EnsureAlive(ctx))
	require.Equal(t, 1, forwarders.count())

	first := forwarders.get(0)
	first.exit <- errors.New("lost connection to pod")
	<-first.exited
	require.Eventually(t, func() bool { return !tunnel.Alive() }, time.Second, time.Millisecond)

	require.NoError(t, tunnel.EnsureAlive(ctx))
	require.Equal(t, 2, forwarders.count())
	require.True(t, tunnel.Alive())

	require.NoError(t, tunnel.Stop())
	require.False(t, tunnel.Alive())
	<-forwarders.get(1).exited
}

func TestTunnelRestartWaitsForPreviousForwarder(t *testing.T) {
	forwarders := &fakeForwarders{}
	tunnel := testTunnel(forwarders)
	ctx := context.Background()

	require.NoError(t, tunnel.Start(ctx))
	require.NoError(t, tunnel.Start(ctx))
	select {
	case <-forwarders.get(0).exited:
	default:
		require.Fail(t, "previous forwarder is still running after restart")
	}
	// late exit of the previous forwarder doesn't affect the current one
	require.True(t, tunnel.Alive())
	require.NoError(t, tunnel.Stop())
}

func TestTunnelNotReady(t *testing.T) {
	forwarders := &fakeForwarders{notReady: true}
	tunnel := testTunnel(forwarders)
	tunnel.readyWait = 20 * time.Millisecond

	err := tunnel.Start(context.Background())
	require.ErrorContains(t, err, "was not ready within 20ms")
	require.False(t, tunnel.Alive())
	<-forwarders.get(0).exited

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tunnel.readyWait = time.Hour
	require.ErrorIs(t, tunnel.Start(ctx), context.Canceled)
	require.False(t, tunnel.Alive())
}
