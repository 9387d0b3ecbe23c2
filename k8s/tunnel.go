package k8s

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"go.uber.org/atomic"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

const (
	TemporalNamespace = "temporal"
	TemporalService   = "temporal-frontend-headless"
	TemporalPort      = 7233
	tunnelReadyWait   = 15 * time.Second
)

// forwarder runs port forwarding until its stop channel is closed
type forwarder interface {
	ForwardPorts() error
}

// forwarderFactory creates forwarder bound to stopCh and readyCh. Returns description of the forwarded target.
type forwarderFactory func(ctx context.Context, stopCh, readyCh chan struct{}) (forwarder, string, error)

// forwardSession is a single forwarder run
type forwardSession struct {
	stopCh chan struct{}
	done   chan struct{}
	alive  atomic.Bool
}

// stop closes the session and waits for its forwarder to release the local port
func (s *forwardSession) stop(wait time.Duration) bool {
	close(s.stopCh)
	select {
	case <-s.done:
		return true
	case <-time.After(wait):
		return false
	}
}

// PortForwardTunnel forwards local port to a pod backing a service, like `kubectl port-forward svc/<service>`.
// The forwarder goroutine is owned by the tunnel: Stop terminates it.
type PortForwardTunnel struct {
	appbase.Service
	client       *Client
	namespace    string
	service      string
	localPort    int
	remotePort   int
	newForwarder forwarderFactory
	readyWait    time.Duration

	mu      sync.Mutex
	session *forwardSession
}

func NewPortForwardTunnel(client *Client, namespace, service string, localPort, remotePort int) *PortForwardTunnel {
	t := &PortForwardTunnel{
		Service:    appbase.NewServiceBase("port-forward"),
		client:     client,
		namespace:  namespace,
		service:    service,
		localPort:  localPort,
		remotePort: remotePort,
		readyWait:  tunnelReadyWait,
	}
	t.newForwarder = t.portForwarder
	return t
}

// NewTemporalTunnel forwards localhost:7233 to temporal frontend
func NewTemporalTunnel(client *Client) *PortForwardTunnel {
	return NewPortForwardTunnel(client, TemporalNamespace, TemporalService, TemporalPort, TemporalPort)
}

func (t *PortForwardTunnel) portForwarder(ctx context.Context, stopCh, readyCh chan struct{}) (forwarder, string, error) {
	pod, targetPort, err := resolveServicePod(ctx, t.client, t.namespace, t.service, t.remotePort)
	if err != nil {
		return nil, "", err
	}
	req := t.client.Clientset.CoreV1().RESTClient().Post().
		Resource("pods").Namespace(t.namespace).Name(pod).SubResource("portforward")
	transport, upgrader, err := spdy.RoundTripperFor(t.client.RestConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create port-forward transport: %w", err)
	}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, req.URL())
	ports := []string{fmt.Sprintf("%d:%d", t.localPort, targetPort)}
	fw, err := portforward.New(dialer, ports, stopCh, readyCh, io.Discard, io.Discard)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create port-forward: %w", err)
	}
	return fw, fmt.Sprintf("%s/%s (pod %s:%d)", t.namespace, t.service, pod, targetPort), nil
}

// Start (re)starts forwarding and waits until local port is ready
func (t *PortForwardTunnel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	stopCh := make(chan struct{})
	readyCh := make(chan struct{})
	fw, target, err := t.newForwarder(ctx, stopCh, readyCh)
	if err != nil {
		return err
	}
	s := &forwardSession{stopCh: stopCh, done: make(chan struct{})}
	s.alive.Store(true)
	errCh := make(chan error, 1)
	go func() {
		defer close(s.done)
		err := fw.ForwardPorts()
		s.alive.Store(false)
		errCh <- err
	}()
	select {
	case <-readyCh:
		t.session = s
		t.Infof("Port-forward started: localhost:%d -> %s", t.localPort, target)
		return nil
	case err = <-errCh:
		return fmt.Errorf("port-forward to %s failed: %v", target, err)
	case <-time.After(t.readyWait):
		s.stop(t.readyWait)
		return fmt.Errorf("port-forward to %s was not ready within %s", target, t.readyWait)
	case <-ctx.Done():
		s.stop(t.readyWait)
		return ctx.Err()
	}
}

// Alive reports whether the current forwarder is running
func (t *PortForwardTunnel) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil && t.session.alive.Load()
}

// EnsureAlive restarts the forwarder if it has exited
func (t *PortForwardTunnel) EnsureAlive(ctx context.Context) error {
	if t.Alive() {
		return nil
	}
	t.Warnf("Port-forward died, restarting...")
	return t.Start(ctx)
}

func (t *PortForwardTunnel) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	return nil
}

func (t *PortForwardTunnel) stopLocked() {
	if t.session == nil {
		return
	}
	if !t.session.stop(t.readyWait) {
		t.Warnf("Port-forward did not exit within %s", t.readyWait)
	}
	t.session = nil
}

// resolveServicePod picks running pod selected by service and container port service port maps to
func resolveServicePod(ctx context.Context, client *Client, namespace, service string, servicePort int) (string, int, error) {
	svc, err := client.Clientset.CoreV1().Services(namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return "", 0, fmt.Errorf("failed to get service %s/%s: %w", namespace, service, err)
	}
	targetPort := servicePort
	for _, p := range svc.Spec.Ports {
		if int(p.Port) == servicePort && p.TargetPort.IntValue() > 0 {
			targetPort = p.TargetPort.IntValue()
		}
	}
	selector := labels.SelectorFromSet(svc.Spec.Selector).String()
	pods, err := client.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return "", 0, fmt.Errorf("failed to list pods of service %s/%s: %w", namespace, service, err)
	}
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodRunning && pod.DeletionTimestamp == nil {
			return pod.Name, targetPort, nil
		}
	}
	return "", 0, fmt.Errorf("no running pods for service %s/%s", namespace, service)
}
