package k8s

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

const (
	ClickHouseNamespace   = "clickhouse"
	ClickHousePodSelector = "clickhouse.altinity.com/app=chop"
)

// FindPod returns the first pod matching selector, falling back to the first pod of namespace
func FindPod(ctx context.Context, client kubernetes.Interface, namespace, selector string) (string, error) {
	for _, sel := range []string{selector, ""} {
		pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: sel})
		if err == nil && len(pods.Items) > 0 {
			return pods.Items[0].Name, nil
		}
	}
	return "", errorj.DiscoveryError.New("No pod found in %s namespace", namespace)
}

// PodExecutor runs commands inside a pod container, like `kubectl exec <pod> -- <command>`
type PodExecutor struct {
	client    *Client
	namespace string
	pod       string
	container string
}

func NewPodExecutor(client *Client, namespace, pod, container string) *PodExecutor {
	return &PodExecutor{client: client, namespace: namespace, pod: pod, container: container}
}

func (e *PodExecutor) Pod() string {
	return e.pod
}

// Run returns stdout of the command. Non-zero exit results in error with stderr.
func (e *PodExecutor) Run(ctx context.Context, command []string) (string, error) {
	req := e.client.Clientset.CoreV1().RESTClient().Post().
		Resource("pods").Namespace(e.namespace).Name(e.pod).SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: e.container,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)
	executor, err := remotecommand.NewSPDYExecutor(e.client.RestConfig, "POST", req.URL())
	if err != nil {
		return "", fmt.Errorf("failed to create executor: %w", err)
	}
	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		return "", errorj.ExternalCallError.Wrap(err, "command failed in %s/%s: %s", e.namespace, e.pod, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
