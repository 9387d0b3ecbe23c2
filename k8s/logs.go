package k8s

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/runbook"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

const (
	DefaultLogsMaxWait      = 300 * time.Second
	DefaultLogsPollInterval = 10 * time.Second
)

var reindexLogPattern = regexp.MustCompile(`Created reindex conversations job: name=([^,]+), execution_id=([^,]+), cluster=(\S+)`)

func jobSelector(jobName string) string {
	return "job-name=" + jobName
}

// PodLogs reads logs of pod's default container. tailLines <= 0 reads all lines.
func PodLogs(ctx context.Context, client kubernetes.Interface, namespace, pod string, tailLines int64) (string, error) {
	opts := &corev1.PodLogOptions{}
	if tailLines > 0 {
		opts.TailLines = ptr.To(tailLines)
	}
	stream, err := client.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get logs of pod %s: %w", pod, err)
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of pod %s: %w", pod, err)
	}
	return string(data), nil
}

// JobLogs concatenates logs of all pods of the job, like `kubectl logs -l job-name=<job> --tail=N`
func JobLogs(ctx context.Context, client kubernetes.Interface, namespace, jobName string, tailLines int64) (string, error) {
	pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: jobSelector(jobName)})
	if err != nil {
		return "", fmt.Errorf("failed to list pods: %w", err)
	}
	var sb strings.Builder
	for _, pod := range pods.Items {
		logs, err := PodLogs(ctx, client, namespace, pod.Name, tailLines)
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(logs)
	}
	return sb.String(), nil
}

// WaitForJobLogs waits until the first pod of the job runs or finishes and returns its logs
func WaitForJobLogs(ctx context.Context, client kubernetes.Interface, namespace, jobName string, maxWait, pollInterval time.Duration) (string, error) {
	var logs string
	err := runbook.Poll(ctx, fmt.Sprintf("logs of job %s", jobName), pollInterval, maxWait, func(ctx context.Context, elapsed time.Duration) (bool, error) {
		pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: jobSelector(jobName)})
		if err != nil || len(pods.Items) == 0 {
			logsLogger.Infof("Waiting for pod to be created... (%s)", elapsed)
			return false, nil
		}
		pod := pods.Items[0]
		phase := pod.Status.Phase
		switch phase {
		case corev1.PodRunning, corev1.PodSucceeded, corev1.PodFailed:
			podLogs, err := PodLogs(ctx, client, namespace, pod.Name, 0)
			if err == nil && podLogs != "" {
				logs = podLogs
				return true, nil
			}
			if phase == corev1.PodFailed {
				return false, errorj.ExternalCallError.New("Pod failed. %v", err)
			}
		}
		logsLogger.Infof("Pod status: %s, waiting... (%s)", utils.NvlString(string(phase), "Unknown"), elapsed)
		return false, nil
	})
	return logs, err
}

// ReindexJobRef is the workflow reference reindex job prints once it has started the workflow
type ReindexJobRef struct {
	Name        string
	ExecutionID string
	Cluster     string
}

// ParseReindexLogs finds the first reindex job reference in logs
func ParseReindexLogs(logs string) (ReindexJobRef, bool) {
	for _, line := range strings.Split(logs, "\n") {
		if m := reindexLogPattern.FindStringSubmatch(line); m != nil {
			return ReindexJobRef{Name: m[1], ExecutionID: m[2], Cluster: m[3]}, true
		}
	}
	return ReindexJobRef{}, false
}
