package k8s

import (
	"context"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/runbook"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var logsLogger = appbase.NewServiceBase("job-logs")

const (
	DefaultJobPollInterval = 30 * time.Second
	DefaultJobTimeout      = 3600 * time.Second
	failureLogTailLines    = 20
	failureLogMaxChars     = 500
)

// JobWaiter polls Job conditions and pod counters until it completes or fails
type JobWaiter struct {
	appbase.Service
	client       kubernetes.Interface
	namespace    string
	PollInterval time.Duration
	Timeout      time.Duration
}

func NewJobWaiter(client kubernetes.Interface, namespace string) *JobWaiter {
	return &JobWaiter{
		Service:      appbase.NewServiceBase("job-waiter"),
		client:       client,
		namespace:    namespace,
		PollInterval: DefaultJobPollInterval,
		Timeout:      DefaultJobTimeout,
	}
}

// WaitJob returns nil when job completed. Failure error includes tail of the job's pod logs.
func (w *JobWaiter) WaitJob(ctx context.Context, jobName string) error {
	return runbook.Poll(ctx, "job "+jobName, w.PollInterval, w.Timeout, func(ctx context.Context, elapsed time.Duration) (bool, error) {
		job, err := w.client.BatchV1().Jobs(w.namespace).Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			w.Warnf("failed to get job %s: %v", jobName, err)
			return false, nil
		}
		switch jobState(job) {
		case batchv1.JobComplete:
			return true, nil
		case batchv1.JobFailed:
			logs, _ := JobLogs(ctx, w.client, w.namespace, jobName, failureLogTailLines)
			return false, errorj.ExternalCallError.New("Job failed. Last logs:\n%s", utils.LastN(logs, failureLogMaxChars))
		}
		if job.Status.Failed > 0 && job.Status.Active == 0 && job.Status.Succeeded == 0 {
			return false, errorj.ExternalCallError.New("Job has %d failed pod(s)", job.Status.Failed)
		}
		w.Infof("Waiting for job %s... [%s]", jobName, elapsed)
		return false, nil
	})
}

// jobState returns Complete or Failed from true conditions or succeeded counter, empty while running
func jobState(job *batchv1.Job) batchv1.JobConditionType {
	for _, c := range job.Status.Conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		if c.Type == batchv1.JobComplete || c.Type == batchv1.JobFailed {
			return c.Type
		}
	}
	if job.Status.Succeeded > 0 {
		return batchv1.JobComplete
	}
	return ""
}
