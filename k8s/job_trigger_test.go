package k8s

import (
	"context"
	"testing"
	"time"

	"github.com/jitsucom/backfill-runbooks/runbook"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

var (
	fixedNow = time.Unix(1770000000, 0)
	daySpec  = runbook.UnitSpec{ID: "2026-01-15", Customer: "alaska-air", Window: runbook.Window{Start: "2026-01-15", End: "2026-01-16"}}
)

func cronJob(name string) *batchv1.CronJob {
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: CronNamespace, UID: "cron-uid"},
		Spec: batchv1.CronJobSpec{
			Schedule: "0 * * * *",
			JobTemplate: batchv1.JobTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": "cron"}},
				Spec: batchv1.JobSpec{
					Template: corev1.PodTemplateSpec{
						Spec: corev1.PodSpec{
							Containers: []corev1.Container{{
								Name:  "main",
								Image: "go-servers:latest",
								Env: []corev1.EnvVar{
									{Name: "REINDEX_START_TIME", Value: "2020-01-01T00:00:00Z"},
									{Name: "LOG_LEVEL", Value: "info"},
								},
							}},
						},
					},
				},
			},
		},
	}
}

func newTrigger(client *fake.Clientset, cron string, namer JobNamer, env EnvBuilder) *JobTrigger {
	trigger := NewJobTrigger(client, CronNamespace, cron, namer, env)
	trigger.now = func() time.Time { return fixedNow }
	return trigger
}

func TestTriggerReindexJob(t *testing.T) {
	client := fake.NewSimpleClientset(cronJob(ReindexCronJob))
	trigger := newTrigger(client, ReindexCronJob, ReindexJobName, ReindexEnv)
	spec := runbook.UnitSpec{ID: "hilton", Customer: "hilton", Window: runbook.Window{Start: "2026-01-01", End: "2026-02-21"}}

	name, err := trigger.TriggerJob(context.Background(), spec)
	require.NoError(t, err)
	require.Equal(t, "batch-reindex-conversations-hilton-1770000000", name)

	job, err := client.BatchV1().Jobs(CronNamespace).Get(context.Background(), name, metav1.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "manual", job.Annotations["cronjob.kubernetes.io/instantiate"])
	require.Equal(t, "cron", job.Labels["app"])
	require.Len(t, job.OwnerReferences, 1)
	require.Equal(t, "CronJob", job.OwnerReferences[0].Kind)
	require.Equal(t, ReindexCronJob, job.OwnerReferences[0].Name)
	require.Equal(t, []corev1.EnvVar{
		{Name: "REINDEX_START_TIME", Value: "2026-01-01T00:00:00Z"},
		{Name: "LOG_LEVEL", Value: "info"},
		{Name: "REINDEX_END_TIME", Value: "2026-02-21T00:00:00Z"},
		{Name: "RUN_ONLY_FOR_CUSTOMER_IDS", Value: "hilton"},
	}, job.Spec.Template.Spec.Containers[0].Env)
}

func TestTriggerDryRunCreatesNothing(t *testing.T) {
	client := fake.NewSimpleClientset(cronJob(ReindexCronJob))
	trigger := newTrigger(client, ReindexCronJob, ReindexJobName, ReindexEnv)
	trigger.DryRun = true
	name, err := trigger.TriggerJob(context.Background(), runbook.UnitSpec{Customer: "sunbit", Window: daySpec.Window})
	require.NoError(t, err)
	require.Equal(t, "batch-reindex-conversations-sunbit-1770000000", name)
	jobs, err := client.BatchV1().Jobs(CronNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Empty(t, jobs.Items)
}

func TestTriggerMissingCronJob(t *testing.T) {
	trigger := newTrigger(fake.NewSimpleClientset(), LabelCronJob, LabelJobName, LabelEnv)
	_, err := trigger.TriggerJob(context.Background(), daySpec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cron-label-conversations")
}

func TestLabelEnv(t *testing.T) {
	require.Equal(t, []corev1.EnvVar{
		{Name: "ENABLE_LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE", Value: "true"},
		{Name: "LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE_CONV_START_AT_RANGE_START", Value: "2026-01-15T00:00:00Z"},
		{Name: "LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE_CONV_END_AT_RANGE_END", Value: "2026-01-16T00:00:00Z"},
		{Name: "FILTER_CUSTOMER_IN_LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE", Value: "alaska-air"},
	}, LabelEnv(daySpec))

	all := daySpec
	all.Customer = "all"
	require.Len(t, LabelEnv(all), 3)
}

func TestReindexRangeEnv(t *testing.T) {
	env := ReindexRangeEnv("2026-01-01T06:00:00Z", "2026-02-01T00:00:00Z")(runbook.UnitSpec{Customer: "sunbit"})
	require.Equal(t, []corev1.EnvVar{
		{Name: "REINDEX_START_TIME", Value: "2026-01-01T06:00:00Z"},
		{Name: "REINDEX_END_TIME", Value: "2026-02-01T00:00:00Z"},
		{Name: "RUN_ONLY_FOR_CUSTOMER_IDS", Value: "sunbit"},
	}, env)
}

func TestJobNames(t *testing.T) {
	require.Equal(t, "backfill-labels-alaska-air-20260115-1770000000", LabelJobName(daySpec, fixedNow))
	all := daySpec
	all.Customer = ""
	require.Equal(t, "backfill-labels-all-20260115-1770000000", LabelJobName(all, fixedNow))
	require.Equal(t, "batch-reindex-seq-jan15-1770000000", SequentialJobName(daySpec, fixedNow))

	long := runbook.UnitSpec{Customer: "a-very-long-customer-name-that-does-not-fit-into-a-dns-label"}
	name := ReindexJobName(long, fixedNow)
	require.LessOrEqual(t, len(name), 63)
	require.Regexp(t, `^batch-reindex-conversations-a-very-long.*-1770000000$`, name)
}
