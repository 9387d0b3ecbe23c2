package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"
)

const clustersHjson = `
{
  # us-east-1 only has chat customers
  clusters: [
    {
      name: us-east-1-prod
      customers: [
        {id: "sunbit"}
        {id: "cvs", profile: "voice"}
      ]
    }
    {name: "voice-prod", customers: [{id: "hilton"}]}
  ]
}
`

func reindexCronJob() *batchv1.CronJob {
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{Name: k8s.ReindexCronJob, Namespace: k8s.CronNamespace},
		Spec: batchv1.CronJobSpec{JobTemplate: batchv1.JobTemplateSpec{Spec: batchv1.JobSpec{
			Template: corev1.PodTemplateSpec{Spec: corev1.PodSpec{Containers: []corev1.Container{{
				Name: "reindex",
				Env:  []corev1.EnvVar{{Name: "REINDEX_START_TIME", Value: "2025-01-01T00:00:00Z"}},
			}}}},
		}}},
	}
}

func testConfig(t *testing.T) *Config {
	return &Config{
		Output:    filepath.Join(t.TempDir(), "backfill_tracking.json"),
		StartTime: defaultStartTime,
		EndTime:   defaultEndTime,
	}
}

func testProcessor(config *Config, clients map[string]*fake.Clientset) (*Processor, *bytes.Buffer) {
	p := NewProcessor(config, func(cluster string) (kubernetes.Interface, error) {
		if c, ok := clients[cluster]; ok {
			return c, nil
		}
		return nil, errors.New("context " + cluster + "_dev not found")
	})
	out := &bytes.Buffer{}
	p.out = out
	p.now = func() time.Time { return time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC) }
	p.logs = func(_ context.Context, _ kubernetes.Interface, jobName string) (string, error) {
		switch {
		case strings.Contains(jobName, "sunbit"):
			return "starting\nCreated reindex conversations job: name=customers/sunbit/reindexJobs/abc, execution_id=reindexconversations-sunbit-us-east-1-abc, cluster=us-east-1\n", nil
		case strings.Contains(jobName, "cvs"):
			return "nothing useful", nil
		}
		return "", errors.New("logs of job " + jobName + " did not complete within 5m0s")
	}
	return p, out
}

func TestParseClusters(t *testing.T) {
	cfg, err := ParseClusters([]byte(clustersHjson), ".json")
	require.NoError(t, err)
	require.Len(t, cfg.Clusters, 2)
	require.Equal(t, []CustomerConfig{{ID: "sunbit", Profile: "default"}, {ID: "cvs", Profile: "voice"}}, cfg.Clusters[0].Customers)

	yamlCfg, err := ParseClusters([]byte("clusters:\n  - name: voice-prod\n    customers:\n      - id: hilton\n"), ".yaml")
	require.NoError(t, err)
	require.Equal(t, "voice-prod", yamlCfg.Clusters[0].Name)
	require.Equal(t, "default", yamlCfg.Clusters[0].Customers[0].Profile)

	_, err = ParseClusters([]byte(`{clusters: [{customers: []}]}`), ".hjson")
	require.ErrorContains(t, err, "cluster #1 has no name")
	_, err = ParseClusters([]byte(`{clusters: [{name: "a", customers: [{profile: "x"}]}]}`), "")
	require.ErrorContains(t, err, "customer #1 of cluster a has no id")
}

func TestProcessAllClusters(t *testing.T) {
	config := testConfig(t)
	clusters, err := ParseClusters([]byte(clustersHjson), ".hjson")
	require.NoError(t, err)
	east := fake.NewSimpleClientset(reindexCronJob())
	p, out := testProcessor(config, map[string]*fake.Clientset{"us-east-1-prod": east})

	results, err := p.Run(context.Background(), clusters)
	require.NoError(t, err)
	require.Len(t, results.Jobs, 3)

	sunbit := results.Jobs[0]
	require.Equal(t, JobRunning, sunbit.Status)
	require.Equal(t, "reindexconversations-sunbit-us-east-1-abc", sunbit.TemporalWorkflowID)
	require.Equal(t, "customers/sunbit/reindexJobs/abc", sunbit.JobResourceName)
	require.Equal(t, "us-east-1", sunbit.TemporalCluster)
	require.True(t, strings.HasPrefix(sunbit.K8sJobName, "batch-reindex-conversations-sunbit-"))

	cvs := results.Jobs[1]
	require.Equal(t, JobCreated, cvs.Status)
	require.Equal(t, "Could not parse temporal workflow ID from logs", cvs.Error)

	hilton := results.Jobs[2]
	require.Equal(t, JobFailed, hilton.Status)
	require.Contains(t, hilton.Error, "voice-prod_dev not found")

	created, err := east.BatchV1().Jobs(k8s.CronNamespace).Get(context.Background(), sunbit.K8sJobName, metav1.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, []corev1.EnvVar{
		{Name: "REINDEX_START_TIME", Value: "2026-01-01T00:00:00Z"},
		{Name: "REINDEX_END_TIME", Value: "2026-02-01T00:00:00Z"},
		{Name: "RUN_ONLY_FOR_CUSTOMER_IDS", Value: "sunbit"},
	}, created.Spec.Template.Spec.Containers[0].Env)

	saved, err := LoadResults(config.Output)
	require.NoError(t, err)
	require.Equal(t, results.Jobs, saved.Jobs)
	require.Contains(t, out.String(), "Cluster: us-east-1-prod")
	require.Contains(t, out.String(), "Temporal workflow: reindexconversations-sunbit-us-east-1-abc")

	summary := &bytes.Buffer{}
	WriteSummary(summary, saved)
	require.Contains(t, summary.String(), "  created: 1\n  failed: 1\n  running: 1\n")
	require.Contains(t, summary.String(), "  cvs/voice on us-east-1-prod: Could not parse temporal workflow ID from logs\n")
}

func TestProcessDryRunWithFilters(t *testing.T) {
	config := testConfig(t)
	config.DryRun = true
	config.Cluster = "us-east-1-prod"
	config.Customer = "cvs"
	clusters, err := ParseClusters([]byte(clustersHjson), ".hjson")
	require.NoError(t, err)
	east := fake.NewSimpleClientset(reindexCronJob())
	p, _ := testProcessor(config, map[string]*fake.Clientset{"us-east-1-prod": east})

	results, err := p.Run(context.Background(), clusters)
	require.NoError(t, err)
	require.Len(t, results.Jobs, 1)
	require.Equal(t, JobDryRun, results.Jobs[0].Status)
	require.Equal(t, "cvs", results.Jobs[0].Customer)

	jobs, err := east.BatchV1().Jobs(k8s.CronNamespace).List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Empty(t, jobs.Items)
}

func TestProcessSkipLogsAndMissingCronJob(t *testing.T) {
	config := testConfig(t)
	config.SkipLogs = true
	clusters, err := ParseClusters([]byte(clustersHjson), ".hjson")
	require.NoError(t, err)
	p, _ := testProcessor(config, map[string]*fake.Clientset{
		"us-east-1-prod": fake.NewSimpleClientset(reindexCronJob()),
		"voice-prod":     fake.NewSimpleClientset(),
	})

	results, err := p.Run(context.Background(), clusters)
	require.NoError(t, err)
	require.Equal(t, JobCreated, results.Jobs[0].Status)
	require.Empty(t, results.Jobs[0].TemporalWorkflowID)
	require.Equal(t, JobFailed, results.Jobs[2].Status)
	require.Contains(t, results.Jobs[2].Error, "Failed to get cronjob cresta-cron/cron-batch-reindex-conversations")
}

func TestProcessNothingMatches(t *testing.T) {
	config := testConfig(t)
	config.Customer = "unknown"
	clusters, err := ParseClusters([]byte(clustersHjson), ".hjson")
	require.NoError(t, err)
	p, out := testProcessor(config, nil)
	results, err := p.Run(context.Background(), clusters)
	require.NoError(t, err)
	require.Empty(t, results.Jobs)
	require.Contains(t, out.String(), "No jobs processed.")
	_, err = LoadResults(config.Output)
	require.Error(t, err)
}

func TestProcessCancelled(t *testing.T) {
	config := testConfig(t)
	clusters, err := ParseClusters([]byte(clustersHjson), ".hjson")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	p, _ := testProcessor(config, map[string]*fake.Clientset{"us-east-1-prod": fake.NewSimpleClientset(reindexCronJob())})
	p.logs = func(ctx context.Context, _ kubernetes.Interface, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	}
	results, err := p.Run(ctx, clusters)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results.Jobs, 1)

	saved, err := LoadResults(config.Output)
	require.NoError(t, err)
	require.Len(t, saved.Jobs, 1)
}

func TestConfigValidate(t *testing.T) {
	c := &Config{Output: defaultOutput, StartTime: defaultStartTime, EndTime: defaultEndTime}
	require.ErrorContains(t, c.validate(), "--config is required")
	c.ConfigFile = "clusters.hjson"
	require.NoError(t, c.validate())
	c.EndTime = "2026-01-01"
	require.ErrorContains(t, c.validate(), "invalid --end-time")
	c.EndTime = "2025-12-01T00:00:00Z"
	require.ErrorContains(t, c.validate(), "must be before")
	c.Status = true
	require.NoError(t, c.validate())
}
