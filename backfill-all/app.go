package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/k8s"
	"github.com/jitsucom/backfill-runbooks/runbook"
	"k8s.io/client-go/kubernetes"
)

type Context struct {
	config *Config
}

func (a *Context) InitContext(settings *appbase.AppSettings) error {
	a.config = &Config{}
	return appbase.InitAppConfig(a.config, settings)
}

func (a *Context) Run(ctx context.Context) error {
	if a.config.Status {
		results, err := LoadResults(a.config.Output)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Printf("No tracking found at %s. Run without --status to start.\n", a.config.Output)
				return nil
			}
			return err
		}
		fmt.Printf("Generated at: %s, jobs: %d\n", results.GeneratedAt.Format(time.RFC3339), len(results.Jobs))
		WriteSummary(os.Stdout, results)
		return nil
	}
	clusters, err := LoadClusters(a.config.ConfigFile)
	if err != nil {
		return err
	}
	p := NewProcessor(a.config, func(cluster string) (kubernetes.Interface, error) {
		client, err := a.config.NewClient(cluster)
		if err != nil {
			return nil, err
		}
		return client.Clientset, nil
	})
	results, err := p.Run(ctx, clusters)
	if results != nil {
		WriteSummary(os.Stdout, results)
	}
	return err
}

// ClientFactory returns API client of the cluster
type ClientFactory func(cluster string) (kubernetes.Interface, error)

// LogsFetcher waits for the job's pod and returns its logs
type LogsFetcher func(ctx context.Context, client kubernetes.Interface, jobName string) (string, error)

// Processor creates a reindex job for every configured customer and collects temporal workflow ids from job logs
type Processor struct {
	appbase.Service
	config    *Config
	clientFor ClientFactory
	logs      LogsFetcher
	out       io.Writer
	now       func() time.Time
}

func NewProcessor(config *Config, clientFor ClientFactory) *Processor {
	return &Processor{
		Service:   appbase.NewServiceBase("backfill-all"),
		config:    config,
		clientFor: clientFor,
		logs: func(ctx context.Context, client kubernetes.Interface, jobName string) (string, error) {
			return k8s.WaitForJobLogs(ctx, client, k8s.CronNamespace, jobName, config.logsMaxWait(), config.logsPollInterval())
		},
		out: os.Stdout,
		now: time.Now,
	}
}

// Run processes all clusters matching filters. Results are saved to output file after every job.
// Cancelled ctx stops processing, results collected so far are saved.
func (p *Processor) Run(ctx context.Context, clusters *ClustersConfig) (*Results, error) {
	sep := strings.Repeat("=", 60)
	_, _ = fmt.Fprintf(p.out, "%s\nBackfill Scorecards - Batch Job Creator\n%s\n", sep, sep)
	_, _ = fmt.Fprintf(p.out, "Start time: %s\nEnd time:   %s\nDry run:    %t\nSkip logs:  %t\n",
		p.config.StartTime, p.config.EndTime, p.config.DryRun, p.config.SkipLogs)

	results := &Results{}
	var runErr error
	for _, cluster := range clusters.Clusters {
		if p.config.Cluster != "" && cluster.Name != p.config.Cluster {
			continue
		}
		customers := make([]CustomerConfig, 0, len(cluster.Customers))
		for _, c := range cluster.Customers {
			if p.config.Customer == "" || c.ID == p.config.Customer {
				customers = append(customers, c)
			}
		}
		if len(customers) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(p.out, "\n%s\nCluster: %s\n%s\n", sep, cluster.Name, sep)
		client, err := p.clientFor(cluster.Name)
		var trigger *k8s.JobTrigger
		if err == nil {
			trigger = k8s.NewJobTrigger(client, k8s.CronNamespace, k8s.ReindexCronJob, k8s.ReindexJobName,
				k8s.ReindexRangeEnv(p.config.StartTime, p.config.EndTime))
			trigger.DryRun = p.config.DryRun
		} else {
			p.Errorf("failed to connect to cluster %s: %v", cluster.Name, err)
		}
		for _, customer := range customers {
			if runErr = ctx.Err(); runErr != nil {
				break
			}
			var job *JobInfo
			if err != nil {
				job = p.newJob(cluster.Name, customer)
				job.Status = JobFailed
				job.Error = fmt.Sprintf("failed to connect to cluster: %v", err)
			} else {
				job = p.processCustomer(ctx, trigger, client, cluster.Name, customer)
			}
			results.Jobs = append(results.Jobs, job)
			if runErr = p.save(results); runErr != nil {
				break
			}
		}
		if runErr != nil {
			break
		}
	}
	if len(results.Jobs) == 0 {
		_, _ = fmt.Fprintf(p.out, "\nNo jobs processed.\n")
		return results, runErr
	}
	if runErr == nil {
		_, _ = fmt.Fprintf(p.out, "\nResults saved to: %s\n", p.config.Output)
	}
	return results, runErr
}

func (p *Processor) save(results *Results) error {
	results.GeneratedAt = p.now().UTC()
	if err := SaveResults(p.config.Output, results); err != nil {
		return errorj.Decorate(err, "failed to save results")
	}
	return nil
}

func (p *Processor) newJob(cluster string, customer CustomerConfig) *JobInfo {
	return &JobInfo{
		Customer:  customer.ID,
		Profile:   customer.Profile,
		Cluster:   cluster,
		Status:    JobPending,
		CreatedAt: p.now().UTC(),
	}
}

func (p *Processor) processCustomer(ctx context.Context, trigger *k8s.JobTrigger, client kubernetes.Interface, cluster string, customer CustomerConfig) *JobInfo {
	job := p.newJob(cluster, customer)
	_, _ = fmt.Fprintf(p.out, "\nProcessing %s/%s on %s...\n", customer.ID, customer.Profile, cluster)

	name, err := trigger.TriggerJob(ctx, runbook.UnitSpec{ID: customer.ID, Customer: customer.ID})
	if err != nil {
		job.Status = JobFailed
		job.Error = errorj.Message(err)
		_, _ = fmt.Fprintf(p.out, "  ERROR: %s\n", job.Error)
		return job
	}
	job.K8sJobName = name
	if p.config.DryRun {
		job.Status = JobDryRun
		_, _ = fmt.Fprintf(p.out, "  [DRY-RUN] Would create job: %s\n", name)
		return job
	}
	job.Status = JobCreated
	_, _ = fmt.Fprintf(p.out, "  Created k8s job: %s\n", name)
	if p.config.SkipLogs {
		_, _ = fmt.Fprintf(p.out, "  Skipping log collection (--skip-logs)\n")
		return job
	}

	_, _ = fmt.Fprintf(p.out, "  Waiting for job logs...\n")
	logs, err := p.logs(ctx, client, name)
	if err != nil {
		job.Error = errorj.Message(err)
		_, _ = fmt.Fprintf(p.out, "  WARNING: Could not get logs: %s\n", job.Error)
		return job
	}
	ref, ok := k8s.ParseReindexLogs(logs)
	if !ok {
		job.Error = "Could not parse temporal workflow ID from logs"
		_, _ = fmt.Fprintf(p.out, "  WARNING: %s\n", job.Error)
		return job
	}
	job.JobResourceName = ref.Name
	job.TemporalWorkflowID = ref.ExecutionID
	job.TemporalCluster = ref.Cluster
	job.Status = JobRunning
	_, _ = fmt.Fprintf(p.out, "  Temporal workflow: %s\n", ref.ExecutionID)
	return job
}

func (a *Context) Cleanup() error {
	return a.config.Close()
}

func (a *Context) Server() *http.Server {
	return nil
}

func (a *Context) Config() *Config {
	return a.config
}
