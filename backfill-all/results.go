package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/jitsucom/backfill-runbooks/runbook"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobCreated JobStatus = "created"
	JobRunning JobStatus = "running"
	JobFailed  JobStatus = "failed"
	JobDryRun  JobStatus = "dry-run"
)

// JobInfo tracking info of a single reindex job
type JobInfo struct {
	Customer           string    `json:"customer"`
	Profile            string    `json:"profile"`
	Cluster            string    `json:"cluster"`
	K8sJobName         string    `json:"k8s_job_name"`
	JobResourceName    string    `json:"job_resource_name,omitempty"`
	TemporalWorkflowID string    `json:"temporal_workflow_id,omitempty"`
	TemporalCluster    string    `json:"temporal_cluster,omitempty"`
	Status             JobStatus `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	Error              string    `json:"error,omitempty"`
}

type Results struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Jobs        []*JobInfo `json:"jobs"`
}

func SaveResults(path string, results *Results) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return runbook.WriteFileAtomic(path, append(data, '\n'))
}

func LoadResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	results := &Results{}
	if err = json.Unmarshal(data, results); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return results, nil
}

// WriteSummary prints number of jobs per status and jobs with errors
func WriteSummary(w io.Writer, results *Results) {
	sep := strings.Repeat("=", 60)
	_, _ = fmt.Fprintf(w, "\n%s\nSummary\n%s\n", sep, sep)
	counts := map[JobStatus]int{}
	for _, job := range results.Jobs {
		counts[job.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		_, _ = fmt.Fprintf(w, "  %s: %d\n", status, counts[JobStatus(status)])
	}
	header := false
	for _, job := range results.Jobs {
		if job.Error == "" {
			continue
		}
		if !header {
			_, _ = fmt.Fprintf(w, "\nErrors:\n")
			header = true
		}
		_, _ = fmt.Fprintf(w, "  %s/%s on %s: %s\n", job.Customer, job.Profile, job.Cluster, job.Error)
	}
	running := 0
	for _, job := range results.Jobs {
		if job.TemporalWorkflowID != "" {
			running++
		}
	}
	if running > 0 {
		_, _ = fmt.Fprintf(w, "\nTemporal workflows:\n")
		for _, job := range results.Jobs {
			if job.TemporalWorkflowID != "" {
				_, _ = fmt.Fprintf(w, "  %s on %s: %s (%s)\n", job.Customer, job.TemporalCluster, job.TemporalWorkflowID, job.JobResourceName)
			}
		}
	}
}
