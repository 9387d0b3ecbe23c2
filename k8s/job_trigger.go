package k8s

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/runbook"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

const (
	CronNamespace          = "cresta-cron"
	ReindexCronJob         = "cron-batch-reindex-conversations"
	LabelCronJob           = "cron-label-conversations"
	instantiateAnnotation  = "cronjob.kubernetes.io/instantiate"
	jobNameMaxLen          = 63
	allCustomers           = "all"
	rfc3339MidnightPattern = "%sT00:00:00Z"
)

// JobNamer returns name of the job created for spec
type JobNamer func(spec runbook.UnitSpec, now time.Time) string

// EnvBuilder returns env vars overridden in every container of the job
type EnvBuilder func(spec runbook.UnitSpec) []corev1.EnvVar

// JobTrigger instantiates Jobs from CronJob template with env overrides, like `kubectl create job --from=cronjob/...`
type JobTrigger struct {
	appbase.Service
	client    kubernetes.Interface
	namespace string
	cronJob   string
	namer     JobNamer
	env       EnvBuilder
	// DryRun builds the job without creating it
	DryRun bool
	now    func() time.Time
}

func NewJobTrigger(client kubernetes.Interface, namespace, cronJob string, namer JobNamer, env EnvBuilder) *JobTrigger {
	return &JobTrigger{
		Service:   appbase.NewServiceBase("job-trigger"),
		client:    client,
		namespace: namespace,
		cronJob:   cronJob,
		namer:     namer,
		env:       env,
		now:       time.Now,
	}
}

// TriggerJob creates job for spec and returns its name
func (t *JobTrigger) TriggerJob(ctx context.Context, spec runbook.UnitSpec) (string, error) {
	name := t.namer(spec, t.now())
	cron, err := t.client.BatchV1().CronJobs(t.namespace).Get(ctx, t.cronJob, metav1.GetOptions{})
	if err != nil {
		return "", errorj.ExternalCallError.Wrap(err, "Failed to get cronjob %s/%s", t.namespace, t.cronJob).
			WithProperty(errorj.UnitInfo, &errorj.UnitPayload{Unit: spec.ID, Step: "trigger", Target: t.cronJob})
	}
	job := BuildJobFromCronJob(cron, name, t.env(spec))
	if t.DryRun {
		t.Infof("[DRY-RUN] Would create job: %s %s", name, describeEnv(job))
		return name, nil
	}
	created, err := t.client.BatchV1().Jobs(t.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return "", errorj.ExternalCallError.Wrap(err, "Failed to create job %s", name).
			WithProperty(errorj.UnitInfo, &errorj.UnitPayload{Unit: spec.ID, Step: "trigger", Target: name})
	}
	return created.Name, nil
}

// BuildJobFromCronJob copies job template of cron, names it and overrides env vars in every container
func BuildJobFromCronJob(cron *batchv1.CronJob, name string, env []corev1.EnvVar) *batchv1.Job {
	template := cron.Spec.JobTemplate
	annotations := map[string]string{instantiateAnnotation: "manual"}
	for k, v := range template.Annotations {
		annotations[k] = v
	}
	labels := map[string]string{}
	for k, v := range template.Labels {
		labels[k] = v
	}
	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{APIVersion: "batch/v1", Kind: "Job"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   cron.Namespace,
			Labels:      labels,
			Annotations: annotations,
			OwnerReferences: []metav1.OwnerReference{{
				APIVersion: "batch/v1",
				Kind:       "CronJob",
				Name:       cron.Name,
				UID:        cron.UID,
				Controller: ptr.To(true),
			}},
		},
		Spec: *template.Spec.DeepCopy(),
	}
	containers := job.Spec.Template.Spec.Containers
	for i := range containers {
		containers[i].Env = setEnv(containers[i].Env, env)
	}
	return job
}

func setEnv(current, overrides []corev1.EnvVar) []corev1.EnvVar {
	for _, o := range overrides {
		found := false
		for i := range current {
			if current[i].Name == o.Name {
				current[i] = o
				found = true
				break
			}
		}
		if !found {
			current = append(current, o)
		}
	}
	return current
}

func describeEnv(job *batchv1.Job) string {
	if len(job.Spec.Template.Spec.Containers) == 0 {
		return ""
	}
	return strings.Join(utils.ArrayMap(job.Spec.Template.Spec.Containers[0].Env, func(e corev1.EnvVar) string {
		return e.Name + "=" + e.Value
	}), " ")
}

func midnight(day string) string {
	return fmt.Sprintf(rfc3339MidnightPattern, day)
}

func filtered(customer string) bool {
	return customer != "" && customer != allCustomers
}

// ReindexEnv env of cron-batch-reindex-conversations scoped to spec customers and window
func ReindexEnv(spec runbook.UnitSpec) []corev1.EnvVar {
	return reindexEnv(midnight(spec.Window.Start), midnight(spec.Window.End), spec.Customer)
}

// ReindexRangeEnv is ReindexEnv with exact RFC3339 bounds instead of the unit window
func ReindexRangeEnv(start, end string) EnvBuilder {
	return func(spec runbook.UnitSpec) []corev1.EnvVar {
		return reindexEnv(start, end, spec.Customer)
	}
}

func reindexEnv(start, end, customers string) []corev1.EnvVar {
	return []corev1.EnvVar{
		{Name: "REINDEX_START_TIME", Value: start},
		{Name: "REINDEX_END_TIME", Value: end},
		{Name: "RUN_ONLY_FOR_CUSTOMER_IDS", Value: customers},
	}
}

// LabelEnv env of cron-label-conversations. Customer filter is set only for a specific customer.
func LabelEnv(spec runbook.UnitSpec) []corev1.EnvVar {
	env := []corev1.EnvVar{
		{Name: "ENABLE_LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE", Value: "true"},
		{Name: "LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE_CONV_START_AT_RANGE_START", Value: midnight(spec.Window.Start)},
		{Name: "LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE_CONV_END_AT_RANGE_END", Value: midnight(spec.Window.End)},
	}
	if filtered(spec.Customer) {
		env = append(env, corev1.EnvVar{Name: "FILTER_CUSTOMER_IN_LABEL_CONVERSATIONS_WITH_AGENT_ASSISTANCE", Value: spec.Customer})
	}
	return env
}

// jobName keeps the unix time suffix intact when name exceeds DNS label length
func jobName(now time.Time, parts ...string) string {
	suffix := fmt.Sprintf("-%d", now.Unix())
	return utils.DNSLabel(strings.Join(parts, "-"), jobNameMaxLen-len(suffix)) + suffix
}

// ReindexJobName batch-reindex-conversations-<customer>-<unix>
func ReindexJobName(spec runbook.UnitSpec, now time.Time) string {
	return jobName(now, "batch-reindex-conversations", spec.Customer)
}

// SequentialJobName batch-reindex-seq-<mon><dd>-<unix>, e.g. batch-reindex-seq-jan15-1770000000
func SequentialJobName(spec runbook.UnitSpec, now time.Time) string {
	tag := strings.ToLower(spec.Window.StartTime().Format("Jan02"))
	return jobName(now, "batch-reindex-seq", tag)
}

// LabelJobName backfill-labels-<customer|all>-<yyyymmdd>-<unix>
func LabelJobName(spec runbook.UnitSpec, now time.Time) string {
	customer := utils.Ternary(filtered(spec.Customer), spec.Customer, allCustomers)
	return jobName(now, "backfill-labels", customer, strings.ReplaceAll(spec.Window.Start, "-", ""))
}
