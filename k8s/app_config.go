package k8s

import (
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"k8s.io/client-go/kubernetes"
)

// KubernetesConfig env/flag settings of runbooks that create jobs
type KubernetesConfig struct {
	// KubeConfig see ClientConfig
	KubeConfig string `mapstructure:"KUBECONFIG"`
	// KubeContext defaults to <cluster>_dev
	KubeContext string `mapstructure:"KUBE_CONTEXT"`

	JobPollIntervalSec int `mapstructure:"JOB_POLL_INTERVAL_SEC" default:"30" validate:"gt=0"`
	JobTimeoutSec      int `mapstructure:"JOB_TIMEOUT_SEC" default:"3600" validate:"gt=0"`
}

func (c *KubernetesConfig) PostInit(settings *appbase.AppSettings) error {
	return nil
}

// NewClient connects to the cluster's API using cluster's dev context unless KubeContext is set
func (c *KubernetesConfig) NewClient(cluster string) (*Client, error) {
	return NewClient(ClientConfig{
		KubeConfig: c.KubeConfig,
		Context:    utils.NvlString(c.KubeContext, DevContext(cluster)),
	})
}

func (c *KubernetesConfig) NewJobWaiter(client kubernetes.Interface, namespace string) *JobWaiter {
	w := NewJobWaiter(client, namespace)
	w.PollInterval = time.Duration(c.JobPollIntervalSec) * time.Second
	w.Timeout = time.Duration(c.JobTimeoutSec) * time.Second
	return w
}
