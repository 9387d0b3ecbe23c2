package k8s

import (
	"fmt"
	"strings"

	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientConfig selects kubernetes API credentials.
// KubeConfig:
//   - "" uses default loading rules ($KUBECONFIG or ~/.kube/config)
//   - "local" uses in-cluster config
//   - value containing newlines is inline kubeconfig yaml
//   - otherwise path to kubeconfig file
type ClientConfig struct {
	KubeConfig string
	Context    string
}

// DevContext returns kubeconfig context name used for cluster
func DevContext(cluster string) string {
	return cluster + "_dev"
}

// Client is kubernetes clientset paired with rest config required for streaming subresources (exec, port-forward)
type Client struct {
	Clientset  kubernetes.Interface
	RestConfig *rest.Config
}

func NewClient(cfg ClientConfig) (*Client, error) {
	cc, err := restConfig(cfg)
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cc)
	if err != nil {
		return nil, fmt.Errorf("error creating kubernetes clientset: %v", err)
	}
	return &Client{Clientset: clientset, RestConfig: cc}, nil
}

func restConfig(cfg ClientConfig) (*rest.Config, error) {
	config := cfg.KubeConfig
	switch {
	case config == "local":
		cc, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("error getting in cluster config: %v", err)
		}
		return cc, nil
	case strings.ContainsRune(config, '\n'):
		// suppose yaml
		clientconfig, err := clientcmd.NewClientConfigFromBytes([]byte(config))
		if err != nil {
			return nil, fmt.Errorf("error parsing kubernetes client config: %v", err)
		}
		rawConfig, _ := clientconfig.RawConfig()
		clientconfig = clientcmd.NewNonInteractiveClientConfig(rawConfig,
			utils.NvlString(cfg.Context, rawConfig.CurrentContext),
			&clientcmd.ConfigOverrides{},
			&clientcmd.ClientConfigLoadingRules{})
		cc, err := clientconfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("error creating kubernetes client config: %v", err)
		}
		return cc, nil
	default:
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		if config != "" {
			rules = &clientcmd.ClientConfigLoadingRules{ExplicitPath: config}
		}
		clientconfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules,
			&clientcmd.ConfigOverrides{CurrentContext: cfg.Context})
		cc, err := clientconfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("error creating kubernetes client config for context %q: %v", cfg.Context, err)
		}
		return cc, nil
	}
}
