package k8s

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// LoadConfig resolves a REST config and the default namespace. An empty path uses the
// standard loading rules ($KUBECONFIG, ~/.kube/config, in-cluster).
func LoadConfig(kubeconfig string) (*rest.Config, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		path, err := expandHome(kubeconfig)
		if err != nil {
			return nil, "", err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, "", fmt.Errorf("kubeconfig file not found at %s", path)
		}
		rules.ExplicitPath = path
	}

	cc := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{})
	cfg, err := cc.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build config from kubeconfig: %v", err)
	}

	ns, _, err := cc.Namespace()
	if err != nil {
		return nil, "", err
	}
	return cfg, ns, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home := homedir.HomeDir()
	if home == "" {
		return "", fmt.Errorf("could not locate home directory for kubeconfig")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
