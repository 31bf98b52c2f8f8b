package framework

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/kind/pkg/cluster"
	"sigs.k8s.io/kind/pkg/cmd"
)

const kindConfigTemplate = `kind: Cluster
apiVersion: kind.x-k8s.io/v1alpha4
nodes:
- role: control-plane
- role: worker
- role: worker
`

// ProjectRoot returns the absolute path to the repository root.
func ProjectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	// file is .../test/framework/kind.go
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// KindFramework runs the tests against a Kind cluster.
type KindFramework struct {
	cfg            *Config
	ctx            context.Context
	cancel         context.CancelFunc
	provider       *cluster.Provider
	clusterCreated bool
	kindPath       string
	kubeconfigPath string
	restCfg        *rest.Config
	kubeClient     *kubernetes.Clientset
}

func NewKindFramework(opts ...Option) *KindFramework {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &KindFramework{cfg: cfg}
}

// Setup creates (or reuses) the cluster and connects to it.
func (f *KindFramework) Setup(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.kindPath = findBinary("kind")
	f.provider = cluster.NewProvider(
		cluster.ProviderWithLogger(cmd.NewLogger()),
	)

	clusters, err := f.provider.List()
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	clusterExists := false
	for _, c := range clusters {
		if c == f.cfg.ClusterName {
			clusterExists = true
			break
		}
	}

	if clusterExists && f.cfg.ReuseCluster {
		log.WithField("name", f.cfg.ClusterName).Info("reusing existing kind cluster")
	} else {
		if clusterExists {
			log.WithField("name", f.cfg.ClusterName).Info("deleting existing kind cluster")
			if err := f.provider.Delete(f.cfg.ClusterName, ""); err != nil {
				return fmt.Errorf("failed to delete existing cluster: %w", err)
			}
		}

		log.WithField("name", f.cfg.ClusterName).Info("creating kind cluster")
		if err := f.provider.Create(
			f.cfg.ClusterName,
			cluster.CreateWithRawConfig([]byte(kindConfigTemplate)),
			cluster.CreateWithNodeImage(f.cfg.NodeImage),
			cluster.CreateWithWaitForReady(5*time.Minute),
		); err != nil {
			return fmt.Errorf("failed to create cluster: %w", err)
		}
		f.clusterCreated = true
	}

	kubeconfig, err := f.provider.KubeConfig(f.cfg.ClusterName, false)
	if err != nil {
		return fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	kubeconfigFile, err := os.CreateTemp("", "kubeconfig-*.yaml")
	if err != nil {
		return err
	}
	if _, err := kubeconfigFile.WriteString(kubeconfig); err != nil {
		return err
	}
	kubeconfigFile.Close()
	f.kubeconfigPath = kubeconfigFile.Name()

	f.restCfg, err = clientcmd.RESTConfigFromKubeConfig([]byte(kubeconfig))
	if err != nil {
		return fmt.Errorf("failed to create rest config: %w", err)
	}
	f.kubeClient, err = kubernetes.NewForConfig(f.restCfg)
	if err != nil {
		return fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	for _, image := range f.cfg.Images {
		log.WithField("image", image).Info("loading image into kind cluster")
		if err := f.LoadImage(image); err != nil {
			return err
		}
	}
	return nil
}

// TearDown deletes the cluster when it was created by Setup and reuse is disabled.
func (f *KindFramework) TearDown() error {
	if f.cancel != nil {
		f.cancel()
	}
	if f.kubeconfigPath != "" {
		_ = os.Remove(f.kubeconfigPath)
	}
	if f.clusterCreated && !f.cfg.ReuseCluster {
		if err := f.provider.Delete(f.cfg.ClusterName, ""); err != nil {
			return fmt.Errorf("failed to delete cluster: %w", err)
		}
	}
	return nil
}

// LoadImage loads a local docker image into the cluster nodes.
func (f *KindFramework) LoadImage(image string) error {
	nodes, err := f.provider.ListNodes(f.cfg.ClusterName)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no nodes found in cluster")
	}

	c := exec.CommandContext(f.ctx, f.kindPath, "load", "docker-image", image, "--name", f.cfg.ClusterName)
	output, err := c.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to load image: %s: %w", string(output), err)
	}
	return nil
}

func (f *KindFramework) Context() context.Context {
	return f.ctx
}

func (f *KindFramework) RestConfig() *rest.Config {
	return f.restCfg
}

func (f *KindFramework) KubeClient() *kubernetes.Clientset {
	return f.kubeClient
}

// KubeconfigPath points at a kubeconfig file for the cluster, for kubectl.
func (f *KindFramework) KubeconfigPath() string {
	return f.kubeconfigPath
}

// findBinary looks for a binary in the project bin directory and then PATH.
func findBinary(name string) string {
	binPath := filepath.Join(ProjectRoot(), "bin", name)
	if _, err := os.Stat(binPath); err == nil {
		return binPath
	}
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return name
}
