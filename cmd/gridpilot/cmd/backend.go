package cmd

import (
	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/k8s"
	"github.com/voluzi/gridpilot/internal/kubectl"
	"github.com/voluzi/gridpilot/internal/pipeline"
)

const (
	backendKubectl = "kubectl"
	backendClient  = "client"
)

func newControlPlane(name, namespace, kubeconfig string) (controlplane.ControlPlane, error) {
	switch name {
	case backendKubectl:
		runner := kubectl.NewCommandRunner(
			kubectl.WithNamespace(namespace),
			kubectl.WithKubeconfig(kubeconfig),
		)
		return controlplane.NewKubectl(runner), nil

	case backendClient:
		cfg, ns, err := k8s.LoadConfig(kubeconfig)
		if err != nil {
			return nil, errors.Wrap(pipeline.ErrInvalidConfig, err.Error())
		}
		if namespace == "" {
			namespace = ns
		}
		cluster, err := k8s.NewCluster(cfg, namespace)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{"host": cfg.Host, "namespace": cluster.Namespace()}).Debug("using api backend")
		return cluster, nil

	default:
		return nil, errors.WithDetails(errors.Wrapf(pipeline.ErrInvalidConfig, "unknown backend %q", name), "backend", name)
	}
}
