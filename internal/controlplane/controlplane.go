// Package controlplane describes the cluster operations the deployment pipeline
// depends on and provides the kubectl backed implementation.
package controlplane

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a resource kind the pipeline deploys.
type Kind string

const (
	KindService    Kind = "Service"
	KindDeployment Kind = "Deployment"
	KindHPA        Kind = "HorizontalPodAutoscaler"
)

// Short returns the kubectl resource name for the kind.
func (k Kind) Short() string {
	switch k {
	case KindService:
		return "svc"
	case KindDeployment:
		return "deployment"
	case KindHPA:
		return "hpa"
	default:
		return string(k)
	}
}

// ParseKind accepts kinds as written in manifests.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Service", "svc", "service":
		return KindService, nil
	case "Deployment", "deployment", "deploy":
		return KindDeployment, nil
	case "HorizontalPodAutoscaler", "hpa":
		return KindHPA, nil
	}
	return "", fmt.Errorf("unsupported resource kind %q", s)
}

// UnmarshalText normalizes kinds read from configuration files.
func (k *Kind) UnmarshalText(text []byte) error {
	kind, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

const PodRunning = "Running"

// ErrNoPods is returned when a label selector matches no pod.
var ErrNoPods = errors.New("no pods found")

// ExecResult is the captured output of a command executed inside a pod.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (r *ExecResult) Succeeded() bool {
	return r != nil && r.ExitCode == 0
}

// ControlPlane is the set of cluster operations used by the pipeline.
// Every call is independent; implementations keep no state between calls
// besides connection settings.
type ControlPlane interface {
	// Apply creates or updates every object in the manifest file.
	Apply(ctx context.Context, path string) error

	// Delete removes every object in the manifest file. Missing objects are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named resource is present.
	Exists(ctx context.Context, kind Kind, name string) (bool, error)

	// AvailableReplicas returns status.availableReplicas of a deployment.
	AvailableReplicas(ctx context.Context, name string) (int32, error)

	// Scale sets spec.replicas of a deployment.
	Scale(ctx context.Context, name string, replicas int32) error

	// PodPhase returns the phase of the first pod labelled app=<app>.
	PodPhase(ctx context.Context, app string) (string, error)

	// PodNames lists the pods labelled app=<app>.
	PodNames(ctx context.Context, app string) ([]string, error)

	// Copy transfers a local directory into a pod.
	Copy(ctx context.Context, src, pod, dst string) error

	// Exec runs a command in a pod. A non-zero exit is reported through ExecResult, not as an error.
	Exec(ctx context.Context, pod string, command []string) (*ExecResult, error)
}
