package controlplane

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/voluzi/gridpilot/internal/kubectl"
)

// Kubectl implements ControlPlane by invoking the kubectl CLI.
type Kubectl struct {
	runner kubectl.Runner
}

var _ ControlPlane = (*Kubectl)(nil)

func NewKubectl(runner kubectl.Runner) *Kubectl {
	return &Kubectl{runner: runner}
}

func (k *Kubectl) Apply(ctx context.Context, path string) error {
	_, err := k.runner.Run(ctx, "apply", "-f", path)
	return err
}

func (k *Kubectl) Delete(ctx context.Context, path string) error {
	_, err := k.runner.Run(ctx, "delete", "-f", path, "--ignore-not-found")
	return err
}

func (k *Kubectl) Exists(ctx context.Context, kind Kind, name string) (bool, error) {
	out, err := k.runner.Run(ctx, "get", kind.Short(), name, "--no-headers")
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return out != "", nil
}

func (k *Kubectl) AvailableReplicas(ctx context.Context, name string) (int32, error) {
	out, err := k.runner.Run(ctx, "get", "deployment", name, "-o", "jsonpath={.status.availableReplicas}")
	if err != nil {
		return 0, err
	}
	// The field is omitted while no replica is available.
	if out == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(out, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected availableReplicas %q for deployment %s", out, name)
	}
	return int32(n), nil
}

func (k *Kubectl) Scale(ctx context.Context, name string, replicas int32) error {
	_, err := k.runner.Run(ctx, "scale", "deployment", name, fmt.Sprintf("--replicas=%d", replicas))
	return err
}

func (k *Kubectl) PodPhase(ctx context.Context, app string) (string, error) {
	names, err := k.PodNames(ctx, app)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w with label app=%s", ErrNoPods, app)
	}
	return k.runner.Run(ctx, "get", "pods", "-l", "app="+app, "-o", "jsonpath={.items[0].status.phase}")
}

func (k *Kubectl) PodNames(ctx context.Context, app string) ([]string, error) {
	out, err := k.runner.Run(ctx, "get", "pods", "-l", "app="+app, "-o", "jsonpath={.items[*].metadata.name}")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

func (k *Kubectl) Copy(ctx context.Context, src, pod, dst string) error {
	_, err := k.runner.Run(ctx, "cp", src, pod+":"+dst)
	return err
}

func (k *Kubectl) Exec(ctx context.Context, pod string, command []string) (*ExecResult, error) {
	args := append([]string{"exec", pod, "--"}, command...)
	res, err := k.runner.Capture(ctx, args...)
	if err != nil {
		return nil, err
	}
	return &ExecResult{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
	}, nil
}

func isNotFound(err error) bool {
	var cmdErr *kubectl.CommandError
	return errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "NotFound")
}
