package k8s

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/utils/exec"
)

type PodHelper struct {
	client     kubernetes.Interface
	restConfig *rest.Config
	pod        *corev1.Pod
}

func NewPodHelper(client kubernetes.Interface, cfg *rest.Config, pod *corev1.Pod) *PodHelper {
	return &PodHelper{
		client:     client,
		restConfig: cfg,
		pod:        pod,
	}
}

// ExecOutput is what a command executed in the pod produced.
type ExecOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec runs cmd in the given container, feeding stdin when not nil. A command that
// ran and exited non-zero is reported through ExitCode with a nil error.
func (p *PodHelper) Exec(ctx context.Context, container string, cmd []string, stdin io.Reader) (*ExecOutput, error) {
	req := p.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(p.pod.Name).
		Namespace(p.pod.Namespace).
		SubResource("exec")

	req.VersionedParams(
		&corev1.PodExecOptions{
			Container: container,
			Command:   cmd,
			Stdin:     stdin != nil,
			Stdout:    true,
			Stderr:    true,
		},
		scheme.ParameterCodec,
	)

	exec, err := remotecommand.NewSPDYExecutor(p.restConfig, "POST", req.URL())
	if err != nil {
		return nil, fmt.Errorf("error executing command on pod: %v", err)
	}

	var execOut bytes.Buffer
	var execErr bytes.Buffer
	err = exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: &execOut,
		Stderr: &execErr,
	})

	out := &ExecOutput{Stdout: execOut.String(), Stderr: execErr.String()}
	if err != nil {
		code, ok := exitCode(err)
		if !ok {
			return nil, fmt.Errorf("error executing command on pod: %s: %v", execErr.String(), err)
		}
		out.ExitCode = code
	}
	return out, nil
}

// CopyTo streams the local directory src into dst inside the pod. The pod image
// must provide tar, as kubectl cp requires.
func (p *PodHelper) CopyTo(ctx context.Context, container, src, dst string) error {
	mkdir, err := p.Exec(ctx, container, []string{"mkdir", "-p", dst}, nil)
	if err != nil {
		return err
	}
	if mkdir.ExitCode != 0 {
		return fmt.Errorf("creating %s in pod %s: %s", dst, p.pod.Name, mkdir.Stderr)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(WriteTar(pw, src))
	}()

	res, err := p.Exec(ctx, container, []string{"tar", "-xmf", "-", "-C", dst}, pr)
	// Unblocks the writer if the remote side stopped reading early.
	_ = pr.Close()
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("extracting archive in pod %s: %s", p.pod.Name, res.Stderr)
	}
	return nil
}

func exitCode(err error) (int, bool) {
	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return exitErr.ExitStatus(), true
	}
	return 0, false
}
