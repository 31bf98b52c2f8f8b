package kubectl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

const DefaultBinary = "kubectl"

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes control-plane commands.
type Runner interface {
	// Run returns trimmed stdout, or an error carrying stderr when the command exits non-zero.
	Run(ctx context.Context, args ...string) (string, error)

	// Capture runs the command to completion and reports its exit code instead of failing on it.
	// An error is only returned when the command could not be started.
	Capture(ctx context.Context, args ...string) (*Result, error)
}

// CommandError is returned by Run when the command exits with a non-zero status.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", strings.Join(e.Args, " "), e.ExitCode, e.Stderr)
}

// CommandRunner shells out to a kubectl compatible binary.
type CommandRunner struct {
	binary     string
	globalArgs []string
}

var _ Runner = (*CommandRunner)(nil)

// Option configures a CommandRunner.
type Option func(*CommandRunner)

// WithBinary overrides the executable (defaults to kubectl found in PATH).
func WithBinary(binary string) Option {
	return func(r *CommandRunner) {
		r.binary = binary
	}
}

// WithNamespace adds --namespace to every invocation.
func WithNamespace(namespace string) Option {
	return func(r *CommandRunner) {
		if namespace != "" {
			r.globalArgs = append(r.globalArgs, "--namespace", namespace)
		}
	}
}

// WithKubeconfig adds --kubeconfig to every invocation.
func WithKubeconfig(path string) Option {
	return func(r *CommandRunner) {
		if path != "" {
			r.globalArgs = append(r.globalArgs, "--kubeconfig", path)
		}
	}
}

func NewCommandRunner(opts ...Option) *CommandRunner {
	r := &CommandRunner{binary: DefaultBinary}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	res, err := r.Capture(ctx, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		log.WithField("command", r.binary+" "+strings.Join(args, " ")).
			Errorf("command failed: %s", res.Stderr)
		return "", &CommandError{
			Args:     append([]string{r.binary}, args...),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}
	if res.Stderr != "" {
		log.WithField("command", r.binary+" "+strings.Join(args, " ")).
			Warnf("command wrote to stderr: %s", res.Stderr)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (r *CommandRunner) Capture(ctx context.Context, args ...string) (*Result, error) {
	fullArgs := append(append([]string{}, r.globalArgs...), args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithField("command", r.binary+" "+strings.Join(fullArgs, " ")).Debug("executing")

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("%s failed to start: %w", r.binary, err)
	}
	return res, nil
}
