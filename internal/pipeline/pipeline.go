// Package pipeline drives one deployment of the Selenium grid followed by a
// remote test run inside the test-controller pod.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/deploy"
	"github.com/voluzi/gridpilot/pkg/utils"
)

// Report summarises a pipeline run.
type Report struct {
	RunID       string
	ConfigHash  string
	NodeCount   int
	Deployments []deploy.DeploymentOutcome
	Warnings    []string
	TestPod     string
	TestResult  *controlplane.ExecResult
}

// TestsPassed reports whether the remote test command ran and exited with 0.
func (r *Report) TestsPassed() bool {
	return r.TestResult != nil && r.TestResult.Succeeded()
}

type Pipeline struct {
	cp   controlplane.ControlPlane
	orch *deploy.Orchestrator
	opts *Options
}

func New(cp controlplane.ControlPlane, opts ...Option) *Pipeline {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Pipeline{
		cp:   cp,
		orch: deploy.NewOrchestrator(cp, options.Clock),
		opts: options,
	}
}

// Preflight validates the node count, the retry policies and every manifest.
func (p *Pipeline) Preflight(nodeCount int) error {
	if err := ValidateNodeCount(nodeCount); err != nil {
		return err
	}
	if err := p.opts.Policies.Validate(); err != nil {
		return err
	}
	if err := p.opts.Resources.Preflight(); err != nil {
		return err
	}
	if _, err := utils.DirSize(p.opts.TestDir); err != nil {
		return errors.WithDetails(errors.Wrapf(ErrInvalidConfig, "test directory: %v", err), "path", p.opts.TestDir)
	}
	return nil
}

// Run deploys the grid, waits for it to become healthy and runs the tests.
// The returned report is never nil once preflight has passed.
func (p *Pipeline) Run(ctx context.Context, nodeCount int) (*Report, error) {
	if err := p.Preflight(nodeCount); err != nil {
		return nil, err
	}

	hash, err := utils.Fingerprint(struct {
		Resources Resources
		Policies  Policies
	}{p.opts.Resources, p.opts.Policies})
	if err != nil {
		return nil, errors.WrapIf(err, "hashing configuration")
	}

	report := &Report{
		RunID:      uuid.NewString(),
		ConfigHash: hash,
		NodeCount:  nodeCount,
	}
	logger := log.WithField("run-id", report.RunID)
	logger.WithFields(log.Fields{
		"node_count":  nodeCount,
		"config_hash": hash,
	}).Info("starting selenium grid deployment")

	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		report.Warnings = append(report.Warnings, msg)
		logger.Warn(msg)
	}

	for _, svc := range p.opts.Resources.Services {
		if !p.orch.ApplyAndWaitForExistence(ctx, svc, p.opts.Policies.Service) {
			warn("service %s is not available, continuing", svc.Name)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, errors.WithStack(err)
	}

	for _, dep := range p.opts.Resources.Deployments {
		outcome := p.orch.ApplyAndWaitForRunning(ctx, dep, p.opts.Policies.Deployment)
		report.Deployments = append(report.Deployments, outcome)
		if !outcome.Succeeded {
			logger.WithField("deployment", dep.Name).Error("stopping further deployments")
			return report, errors.WithDetails(
				errors.Wrapf(ErrDeploymentFailed, "%s after %d attempts", dep.Name, outcome.AttemptsUsed),
				"deployment", dep.Name,
			)
		}
	}

	if err := p.orch.Scale(ctx, ChromeNode, int32(nodeCount)); err != nil {
		warn("could not scale %s to %d replicas: %v", ChromeNode, nodeCount, err)
	}

	if !p.orch.ApplyAndWaitForExistence(ctx, p.opts.Resources.HPA, p.opts.Policies.HPA) {
		warn("autoscaler %s is not available, continuing", p.opts.Resources.HPA.Name)
	}

	if !p.orch.WaitForPodRunning(ctx, ChromeNode, p.opts.Policies.Health) {
		if err := ctx.Err(); err != nil {
			return report, errors.WithStack(err)
		}
		logger.Error("chrome nodes are not running, aborting test execution")
		return report, errors.WithStack(ErrGridUnhealthy)
	}
	logger.Info("selenium grid is healthy")

	pod, err := p.testControllerPod(ctx)
	if err != nil {
		return report, err
	}
	report.TestPod = pod
	logger = logger.WithField("pod", pod)

	size, err := utils.DirSize(p.opts.TestDir)
	if err != nil {
		return report, errors.WrapIfWithDetails(err, "reading test directory", "path", p.opts.TestDir)
	}
	logger.WithFields(log.Fields{
		"src":  p.opts.TestDir,
		"size": size.HumanReadable(),
	}).Info("copying tests to test controller")
	if err := p.cp.Copy(ctx, p.opts.TestDir, pod, p.opts.RemoteTestDir); err != nil {
		return report, errors.WrapIfWithDetails(err, "copying tests", "pod", pod)
	}

	logger.WithField("command", p.opts.TestCommand).Info("running tests")
	res, err := p.cp.Exec(ctx, pod, []string{"sh", "-c", p.opts.TestCommand})
	if ctxErr := ctx.Err(); ctxErr != nil {
		// A killed exec reports a failed command, not an interrupted run.
		return report, errors.WrapIfWithDetails(ctxErr, "running tests", "pod", pod)
	}
	if err != nil {
		return report, errors.WrapIfWithDetails(err, "running tests", "pod", pod)
	}
	report.TestResult = res
	p.relay(res)

	if !res.Succeeded() {
		logger.WithField("exit_code", res.ExitCode).Error("tests failed")
		if p.opts.FailOnTestFailure {
			return report, errors.WithDetails(ErrTestsFailed, "exit_code", res.ExitCode)
		}
		return report, nil
	}
	logger.Info("tests passed")
	return report, nil
}

func (p *Pipeline) testControllerPod(ctx context.Context) (string, error) {
	pods, err := p.cp.PodNames(ctx, TestController)
	if err != nil {
		return "", errors.WrapIfWithDetails(err, "listing test controller pods", "app", TestController)
	}
	switch len(pods) {
	case 1:
		return pods[0], nil
	case 0:
		return "", errors.WithDetails(ErrTestControllerNotFound, "app", TestController)
	default:
		return "", errors.WithDetails(
			errors.Wrapf(ErrTestControllerNotFound, "expected exactly one pod, found %d", len(pods)),
			"pods", strings.Join(pods, ","),
		)
	}
}

func (p *Pipeline) relay(res *controlplane.ExecResult) {
	out := p.opts.Output
	_, _ = fmt.Fprintln(out, "========= Test Output =========")
	_, _ = fmt.Fprintln(out, res.Stdout)
	if res.Stderr != "" {
		_, _ = fmt.Fprintln(out, "========= Test Errors =========")
		_, _ = fmt.Fprintln(out, res.Stderr)
	}
}
