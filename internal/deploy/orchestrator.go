package deploy

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/readiness"
)

// ResourceSpec identifies one declarative unit to apply.
type ResourceSpec struct {
	Kind           controlplane.Kind `toml:"kind"`
	Name           string            `toml:"name"`
	DefinitionPath string            `toml:"path"`
}

func (s ResourceSpec) String() string {
	return fmt.Sprintf("%s %s", s.Kind, s.Name)
}

// DeploymentOutcome is the result of ApplyAndWaitForRunning.
type DeploymentOutcome struct {
	Name         string
	Succeeded    bool
	AttemptsUsed int
}

type Orchestrator struct {
	cp     controlplane.ControlPlane
	poller *readiness.Poller
	clock  clock.Clock
}

func NewOrchestrator(cp controlplane.ControlPlane, c clock.Clock) *Orchestrator {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Orchestrator{
		cp:     cp,
		poller: readiness.NewPoller(c),
		clock:  c,
	}
}

// ApplyAndWaitForExistence applies the manifest and polls until the resource exists.
// There is no rollback on failure.
func (o *Orchestrator) ApplyAndWaitForExistence(ctx context.Context, spec ResourceSpec, policy readiness.RetryPolicy) bool {
	logger := log.WithFields(log.Fields{"kind": spec.Kind, "name": spec.Name})
	logger.WithField("timeout", policy.Window()).Info("deploying")

	// An apply error is not final; the existence poll decides.
	if err := o.cp.Apply(ctx, spec.DefinitionPath); err != nil {
		logger.WithError(err).Warn("apply failed")
	}

	res := o.poller.WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
		return o.cp.Exists(ctx, spec.Kind, spec.Name)
	}, policy, log.Fields{"kind": spec.Kind, "name": spec.Name})

	if !res.Ready {
		logger.Errorf("%s did not become available after %d attempts", spec, res.Attempts)
		return false
	}
	logger.Infof("%s is now available", spec)
	return true
}

type deployState int

const (
	stateApplying deployState = iota
	statePolling
	stateRetryOrFail
	stateSucceeded
	stateFailed
)

func (s deployState) String() string {
	switch s {
	case stateApplying:
		return "Applying"
	case statePolling:
		return "Polling"
	case stateRetryOrFail:
		return "RetryOrFail"
	case stateSucceeded:
		return "Succeeded"
	case stateFailed:
		return "Failed"
	}
	return fmt.Sprintf("deployState(%d)", int(s))
}

// ApplyAndWaitForRunning drives a deployment through apply, poll and
// delete-before-retry cycles until it has an available replica or
// policy.MaxCycles cycles are spent.
func (o *Orchestrator) ApplyAndWaitForRunning(ctx context.Context, spec ResourceSpec, policy readiness.RetryPolicy) DeploymentOutcome {
	cycles := policy.MaxCycles
	if cycles < 1 {
		cycles = 1
	}

	logger := log.WithField("deployment", spec.Name)
	outcome := DeploymentOutcome{Name: spec.Name}

	state := stateApplying
	for {
		logger.WithField("state", state).Debug("transition")

		switch state {
		case stateApplying:
			outcome.AttemptsUsed++
			logger.Infof("deploying (attempt %d/%d)", outcome.AttemptsUsed, cycles)
			if err := o.cp.Apply(ctx, spec.DefinitionPath); err != nil {
				logger.WithError(err).Warn("apply failed")
			}
			state = statePolling

		case statePolling:
			logger.WithField("timeout", policy.Window()).Info("waiting for an available replica")
			res := o.poller.WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
				n, err := o.cp.AvailableReplicas(ctx, spec.Name)
				return n > 0, err
			}, policy, log.Fields{"deployment": spec.Name})

			if res.Ready {
				state = stateSucceeded
			} else {
				state = stateRetryOrFail
			}

		case stateRetryOrFail:
			logger.Warn("deployment did not reach running state, deleting before retry")
			if err := o.cp.Delete(ctx, spec.DefinitionPath); err != nil {
				logger.WithError(err).Warn("delete failed")
			}

			if outcome.AttemptsUsed < cycles && ctx.Err() == nil {
				o.clock.Sleep(policy.Interval)
				state = stateApplying
			} else {
				state = stateFailed
			}

		case stateSucceeded:
			outcome.Succeeded = true
			logger.Info("deployment is running")
			return outcome

		case stateFailed:
			logger.Errorf("deployment failed to start after %d attempts", outcome.AttemptsUsed)
			return outcome
		}
	}
}

// Scale sets the replica count of a deployment once, without waiting.
func (o *Orchestrator) Scale(ctx context.Context, name string, replicas int32) error {
	logger := log.WithFields(log.Fields{"deployment": name, "replicas": replicas})
	logger.Info("scaling")

	if err := o.cp.Scale(ctx, name, replicas); err != nil {
		logger.WithError(err).Error("failed to scale")
		return err
	}
	logger.Info("scaled")
	return nil
}

// WaitForPodRunning polls the phase of the first pod labelled app=<app>.
func (o *Orchestrator) WaitForPodRunning(ctx context.Context, app string, policy readiness.RetryPolicy) bool {
	logger := log.WithField("app", app)
	logger.Info("checking pod health")

	res := o.poller.WaitUntilReady(ctx, func(ctx context.Context) (bool, error) {
		phase, err := o.cp.PodPhase(ctx, app)
		return phase == controlplane.PodRunning, err
	}, policy, log.Fields{"app": app})

	if !res.Ready {
		logger.Error("pod is not healthy")
		return false
	}
	logger.Info("pod is healthy")
	return true
}
