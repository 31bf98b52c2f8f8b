package pipeline

import (
	"path/filepath"
	"time"

	"emperror.dev/errors"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/deploy"
	"github.com/voluzi/gridpilot/internal/manifest"
	"github.com/voluzi/gridpilot/internal/readiness"
)

const (
	ChromeNode     = "chrome-node"
	SeleniumHub    = "selenium-hub"
	TestController = "selenium-test-controller"
	ChromeNodeHPA  = "chrome-node-hpa"

	DefaultManifestsDir = "kubernetes"
)

// Resources is the fixed set of units the pipeline deploys, in order.
type Resources struct {
	Services    []deploy.ResourceSpec `toml:"services"`
	Deployments []deploy.ResourceSpec `toml:"deployments"`
	HPA         deploy.ResourceSpec   `toml:"hpa"`
}

// DefaultResources lays out the manifests under dir the way the repository ships them.
func DefaultResources(dir string) Resources {
	svc := func(name string) deploy.ResourceSpec {
		return deploy.ResourceSpec{
			Kind:           controlplane.KindService,
			Name:           name,
			DefinitionPath: filepath.Join(dir, "services", name+".yaml"),
		}
	}
	dep := func(name string) deploy.ResourceSpec {
		return deploy.ResourceSpec{
			Kind:           controlplane.KindDeployment,
			Name:           name,
			DefinitionPath: filepath.Join(dir, "deployments", name+".yaml"),
		}
	}

	return Resources{
		Services:    []deploy.ResourceSpec{svc(ChromeNode), svc(SeleniumHub)},
		Deployments: []deploy.ResourceSpec{dep(ChromeNode), dep(SeleniumHub), dep(TestController)},
		HPA: deploy.ResourceSpec{
			Kind:           controlplane.KindHPA,
			Name:           ChromeNodeHPA,
			DefinitionPath: filepath.Join(dir, "deployments", ChromeNodeHPA+".yaml"),
		},
	}
}

func (r Resources) all() []deploy.ResourceSpec {
	out := append([]deploy.ResourceSpec{}, r.Services...)
	out = append(out, r.Deployments...)
	return append(out, r.HPA)
}

// Preflight checks that every manifest exists, parses and declares the resource
// it is expected to create. It never talks to the cluster.
func (r Resources) Preflight() error {
	if len(r.Deployments) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no deployments configured")
	}

	for _, spec := range r.all() {
		objects, err := manifest.Load(spec.DefinitionPath)
		if err != nil {
			return errors.WithDetails(errors.Wrap(ErrInvalidConfig, err.Error()), "resource", spec.String())
		}
		if _, ok := manifest.Find(objects, string(spec.Kind), spec.Name); !ok {
			return errors.WithDetails(
				errors.Wrapf(ErrInvalidConfig, "%s does not define %s", spec.DefinitionPath, spec),
				"resource", spec.String(),
			)
		}
	}
	return nil
}

// Policies holds the retry policy of every wait in the pipeline.
type Policies struct {
	Service    readiness.RetryPolicy `toml:"service"`
	Deployment readiness.RetryPolicy `toml:"deployment"`
	HPA        readiness.RetryPolicy `toml:"hpa"`
	Health     readiness.RetryPolicy `toml:"health"`
}

func DefaultPolicies() Policies {
	return Policies{
		Service:    readiness.RetryPolicy{MaxAttempts: 10, Interval: 5 * time.Second},
		Deployment: readiness.RetryPolicy{MaxAttempts: 12, Interval: 5 * time.Second, MaxCycles: 3},
		HPA:        readiness.RetryPolicy{MaxAttempts: 10, Interval: 5 * time.Second},
		Health:     readiness.RetryPolicy{MaxAttempts: 10, Interval: 5 * time.Second},
	}
}

func (p Policies) Validate() error {
	for name, policy := range map[string]readiness.RetryPolicy{
		"service":    p.Service,
		"deployment": p.Deployment,
		"hpa":        p.HPA,
		"health":     p.Health,
	} {
		if err := policy.Validate(); err != nil {
			return errors.WithDetails(errors.Wrapf(ErrInvalidConfig, "%s policy: %v", name, err), "policy", name)
		}
	}
	if p.Deployment.MaxCycles < 1 {
		return errors.Wrap(ErrInvalidConfig, "deployment policy: max cycles must be at least 1")
	}
	return nil
}
