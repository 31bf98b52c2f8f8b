package pipeline

import (
	"io"
	"os"

	"k8s.io/utils/clock"
)

const (
	DefaultTestDir       = "test"
	DefaultRemoteTestDir = "/workspace/test"
	DefaultTestCommand   = "cd /workspace && go test -v -count=1 ./test/insider/..."
)

func defaultOptions() *Options {
	return &Options{
		Resources:     DefaultResources(DefaultManifestsDir),
		Policies:      DefaultPolicies(),
		TestDir:       DefaultTestDir,
		RemoteTestDir: DefaultRemoteTestDir,
		TestCommand:   DefaultTestCommand,
		Output:        os.Stdout,
		Clock:         clock.RealClock{},
	}
}

type Options struct {
	Resources         Resources
	Policies          Policies
	TestDir           string
	RemoteTestDir     string
	TestCommand       string
	FailOnTestFailure bool
	Output            io.Writer
	Clock             clock.Clock
}

type Option func(*Options)

func WithResources(r Resources) Option {
	return func(opts *Options) {
		opts.Resources = r
	}
}

func WithPolicies(p Policies) Option {
	return func(opts *Options) {
		opts.Policies = p
	}
}

func WithTestDir(path string) Option {
	return func(opts *Options) {
		opts.TestDir = path
	}
}

func WithRemoteTestDir(path string) Option {
	return func(opts *Options) {
		opts.RemoteTestDir = path
	}
}

func WithTestCommand(cmd string) Option {
	return func(opts *Options) {
		opts.TestCommand = cmd
	}
}

func FailOnTestFailure(fail bool) Option {
	return func(opts *Options) {
		opts.FailOnTestFailure = fail
	}
}

// WithOutput sets where the remote test output is relayed.
func WithOutput(w io.Writer) Option {
	return func(opts *Options) {
		opts.Output = w
	}
}

func WithClock(c clock.Clock) Option {
	return func(opts *Options) {
		opts.Clock = c
	}
}
