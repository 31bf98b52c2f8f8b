// Package fake provides an in-memory control plane for tests.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/voluzi/gridpilot/internal/controlplane"
)

// ControlPlane records every call. Behaviour is scripted through the exported hooks;
// a nil hook falls back to a plausible default.
type ControlPlane struct {
	mu    sync.Mutex
	calls []string

	ApplyFn             func(path string) error
	DeleteFn            func(path string) error
	ExistsFn            func(kind controlplane.Kind, name string) (bool, error)
	AvailableReplicasFn func(name string) (int32, error)
	ScaleFn             func(name string, replicas int32) error
	PodPhaseFn          func(app string) (string, error)
	PodNamesFn          func(app string) ([]string, error)
	CopyFn              func(src, pod, dst string) error
	ExecFn              func(pod string, command []string) (*controlplane.ExecResult, error)
}

var _ controlplane.ControlPlane = (*ControlPlane)(nil)

func (f *ControlPlane) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Calls returns every recorded call in order.
func (f *ControlPlane) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Count returns how many recorded calls start with prefix.
func (f *ControlPlane) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *ControlPlane) Apply(_ context.Context, path string) error {
	f.record("apply %s", path)
	if f.ApplyFn != nil {
		return f.ApplyFn(path)
	}
	return nil
}

func (f *ControlPlane) Delete(_ context.Context, path string) error {
	f.record("delete %s", path)
	if f.DeleteFn != nil {
		return f.DeleteFn(path)
	}
	return nil
}

func (f *ControlPlane) Exists(_ context.Context, kind controlplane.Kind, name string) (bool, error) {
	f.record("exists %s %s", kind.Short(), name)
	if f.ExistsFn != nil {
		return f.ExistsFn(kind, name)
	}
	return true, nil
}

func (f *ControlPlane) AvailableReplicas(_ context.Context, name string) (int32, error) {
	f.record("replicas %s", name)
	if f.AvailableReplicasFn != nil {
		return f.AvailableReplicasFn(name)
	}
	return 1, nil
}

func (f *ControlPlane) Scale(_ context.Context, name string, replicas int32) error {
	f.record("scale %s %d", name, replicas)
	if f.ScaleFn != nil {
		return f.ScaleFn(name, replicas)
	}
	return nil
}

func (f *ControlPlane) PodPhase(_ context.Context, app string) (string, error) {
	f.record("phase %s", app)
	if f.PodPhaseFn != nil {
		return f.PodPhaseFn(app)
	}
	return controlplane.PodRunning, nil
}

func (f *ControlPlane) PodNames(_ context.Context, app string) ([]string, error) {
	f.record("pods %s", app)
	if f.PodNamesFn != nil {
		return f.PodNamesFn(app)
	}
	return []string{app + "-0"}, nil
}

func (f *ControlPlane) Copy(_ context.Context, src, pod, dst string) error {
	f.record("copy %s %s:%s", src, pod, dst)
	if f.CopyFn != nil {
		return f.CopyFn(src, pod, dst)
	}
	return nil
}

func (f *ControlPlane) Exec(_ context.Context, pod string, command []string) (*controlplane.ExecResult, error) {
	f.record("exec %s %s", pod, strings.Join(command, " "))
	if f.ExecFn != nil {
		return f.ExecFn(pod, command)
	}
	return &controlplane.ExecResult{Stdout: "ok"}, nil
}
