package k8s

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/kubernetes/scheme"
	k8stesting "k8s.io/client-go/testing"
	ctrlfake "sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/voluzi/gridpilot/internal/controlplane"
)

const testNamespace = "grid"

func objectMeta(name string, labels map[string]string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: testNamespace, Labels: labels}
}

func newTestCluster(objects ...runtime.Object) (*Cluster, *fake.Clientset) {
	cs := fake.NewSimpleClientset(objects...)
	c := ctrlfake.NewClientBuilder().WithScheme(scheme.Scheme).WithRuntimeObjects(objects...).Build()
	return newCluster(cs, c, nil, testNamespace), cs
}

func TestNewClusterDefaultsNamespace(t *testing.T) {
	c := newCluster(fake.NewSimpleClientset(), nil, nil, "")
	assert.Equal(t, "default", c.Namespace())
}

func TestClusterExists(t *testing.T) {
	cluster, _ := newTestCluster(
		&corev1.Service{ObjectMeta: objectMeta("selenium-hub", nil)},
		&appsv1.Deployment{ObjectMeta: objectMeta("chrome-node", nil)},
		&autoscalingv2.HorizontalPodAutoscaler{ObjectMeta: objectMeta("chrome-node-hpa", nil)},
	)

	tests := []struct {
		kind controlplane.Kind
		name string
		want bool
	}{
		{controlplane.KindService, "selenium-hub", true},
		{controlplane.KindService, "chrome-node", false},
		{controlplane.KindDeployment, "chrome-node", true},
		{controlplane.KindDeployment, "selenium-hub", false},
		{controlplane.KindHPA, "chrome-node-hpa", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.name, func(t *testing.T) {
			got, err := cluster.Exists(context.Background(), tt.kind, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := cluster.Exists(context.Background(), controlplane.Kind("ConfigMap"), "x")
	assert.Error(t, err)
}

func TestClusterExistsPropagatesServerErrors(t *testing.T) {
	cluster, cs := newTestCluster()
	cs.PrependReactor("get", "services", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewServiceUnavailable("apiserver restarting")
	})

	_, err := cluster.Exists(context.Background(), controlplane.KindService, "selenium-hub")
	assert.Error(t, err)
}

func TestClusterAvailableReplicas(t *testing.T) {
	cluster, _ := newTestCluster(&appsv1.Deployment{
		ObjectMeta: objectMeta("selenium-hub", nil),
		Status:     appsv1.DeploymentStatus{AvailableReplicas: 1},
	})

	n, err := cluster.AvailableReplicas(context.Background(), "selenium-hub")
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)

	_, err = cluster.AvailableReplicas(context.Background(), "chrome-node")
	assert.True(t, apierrors.IsNotFound(err))
}

func TestClusterScaleUsesScaleSubresource(t *testing.T) {
	cluster, cs := newTestCluster(&appsv1.Deployment{ObjectMeta: objectMeta("chrome-node", nil)})

	var updated *autoscalingv1.Scale
	cs.PrependReactor("get", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.GetSubresource() != "scale" {
			return false, nil, nil
		}
		return true, &autoscalingv1.Scale{
			ObjectMeta: objectMeta("chrome-node", nil),
			Spec:       autoscalingv1.ScaleSpec{Replicas: 1},
		}, nil
	})
	cs.PrependReactor("update", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.GetSubresource() != "scale" {
			return false, nil, nil
		}
		updated = action.(k8stesting.UpdateAction).GetObject().(*autoscalingv1.Scale)
		return true, updated, nil
	})

	require.NoError(t, cluster.Scale(context.Background(), "chrome-node", 3))
	require.NotNil(t, updated)
	assert.Equal(t, int32(3), updated.Spec.Replicas)
}

func TestClusterPods(t *testing.T) {
	cluster, _ := newTestCluster(
		&corev1.Pod{
			ObjectMeta: objectMeta("chrome-node-7d9f", map[string]string{"app": "chrome-node"}),
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		},
		&corev1.Pod{
			ObjectMeta: objectMeta("selenium-test-controller-5c4b", map[string]string{"app": "selenium-test-controller"}),
			Status:     corev1.PodStatus{Phase: corev1.PodPending},
		},
	)

	phase, err := cluster.PodPhase(context.Background(), "chrome-node")
	require.NoError(t, err)
	assert.Equal(t, controlplane.PodRunning, phase)

	names, err := cluster.PodNames(context.Background(), "selenium-test-controller")
	require.NoError(t, err)
	assert.Equal(t, []string{"selenium-test-controller-5c4b"}, names)

	_, err = cluster.PodPhase(context.Background(), "selenium-hub")
	assert.True(t, errors.Is(err, controlplane.ErrNoPods))

	names, err = cluster.PodNames(context.Background(), "selenium-hub")
	require.NoError(t, err)
	assert.Empty(t, names)
}

const hubService = `apiVersion: v1
kind: Service
metadata:
  name: selenium-hub
spec:
  ports:
    - port: 4444
  selector:
    app: selenium-hub
`

func TestClusterDeleteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selenium-hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hubService), 0644))

	cluster, _ := newTestCluster(&corev1.Service{ObjectMeta: objectMeta("selenium-hub", nil)})

	require.NoError(t, cluster.Delete(context.Background(), path))

	var svc corev1.Service
	err := cluster.client.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: "selenium-hub"}, &svc)
	assert.True(t, apierrors.IsNotFound(err))

	// Deleting again must not fail.
	require.NoError(t, cluster.Delete(context.Background(), path))
}

func TestClusterLoadDefaultsNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selenium-hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hubService), 0644))

	cluster, _ := newTestCluster()
	objects, err := cluster.load(path)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, testNamespace, objects[0].GetNamespace())

	_, err = cluster.load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClusterEnsureCreatesThenUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selenium-hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hubService), 0644))

	cluster, _ := newTestCluster()
	ctx := context.Background()

	objects, err := cluster.load(path)
	require.NoError(t, err)
	res, err := cluster.ensure(ctx, objects[0])
	require.NoError(t, err)
	assert.Equal(t, resultCreated, res)

	objects, err = cluster.load(path)
	require.NoError(t, err)
	res, err = cluster.ensure(ctx, objects[0])
	require.NoError(t, err)
	assert.Equal(t, resultUnchanged, res)

	objects, err = cluster.load(path)
	require.NoError(t, err)
	objects[0].SetLabels(map[string]string{"tier": "grid"})
	res, err = cluster.ensure(ctx, objects[0])
	require.NoError(t, err)
	assert.Equal(t, resultConfigured, res)

	var svc corev1.Service
	require.NoError(t, cluster.client.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: "selenium-hub"}, &svc))
	assert.Equal(t, "grid", svc.Labels["tier"])
}

func TestClusterApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selenium-hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hubService), 0644))

	cluster, _ := newTestCluster()
	require.NoError(t, cluster.Apply(context.Background(), path))
	require.NoError(t, cluster.Apply(context.Background(), path))

	var svc corev1.Service
	require.NoError(t, cluster.client.Get(context.Background(), types.NamespacedName{Namespace: testNamespace, Name: "selenium-hub"}, &svc))

	assert.Error(t, cluster.Apply(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestClusterEnsureIgnoresServerDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selenium-hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(hubService), 0644))

	cluster, _ := newTestCluster()
	ctx := context.Background()
	require.NoError(t, cluster.Apply(ctx, path))

	// Simulate the API server defaulting list entries.
	var svc corev1.Service
	key := types.NamespacedName{Namespace: testNamespace, Name: "selenium-hub"}
	require.NoError(t, cluster.client.Get(ctx, key, &svc))
	svc.Spec.Ports[0].Protocol = corev1.ProtocolTCP
	svc.Spec.Type = corev1.ServiceTypeClusterIP
	require.NoError(t, cluster.client.Update(ctx, &svc))

	for i := 0; i < 2; i++ {
		objects, err := cluster.load(path)
		require.NoError(t, err)
		res, err := cluster.ensure(ctx, objects[0])
		require.NoError(t, err)
		assert.Equal(t, resultUnchanged, res)
	}
}

func TestTyped(t *testing.T) {
	svc := &unstructured.Unstructured{}
	svc.SetAPIVersion("v1")
	svc.SetKind("Service")
	svc.SetName("selenium-hub")

	obj, err := typed(svc)
	require.NoError(t, err)
	require.IsType(t, &corev1.Service{}, obj)
	assert.Equal(t, "selenium-hub", obj.(*corev1.Service).Name)

	custom := &unstructured.Unstructured{}
	custom.SetAPIVersion("grid.example.com/v1")
	custom.SetKind("Grid")
	obj, err = typed(custom)
	require.NoError(t, err)
	assert.Same(t, custom, obj)
}
