// Package k8s implements the pipeline's control plane on top of client-go and
// controller-runtime, without shelling out to kubectl.
package k8s

import (
	"context"
	"fmt"

	"github.com/banzaicloud/k8s-objectmatcher/patch"
	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/manifest"
)

const FieldOwner = "gridpilot"

// Cluster talks to the API server directly.
type Cluster struct {
	clientset  kubernetes.Interface
	client     client.Client
	restConfig *rest.Config
	namespace  string
}

var _ controlplane.ControlPlane = (*Cluster)(nil)

func NewCluster(cfg *rest.Config, namespace string) (*Cluster, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %v", err)
	}

	c, err := client.New(cfg, client.Options{Scheme: scheme.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create k8s client: %v", err)
	}

	return newCluster(clientset, c, cfg, namespace), nil
}

func newCluster(clientset kubernetes.Interface, c client.Client, cfg *rest.Config, namespace string) *Cluster {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Cluster{
		clientset:  clientset,
		client:     c,
		restConfig: cfg,
		namespace:  namespace,
	}
}

func (c *Cluster) Namespace() string {
	return c.namespace
}

type applyResult string

const (
	resultCreated    applyResult = "created"
	resultConfigured applyResult = "configured"
	resultUnchanged  applyResult = "unchanged"
)

// Apply creates every object of the manifest, or updates it when the desired
// state differs from the last applied one.
func (c *Cluster) Apply(ctx context.Context, path string) error {
	objects, err := c.load(path)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		res, err := c.ensure(ctx, obj)
		if err != nil {
			return fmt.Errorf("applying %s %s: %w", obj.GetKind(), obj.GetName(), err)
		}
		log.WithFields(log.Fields{
			"kind":      obj.GetKind(),
			"name":      obj.GetName(),
			"namespace": obj.GetNamespace(),
		}).Debug(string(res))
	}
	return nil
}

func (c *Cluster) ensure(ctx context.Context, obj *unstructured.Unstructured) (applyResult, error) {
	current := &unstructured.Unstructured{}
	current.SetGroupVersionKind(obj.GroupVersionKind())
	err := c.client.Get(ctx, client.ObjectKeyFromObject(obj), current)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return "", err
		}
		if err := patch.DefaultAnnotator.SetLastAppliedAnnotation(obj); err != nil {
			return "", err
		}
		return resultCreated, c.client.Create(ctx, obj, client.FieldOwner(FieldOwner))
	}

	currentObj, err := typed(current)
	if err != nil {
		return "", err
	}
	modifiedObj, err := typed(obj)
	if err != nil {
		return "", err
	}
	patchResult, err := patch.DefaultPatchMaker.Calculate(currentObj, modifiedObj, patch.IgnoreStatusFields())
	if err != nil {
		return "", err
	}
	if patchResult.IsEmpty() {
		return resultUnchanged, nil
	}

	if err := patch.DefaultAnnotator.SetLastAppliedAnnotation(obj); err != nil {
		return "", err
	}
	obj.SetResourceVersion(current.GetResourceVersion())
	return resultConfigured, c.client.Update(ctx, obj, client.FieldOwner(FieldOwner))
}

// typed converts u into its registered Go type so the diff uses strategic
// merge with list keys. Kinds unknown to the scheme stay unstructured.
func typed(u *unstructured.Unstructured) (runtime.Object, error) {
	obj, err := scheme.Scheme.New(u.GroupVersionKind())
	if err != nil {
		if runtime.IsNotRegisteredError(err) {
			return u, nil
		}
		return nil, err
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.UnstructuredContent(), obj); err != nil {
		return nil, fmt.Errorf("converting %s %s: %w", u.GetKind(), u.GetName(), err)
	}
	return obj, nil
}

func (c *Cluster) Delete(ctx context.Context, path string) error {
	objects, err := c.load(path)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		err := c.client.Delete(ctx, obj, client.PropagationPolicy(metav1.DeletePropagationBackground))
		if client.IgnoreNotFound(err) != nil {
			return fmt.Errorf("deleting %s %s: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	return nil
}

func (c *Cluster) load(path string) ([]*unstructured.Unstructured, error) {
	docs, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}

	objects := make([]*unstructured.Unstructured, 0, len(docs))
	for _, doc := range docs {
		u, err := doc.Unstructured()
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		if u.GetNamespace() == "" {
			u.SetNamespace(c.namespace)
		}
		objects = append(objects, u)
	}
	return objects, nil
}

func (c *Cluster) Exists(ctx context.Context, kind controlplane.Kind, name string) (bool, error) {
	var err error
	switch kind {
	case controlplane.KindService:
		_, err = c.clientset.CoreV1().Services(c.namespace).Get(ctx, name, metav1.GetOptions{})
	case controlplane.KindDeployment:
		_, err = c.clientset.AppsV1().Deployments(c.namespace).Get(ctx, name, metav1.GetOptions{})
	case controlplane.KindHPA:
		_, err = c.clientset.AutoscalingV2().HorizontalPodAutoscalers(c.namespace).Get(ctx, name, metav1.GetOptions{})
	default:
		return false, fmt.Errorf("unsupported resource kind %q", kind)
	}

	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (c *Cluster) AvailableReplicas(ctx context.Context, name string) (int32, error) {
	return NewDeploymentHelper(c.clientset, c.namespace, name).AvailableReplicas(ctx)
}

func (c *Cluster) Scale(ctx context.Context, name string, replicas int32) error {
	return NewDeploymentHelper(c.clientset, c.namespace, name).Scale(ctx, replicas)
}

func (c *Cluster) pods(ctx context.Context, app string) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "app=" + app,
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Cluster) PodPhase(ctx context.Context, app string) (string, error) {
	pods, err := c.pods(ctx, app)
	if err != nil {
		return "", err
	}
	if len(pods) == 0 {
		return "", fmt.Errorf("%w with label app=%s", controlplane.ErrNoPods, app)
	}
	return string(pods[0].Status.Phase), nil
}

func (c *Cluster) PodNames(ctx context.Context, app string) ([]string, error) {
	pods, err := c.pods(ctx, app)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pods))
	for _, pod := range pods {
		names = append(names, pod.Name)
	}
	return names, nil
}

func (c *Cluster) podHelper(ctx context.Context, name string) (*PodHelper, error) {
	pod, err := c.clientset.CoreV1().Pods(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return NewPodHelper(c.clientset, c.restConfig, pod), nil
}

// Copy uses the pod's first container, matching kubectl cp without -c.
func (c *Cluster) Copy(ctx context.Context, src, pod, dst string) error {
	h, err := c.podHelper(ctx, pod)
	if err != nil {
		return err
	}
	return h.CopyTo(ctx, "", src, dst)
}

func (c *Cluster) Exec(ctx context.Context, pod string, command []string) (*controlplane.ExecResult, error) {
	h, err := c.podHelper(ctx, pod)
	if err != nil {
		return nil, err
	}
	out, err := h.Exec(ctx, "", command, nil)
	if err != nil {
		return nil, err
	}
	return &controlplane.ExecResult{
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
	}, nil
}
