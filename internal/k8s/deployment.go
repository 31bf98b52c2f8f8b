package k8s

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/runtime"
	watchapi "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/watch"
)

type DeploymentHelper struct {
	client    kubernetes.Interface
	namespace string
	name      string
}

func NewDeploymentHelper(client kubernetes.Interface, namespace, name string) *DeploymentHelper {
	return &DeploymentHelper{
		client:    client,
		namespace: namespace,
		name:      name,
	}
}

func (d *DeploymentHelper) Get(ctx context.Context) (*appsv1.Deployment, error) {
	return d.client.AppsV1().Deployments(d.namespace).Get(ctx, d.name, metav1.GetOptions{})
}

func (d *DeploymentHelper) AvailableReplicas(ctx context.Context) (int32, error) {
	dep, err := d.Get(ctx)
	if err != nil {
		return 0, err
	}
	return dep.Status.AvailableReplicas, nil
}

// Scale updates the scale subresource, the same path kubectl scale takes.
func (d *DeploymentHelper) Scale(ctx context.Context, replicas int32) error {
	scale, err := d.client.AppsV1().Deployments(d.namespace).GetScale(ctx, d.name, metav1.GetOptions{})
	if err != nil {
		return err
	}
	scale.Spec.Replicas = replicas
	_, err = d.client.AppsV1().Deployments(d.namespace).UpdateScale(ctx, d.name, scale, metav1.UpdateOptions{})
	return err
}

func (d *DeploymentHelper) WaitForCondition(ctx context.Context, fn func(*appsv1.Deployment) (bool, error), timeout time.Duration) error {
	fs := fields.SelectorFromSet(map[string]string{
		"metadata.namespace": d.namespace,
		"metadata.name":      d.name,
	})

	lw := &cache.ListWatch{
		ListFunc: func(options metav1.ListOptions) (runtime.Object, error) {
			options.FieldSelector = fs.String()
			return d.client.AppsV1().Deployments(d.namespace).List(ctx, options)
		},
		WatchFunc: func(options metav1.ListOptions) (watchapi.Interface, error) {
			options.FieldSelector = fs.String()
			return d.client.AppsV1().Deployments(d.namespace).Watch(ctx, options)
		},
	}

	ctx, cfn := context.WithTimeout(ctx, timeout)
	defer cfn()

	last, err := watch.UntilWithSync(ctx, lw, &appsv1.Deployment{}, nil, func(event watchapi.Event) (bool, error) {
		switch event.Type {
		case watchapi.Error:
			return false, fmt.Errorf("error watching deployment")

		case watchapi.Deleted:
			return false, fmt.Errorf("deployment %s/%s was deleted", d.namespace, d.name)

		default:
			return fn(event.Object.(*appsv1.Deployment))
		}
	})
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("no events received for deployment %s/%s", d.namespace, d.name)
	}
	return nil
}

// HasReadyReplicas is a WaitForCondition predicate.
func HasReadyReplicas(n int32) func(*appsv1.Deployment) (bool, error) {
	return func(dep *appsv1.Deployment) (bool, error) {
		return dep.Status.ReadyReplicas >= n, nil
	}
}
