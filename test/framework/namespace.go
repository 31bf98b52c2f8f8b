package framework

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

const randomNamespacePrefix = "gridpilot-e2e-"

func (f *KindFramework) CreateRandomNamespace() (*corev1.Namespace, error) {
	return f.kubeClient.CoreV1().Namespaces().Create(f.ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: randomNamespacePrefix,
		},
	}, metav1.CreateOptions{})
}

func (f *KindFramework) DeleteNamespace(ns *corev1.Namespace) error {
	return f.kubeClient.CoreV1().Namespaces().Delete(f.ctx, ns.Name, metav1.DeleteOptions{
		GracePeriodSeconds: ptr.To[int64](0),
	})
}
