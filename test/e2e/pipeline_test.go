package e2e

import (
	"bytes"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/k8s"
	"github.com/voluzi/gridpilot/internal/kubectl"
	"github.com/voluzi/gridpilot/internal/pipeline"
	"github.com/voluzi/gridpilot/internal/readiness"
	"github.com/voluzi/gridpilot/test/framework"
)

// Image pulls dominate on a fresh cluster, so waits are longer than the defaults.
func e2ePolicies() pipeline.Policies {
	p := pipeline.DefaultPolicies()
	p.Deployment = readiness.RetryPolicy{MaxAttempts: 60, Interval: 5 * time.Second, MaxCycles: 2}
	p.Health = readiness.RetryPolicy{MaxAttempts: 60, Interval: 5 * time.Second}
	return p
}

func newPipeline(cp controlplane.ControlPlane, out *bytes.Buffer) *pipeline.Pipeline {
	root := framework.ProjectRoot()
	return pipeline.New(cp,
		pipeline.WithResources(pipeline.DefaultResources(filepath.Join(root, pipeline.DefaultManifestsDir))),
		pipeline.WithPolicies(e2ePolicies()),
		pipeline.WithTestDir(filepath.Join(root, "test")),
		pipeline.WithTestCommand("test -f /workspace/test/insider/insider_test.go && echo copied"),
		pipeline.FailOnTestFailure(true),
		pipeline.WithOutput(out),
	)
}

var _ = Describe("Pipeline", func() {
	var ns *corev1.Namespace

	BeforeEach(func() {
		var err error
		ns, err = tf.CreateRandomNamespace()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(tf.DeleteNamespace(ns)).To(Succeed())
	})

	backends := map[string]func(namespace string) controlplane.ControlPlane{
		"kubectl": func(namespace string) controlplane.ControlPlane {
			return controlplane.NewKubectl(kubectl.NewCommandRunner(
				kubectl.WithNamespace(namespace),
				kubectl.WithKubeconfig(tf.KubeconfigPath()),
			))
		},
		"client": func(namespace string) controlplane.ControlPlane {
			cluster, err := k8s.NewCluster(tf.RestConfig(), namespace)
			Expect(err).NotTo(HaveOccurred())
			return cluster
		},
	}

	for name, newBackend := range backends {
		newBackend := newBackend

		Context("with the "+name+" backend", func() {
			It("deploys the grid with three chrome nodes and runs the tests", func() {
				out := &bytes.Buffer{}
				report, err := newPipeline(newBackend(ns.Name), out).Run(tf.Context(), 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Deployments).To(HaveLen(3))
				Expect(report.TestsPassed()).To(BeTrue())
				Expect(out.String()).To(ContainSubstring("copied"))

				By("waiting for the chrome nodes to become ready")
				chrome := k8s.NewDeploymentHelper(tf.KubeClient(), ns.Name, pipeline.ChromeNode)
				Expect(chrome.WaitForCondition(tf.Context(), k8s.HasReadyReplicas(3), 5*time.Minute)).To(Succeed())

				dep, err := chrome.Get(tf.Context())
				Expect(err).NotTo(HaveOccurred())
				Expect(*dep.Spec.Replicas).To(BeEquivalentTo(3))

				By("checking the autoscaler exists")
				_, err = tf.KubeClient().AutoscalingV2().HorizontalPodAutoscalers(ns.Name).
					Get(tf.Context(), pipeline.ChromeNodeHPA, metav1.GetOptions{})
				Expect(err).NotTo(HaveOccurred())
			})

			It("rejects an out of range node count without creating anything", func() {
				_, err := newPipeline(newBackend(ns.Name), &bytes.Buffer{}).Run(tf.Context(), 7)
				Expect(err).To(MatchError(pipeline.ErrInvalidNodeCount))

				_, err = tf.KubeClient().AppsV1().Deployments(ns.Name).
					Get(tf.Context(), pipeline.SeleniumHub, metav1.GetOptions{})
				Expect(apierrors.IsNotFound(err)).To(BeTrue())
			})
		})
	}
})
