package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/gridpilot/internal/config"
	"github.com/voluzi/gridpilot/internal/environ"
	"github.com/voluzi/gridpilot/internal/pipeline"
)

const (
	exitFailure     = 1
	exitConfigError = 2
)

var (
	logLevel          string
	nodeCount         string
	namespace         string
	kubeconfig        string
	backend           string
	configFile        string
	manifestsDir      string
	testDir           string
	remoteTestDir     string
	testCommand       string
	failOnTestFailure bool
)

var rootCmd = &cobra.Command{
	Use:   "gridpilot",
	Short: "Deploys a Selenium grid to Kubernetes and runs the UI tests on it",
	Long: `gridpilot applies the Selenium hub, Chrome node and test controller manifests,
waits for each of them to become ready, scales the Chrome nodes and finally runs the
browser tests from inside the test controller pod.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLvl, err := log.ParseLevel(logLevel)
		if err != nil {
			return errors.Wrap(pipeline.ErrInvalidConfig, fmt.Sprintf("invalid log level: %v", err))
		}
		log.SetLevel(logLvl)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := pipeline.ParseNodeCount(nodeCount)
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(configFile, manifestsDir)
		if err != nil {
			return err
		}

		cp, err := newControlPlane(backend, namespace, kubeconfig)
		if err != nil {
			return err
		}

		p := pipeline.New(cp,
			pipeline.WithResources(cfg.Resources),
			pipeline.WithPolicies(cfg.Policies),
			pipeline.WithTestDir(testDir),
			pipeline.WithRemoteTestDir(remoteTestDir),
			pipeline.WithTestCommand(testCommand),
			pipeline.FailOnTestFailure(failOnTestFailure),
			pipeline.WithOutput(cmd.OutOrStdout()),
		)

		start := time.Now()
		report, err := p.Run(cmd.Context(), n)
		if report != nil {
			log.WithFields(log.Fields{
				"run-id":       report.RunID,
				"time-elapsed": time.Since(start),
				"warnings":     len(report.Warnings),
				"tests-passed": report.TestsPassed(),
			}).Info("pipeline finished")
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level",
		environ.GetString("LOG_LEVEL", "info"),
		"Log level. One of debug, info, warn, error, fatal, panic.",
	)

	rootCmd.Flags().StringVar(&nodeCount,
		"node_count",
		environ.GetString("NODE_COUNT", "1"),
		fmt.Sprintf("Number of Chrome nodes, between %d and %d.", pipeline.MinNodeCount, pipeline.MaxNodeCount),
	)

	rootCmd.PersistentFlags().StringVar(&namespace,
		"namespace",
		environ.GetString("NAMESPACE", ""),
		"Namespace to deploy into. Defaults to the kubeconfig context namespace.",
	)

	rootCmd.PersistentFlags().StringVar(&kubeconfig,
		"kubeconfig",
		"",
		"Path to the kubeconfig file. Defaults to $KUBECONFIG or ~/.kube/config.",
	)

	rootCmd.PersistentFlags().StringVar(&backend,
		"backend",
		environ.GetString("BACKEND", backendKubectl),
		fmt.Sprintf("Control plane backend. One of %s, %s.", backendKubectl, backendClient),
	)

	rootCmd.PersistentFlags().StringVar(&configFile,
		"config",
		environ.GetString("CONFIG", ""),
		"Optional TOML file overriding retry policies and manifest paths.",
	)

	rootCmd.PersistentFlags().StringVar(&manifestsDir,
		"manifests-dir",
		environ.GetString("MANIFESTS_DIR", pipeline.DefaultManifestsDir),
		"Directory holding the services and deployments manifests.",
	)

	rootCmd.Flags().StringVar(&testDir,
		"test-dir",
		environ.GetString("TEST_DIR", pipeline.DefaultTestDir),
		"Local directory copied into the test controller pod.",
	)

	rootCmd.Flags().StringVar(&remoteTestDir,
		"remote-test-dir",
		environ.GetString("REMOTE_TEST_DIR", pipeline.DefaultRemoteTestDir),
		"Destination of the test directory inside the test controller pod.",
	)

	rootCmd.Flags().StringVar(&testCommand,
		"test-command",
		environ.GetString("TEST_COMMAND", pipeline.DefaultTestCommand),
		"Shell command running the tests inside the test controller pod.",
	)

	rootCmd.Flags().BoolVar(&failOnTestFailure,
		"fail-on-test-failure",
		environ.GetBool("FAIL_ON_TEST_FAILURE", false),
		"Exit with an error when the remote tests fail.",
	)
}

func exitCode(err error) int {
	if pipeline.IsConfigError(err) {
		return exitConfigError
	}
	return exitFailure
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithFields(detailFields(err)).Error(err)
		stop()
		os.Exit(exitCode(err))
	}
}

func detailFields(err error) log.Fields {
	details := errors.GetDetails(err)
	fields := make(log.Fields, len(details)/2)
	for i := 0; i+1 < len(details); i += 2 {
		fields[fmt.Sprint(details[i])] = details[i+1]
	}
	return fields
}
