// Package e2e deploys the Selenium grid into a Kind cluster with both control
// plane backends and checks the resulting workloads.
package e2e
