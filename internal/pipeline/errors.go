package pipeline

import (
	"strconv"
	"strings"

	"emperror.dev/errors"
)

const (
	MinNodeCount = 1
	MaxNodeCount = 5
)

var (
	ErrInvalidNodeCount       = errors.New("node count must be an integer between 1 and 5")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrDeploymentFailed       = errors.New("deployment failed")
	ErrGridUnhealthy          = errors.New("chrome nodes are not running")
	ErrTestControllerNotFound = errors.New("test controller pod not found")
	ErrTestsFailed            = errors.New("tests failed")
)

// IsConfigError reports whether err was raised before any cluster call.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidNodeCount) || errors.Is(err, ErrInvalidConfig)
}

func ValidateNodeCount(n int) error {
	if n < MinNodeCount || n > MaxNodeCount {
		return errors.WithDetails(ErrInvalidNodeCount, "node_count", n)
	}
	return nil
}

// ParseNodeCount parses and validates a node count given on the command line.
func ParseNodeCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.WithDetails(errors.Wrap(ErrInvalidNodeCount, err.Error()), "node_count", s)
	}
	if err := ValidateNodeCount(n); err != nil {
		return 0, err
	}
	return n, nil
}
