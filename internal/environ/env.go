package environ

import (
	"os"
	"strconv"
	"strings"
	"time"

	"k8s.io/kube-openapi/pkg/validation/strfmt"
)

// Prefix is checked before the bare key, so GRIDPILOT_NAMESPACE wins over NAMESPACE.
const Prefix = "GRIDPILOT_"

func lookup(key string) (string, bool) {
	if value, ok := os.LookupEnv(Prefix + key); ok {
		return value, true
	}
	return os.LookupEnv(key)
}

func GetString(key, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}

	return fallback
}

func GetInt(key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}

	return fallback
}

func GetBool(key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		return value == "true"
	}

	return fallback
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if t, err := strfmt.ParseDuration(value); err == nil {
			return t
		}
	}
	return fallback
}

// GetStringSlice splits a comma separated value. Empty items are dropped.
func GetStringSlice(key string, fallback []string) []string {
	value, ok := lookup(key)
	if !ok {
		return fallback
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
