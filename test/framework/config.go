package framework

const (
	DefaultClusterName = "gridpilot-e2e"

	// DefaultKindNodeImage is the default Kind node image
	DefaultKindNodeImage = "kindest/node:v1.29.2"
)

func DefaultConfig() *Config {
	return &Config{
		ClusterName:  DefaultClusterName,
		NodeImage:    DefaultKindNodeImage,
		ReuseCluster: true,
	}
}

type Config struct {
	ClusterName  string
	NodeImage    string
	ReuseCluster bool
	Images       []string
}

type Option func(*Config)

func WithClusterName(s string) Option {
	return func(cfg *Config) {
		cfg.ClusterName = s
	}
}

func WithNodeImage(s string) Option {
	return func(cfg *Config) {
		cfg.NodeImage = s
	}
}

func WithReuseCluster(v bool) Option {
	return func(cfg *Config) {
		cfg.ReuseCluster = v
	}
}

// WithImages lists local docker images to load into the cluster nodes.
func WithImages(images ...string) Option {
	return func(cfg *Config) {
		cfg.Images = append(cfg.Images, images...)
	}
}
