package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config wraps a viper instance seeded with the mirror defaults, an
// optional config file, and KUBEMIRROR_* environment variables.
type Config struct {
	v *viper.Viper
}

func New() (*Config, error) {
	v := viper.New()

	for _, o := range MirrorOptions {
		v.SetDefault(o.Key, o.Default)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kubemirror/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("KUBEMIRROR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers one CLI flag per option and binds it so that a
// flag set on the command line overrides file and environment values.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

func (c *Config) MirrorAddress() string {
	return c.v.GetString(keyMirrorAddress) // KUBEMIRROR_MIRROR_ADDRESS
}

func (c *Config) MirrorAllowedOrigins() []string {
	return c.v.GetStringSlice(keyMirrorAllowedOrigins) // KUBEMIRROR_MIRROR_ALLOWED_ORIGINS
}

func (c *Config) MirrorSource() string {
	return c.v.GetString(keyMirrorSource) // KUBEMIRROR_MIRROR_SOURCE
}

func (c *Config) MirrorKubeconfig() string {
	return c.v.GetString(keyMirrorKubeconfig) // KUBEMIRROR_MIRROR_KUBECONFIG
}

func (c *Config) MirrorHTTPBaseURL() string {
	return c.v.GetString(keyMirrorHTTPBaseURL) // KUBEMIRROR_MIRROR_HTTP_BASE_URL
}

func (c *Config) MirrorHTTPBearerToken() string {
	return c.v.GetString(keyMirrorHTTPToken) // KUBEMIRROR_MIRROR_HTTP_BEARER_TOKEN
}

func (c *Config) MirrorCollections() []string {
	return c.v.GetStringSlice(keyMirrorCollections) // KUBEMIRROR_MIRROR_COLLECTIONS
}

func (c *Config) MirrorBackoffFloor() time.Duration {
	return c.v.GetDuration(keyMirrorBackoffFloor) // KUBEMIRROR_MIRROR_BACKOFF_FLOOR
}

func (c *Config) MirrorBackoffCeiling() time.Duration {
	return c.v.GetDuration(keyMirrorBackoffCeiling) // KUBEMIRROR_MIRROR_BACKOFF_CEILING
}

func (c *Config) MirrorSubscriberBuffer() int {
	return c.v.GetInt(keyMirrorBuffer) // KUBEMIRROR_MIRROR_SUBSCRIBER_BUFFER
}

func (c *Config) MirrorLeaderEnabled() bool {
	return c.v.GetBool(keyMirrorLeaderEnabled) // KUBEMIRROR_MIRROR_LEADER_ENABLED
}

func (c *Config) MirrorLeaderLeaseName() string {
	return c.v.GetString(keyMirrorLeaderLease) // KUBEMIRROR_MIRROR_LEADER_LEASE_NAME
}

func (c *Config) MirrorLeaderNamespace() string {
	return c.v.GetString(keyMirrorLeaderNS) // KUBEMIRROR_MIRROR_LEADER_NAMESPACE
}
