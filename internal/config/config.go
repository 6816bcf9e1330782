// Package config resolves the transport configuration from git config
// settings, with environment overrides.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/aweris/bigfile/internal/transport"
)

const (
	// Section is the git config section holding every bigfile setting.
	Section = "git-bigfile"

	// EnvPrefix prefixes environment overrides, e.g. GIT_BIGFILE_LOCAL_PATH.
	EnvPrefix = "GIT_BIGFILE"

	transportKey = "transport"
)

// TransportKey is the git config key selecting the transport kind.
const TransportKey = Section + "." + transportKey

// Load reads the git-bigfile.* entries of settings (as listed by
// `git config --list`) into a viper instance bound to the environment.
func Load(settings map[string]string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	prefix := Section + "."
	for key, value := range settings {
		key = strings.ToLower(key)
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		v.SetDefault(strings.TrimPrefix(key, prefix), value)
	}
	return v
}

// Resolve returns the validated transport configuration.
func Resolve(settings map[string]string) (transport.Config, error) {
	v := Load(settings)

	kind := v.GetString(transportKey)
	k, ok := transport.ParseKind(kind)
	if !ok {
		return transport.ParseConfig(kind, nil)
	}

	options := make(map[string]string)
	for _, option := range transport.Options(k) {
		if value := v.GetString(string(k) + "." + option); value != "" {
			options[option] = value
		}
	}
	return transport.ParseConfig(string(k), options)
}
