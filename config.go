package delundef

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// WhitelistConfig extends the built-in whitelist with project-specific
// names. Layout:
//
//	leave:
//	  - my_runtime_hook
//	prefixes:
//	  - __my_verifier_
type WhitelistConfig struct {
	Leave    []string `yaml:"leave"`
	Prefixes []string `yaml:"prefixes"`
}

// LoadWhitelist reads a whitelist extension file.
func LoadWhitelist(path string) (WhitelistConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WhitelistConfig{}, errors.Wrap(err, "read whitelist")
	}
	var cfg WhitelistConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return WhitelistConfig{}, errors.Wrapf(err, "parse whitelist %s", path)
	}
	return cfg, nil
}
