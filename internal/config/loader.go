package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osReadFile = os.ReadFile

// TunnelFile is the on-disk configuration document. It exists so orchestrators
// can hand tunnelctl a single YAML file instead of spelling out every flag.
type TunnelFile struct {
	SSHForwarding SSHForwardingConfig `yaml:"sshForwarding"`
}

// LoadFromFile reads a tunnel configuration document from a YAML file.
// Values supplied on the command line are merged on top by the caller, so the
// file does not have to be complete on its own; Validate is the caller's
// responsibility once merging is done.
func LoadFromFile(path string) (TunnelFile, error) {
	var file TunnelFile

	data, err := osReadFile(path)
	if err != nil {
		return TunnelFile{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &file); err != nil {
		return TunnelFile{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	return file, nil
}

// Merge layers overrides on top of base: any override field that is set wins.
func Merge(base, overrides SSHForwardingConfig) SSHForwardingConfig {
	merged := base
	if overrides.SSHEndpoint != "" {
		merged.SSHEndpoint = overrides.SSHEndpoint
	}
	if overrides.PrivateKeyPath != "" {
		merged.PrivateKeyPath = overrides.PrivateKeyPath
	}
	if overrides.ForwardHost != "" {
		merged.ForwardHost = overrides.ForwardHost
	}
	if overrides.ForwardPort != 0 {
		merged.ForwardPort = overrides.ForwardPort
	}
	if overrides.LocalPort != 0 {
		merged.LocalPort = overrides.LocalPort
	}
	return merged
}
