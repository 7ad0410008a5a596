package config

import "fmt"

// SSHForwardingConfig describes a single SSH port-forwarding tunnel: which
// remote SSH server to dial, which credential to present, and which
// local-port -> destination-host:destination-port mapping to establish.
//
// All fields must be set before the tunnel is prepared; there is no notion of
// a partially configured tunnel.
type SSHForwardingConfig struct {
	// SSHEndpoint is the remote SSH server that supports tunneling, in the
	// form ssh://user@hostname[:port].
	SSHEndpoint string `yaml:"sshEndpoint"`
	// PrivateKeyPath is the path to the private key file used to authenticate
	// against the remote SSH server. The file should carry the permissions
	// OpenSSH expects (typically 600).
	PrivateKeyPath string `yaml:"privateKey"`
	// ForwardHost is the hostname of the remote destination (e.g. the
	// database server) reachable only through the tunnel.
	ForwardHost string `yaml:"forwardHost"`
	// ForwardPort is the port of the remote destination.
	ForwardPort uint16 `yaml:"forwardPort"`
	// LocalPort is the local port which will be connected to the remote
	// host/port over the tunnel. This should match the port used in the
	// client configuration.
	LocalPort uint16 `yaml:"localPort"`
}

// Validate checks that every field of the configuration is set. The tunnel
// machinery assumes a fully populated configuration and does not revalidate.
func (c SSHForwardingConfig) Validate() error {
	if c.SSHEndpoint == "" {
		return fmt.Errorf("sshEndpoint must be set")
	}
	if c.PrivateKeyPath == "" {
		return fmt.Errorf("privateKey must be set")
	}
	if c.ForwardHost == "" {
		return fmt.Errorf("forwardHost must be set")
	}
	if c.ForwardPort == 0 {
		return fmt.Errorf("forwardPort must be set")
	}
	if c.LocalPort == 0 {
		return fmt.Errorf("localPort must be set")
	}
	return nil
}
