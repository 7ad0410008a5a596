package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tunnelctl/internal/config"
	"tunnelctl/internal/tunnel"
	"tunnelctl/pkg/logging"
)

// runTunnelFn allows mocking of the lifecycle driver for testing.
var runTunnelFn = tunnel.RunAndCleanup

func newSSHCmd() *cobra.Command {
	var (
		configFile  string
		flagCfg     config.SSHForwardingConfig
		forwardPort uint16
		localPort   uint16
	)

	sshCmd := &cobra.Command{
		Use:   "ssh",
		Short: "Forward a local port to a remote destination over an SSH tunnel",
		Long: `Starts an SSH network tunnel and forwards a local port to a destination
host reachable through the remote SSH server.

The tunnel is backed by the system OpenSSH client, which must be present on
PATH. When the tunnel is ready to accept connections, "READY" is printed to
stdout; the process then blocks until the ssh process terminates, and always
kills the child before exiting.

Configuration can be supplied entirely through flags, or through a YAML file
(--config) with flags acting as overrides:

  sshForwarding:
    sshEndpoint: ssh://user@bastion.example.com
    privateKey: /secrets/id_rsa
    forwardHost: db.internal
    forwardPort: 5432
    localPort: 5432`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flagCfg.ForwardPort = forwardPort
			flagCfg.LocalPort = localPort

			cfg := flagCfg
			if configFile != "" {
				file, err := config.LoadFromFile(configFile)
				if err != nil {
					return err
				}
				cfg = config.Merge(file.SSHForwarding, flagCfg)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid tunnel configuration: %w", err)
			}

			err := runTunnelFn(cmd.Context(), tunnel.NewSSHForwarding(cfg), os.Stdout)
			if err != nil {
				// One top-level structured record per failed run; cobra adds
				// its short error line and Execute turns it into exit code 1.
				logging.Error("tunnel", err, "network tunnel failed")
			}
			return err
		},
	}

	sshCmd.Flags().StringVar(&flagCfg.SSHEndpoint, "ssh-endpoint", "",
		"Endpoint of the remote SSH server that supports tunneling, in the form ssh://user@hostname[:port]")
	sshCmd.Flags().StringVar(&flagCfg.PrivateKeyPath, "private-key", "",
		"Path to the private key file used to connect to the remote SSH server (recommended permissions: 600)")
	sshCmd.Flags().StringVar(&flagCfg.ForwardHost, "forward-host", "",
		"Hostname of the remote destination (e.g. the database server)")
	sshCmd.Flags().Uint16Var(&forwardPort, "forward-port", 0,
		"Port of the remote destination")
	sshCmd.Flags().Uint16Var(&localPort, "local-port", 0,
		"Local port which will be connected to the remote host/port over the tunnel")
	sshCmd.Flags().StringVar(&configFile, "config", "",
		"Path to a YAML tunnel configuration file; flags override file values")

	return sshCmd
}
