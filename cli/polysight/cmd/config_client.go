package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/polysight-org/polysight/client"
	"github.com/polysight-org/polysight/types"
)

const (
	providerURLCmdName    = "provider-url"
	walletCmdName         = "wallet"
	networkIDCmdName      = "network-id"
	skipPreflightCmdName  = "skip-preflight"
	confirmTimeoutCmdName = "confirm-timeout"
)

// clientConfiguration is the configuration of the commands which talk to the node.
type clientConfiguration struct {
	Base *baseConfiguration

	ProviderURL    string
	WalletFile     string
	NetworkID      uint32
	SkipPreflight  bool
	ConfirmTimeout time.Duration
}

func (c *clientConfiguration) addClientFlags(cmd *cobra.Command) {
	// flag names match the client env variables, ie --provider-url can be set with PS_PROVIDER_URL
	cmd.PersistentFlags().StringVarP(&c.ProviderURL, providerURLCmdName, "u", client.DefaultProviderURL, "JSON-RPC endpoint of the node")
	cmd.PersistentFlags().StringVarP(&c.WalletFile, walletCmdName, "w", "", fmt.Sprintf("keypair file which signs and pays for the transactions (default %s)", defaultWalletFile()))
	cmd.PersistentFlags().Uint32Var(&c.NetworkID, networkIDCmdName, uint32(types.NetworkLocal), "network identifier")
	cmd.PersistentFlags().BoolVar(&c.SkipPreflight, skipPreflightCmdName, false, "skip the simulation of the transaction before it's accepted by the node")
	cmd.PersistentFlags().DurationVar(&c.ConfirmTimeout, confirmTimeoutCmdName, client.DefaultConfirmTimeout, "how long to wait for the transaction to be included into block")
}

func (c *clientConfiguration) walletFile() string {
	if c.WalletFile != "" {
		return c.WalletFile
	}
	return defaultWalletFile()
}

func (c *clientConfiguration) providerOptions() client.ProviderOptions {
	opts := client.DefaultProviderOptions()
	opts.NetworkID = types.NetworkID(c.NetworkID)
	opts.SkipPreflight = c.SkipPreflight
	opts.ConfirmTimeout = c.ConfirmTimeout
	return opts
}

func (c *clientConfiguration) connect(ctx context.Context) (*client.Connection, error) {
	conn, err := client.Dial(ctx, c.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", c.ProviderURL, err)
	}
	return conn, nil
}

// provider returns provider with the wallet of the configuration, caller must close it.
func (c *clientConfiguration) provider(ctx context.Context) (*client.Provider, error) {
	key, err := client.LoadKeygenFile(c.walletFile())
	if err != nil {
		return nil, err
	}
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.NewProvider(conn, key, c.providerOptions()), nil
}

func defaultWalletFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}
