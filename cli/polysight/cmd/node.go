package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/polysight-org/polysight/client"
	"github.com/polysight-org/polysight/internal/debug"
	"github.com/polysight-org/polysight/keyvaluedb/boltdb"
	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/partition"
	"github.com/polysight-org/polysight/rpc"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

const (
	nodeKeyFileName    = "node-key.json"
	blockStoreFileName = "blocks.db"
	txIndexFileName    = "txindex.db"

	defaultRPCServerAddress = "127.0.0.1:8899"
	// 500M SOL
	defaultGenesisSupply = 500_000_000 * solana.LAMPORTS_PER_SOL
)

type (
	nodeConfiguration struct {
		Base *baseConfiguration

		// NodeKeyFile is the keypair of the node, it signs the blocks and is the faucet
		NodeKeyFile     string
		GenerateNodeKey bool
		BlockStoreFile  string
		TxIndexFile     string

		NetworkID      uint32
		BlockRate      time.Duration
		GenesisSupply  uint64
		WithOwnerIndex bool
		WithFaucet     bool

		RPCServer *rpc.ServerConfiguration
	}

	nodeRunnable func(ctx context.Context, cfg *nodeConfiguration) error
)

func newNodeCmd(baseConfig *baseConfiguration, runFunc nodeRunnable) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manages the local validator node",
	}
	cmd.AddCommand(nodeRunCmd(baseConfig, runFunc))
	return cmd
}

func nodeRunCmd(baseConfig *baseConfiguration, runFunc nodeRunnable) *cobra.Command {
	config := &nodeConfiguration{
		Base:      baseConfig,
		RPCServer: &rpc.ServerConfiguration{},
	}
	var cmd = &cobra.Command{
		Use:   "run",
		Short: "Starts the node",
		Long:  `Starts the local validator node with the prediction market program and serves the JSON-RPC API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runFunc != nil {
				return runFunc(cmd.Context(), config)
			}
			return defaultNodeRunFunc(cmd.Context(), config)
		},
	}

	cmd.Flags().StringVarP(&config.NodeKeyFile, "node-key", "k", "", fmt.Sprintf("path to the node keypair file (default %s)", filepath.Join("$PS_HOME", nodeKeyFileName)))
	cmd.Flags().BoolVarP(&config.GenerateNodeKey, "gen-key", "g", false, "generates new node keypair if none exist")
	cmd.Flags().StringVar(&config.BlockStoreFile, "block-db", "", fmt.Sprintf("path to the block database (default %s)", filepath.Join("$PS_HOME", blockStoreFileName)))
	cmd.Flags().StringVar(&config.TxIndexFile, "tx-index-db", "", fmt.Sprintf("path to the transaction index database (default %s)", filepath.Join("$PS_HOME", txIndexFileName)))
	cmd.Flags().Uint32Var(&config.NetworkID, "network-id", uint32(types.NetworkLocal), "network identifier")
	cmd.Flags().DurationVar(&config.BlockRate, "block-rate", partition.DefaultBlockRate, "time between two blocks")
	cmd.Flags().Uint64Var(&config.GenesisSupply, "genesis-supply", defaultGenesisSupply, "lamports of the node account in the genesis")
	cmd.Flags().BoolVar(&config.WithOwnerIndex, "with-owner-index", true, "enable/disable owner indexer")
	cmd.Flags().BoolVar(&config.WithFaucet, "with-faucet", true, "enable/disable airdrops from the node account")
	addRPCServerConfigurationFlags(cmd, config.RPCServer)
	return cmd
}

func (c *nodeConfiguration) nodeKeyFile() string {
	if c.NodeKeyFile != "" {
		return c.NodeKeyFile
	}
	return filepath.Join(c.Base.HomeDir, nodeKeyFileName)
}

func (c *nodeConfiguration) storeFile(file, defaultName string) string {
	if file != "" {
		return file
	}
	return filepath.Join(c.Base.HomeDir, defaultName)
}

// loadNodeKey loads the node keypair, the keypair is generated when it doesn't exist and "generate" is set.
func loadNodeKey(file string, generate bool) (solana.PrivateKey, error) {
	if _, err := os.Stat(file); err != nil {
		if !errors.Is(err, os.ErrNotExist) || !generate {
			return nil, fmt.Errorf("node keypair file %s: %w", file, err)
		}
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generating node keypair: %w", err)
		}
		if err := client.SaveKeygenFile(file, key); err != nil {
			return nil, err
		}
		return key, nil
	}
	return client.LoadKeygenFile(file)
}

func defaultNodeRunFunc(ctx context.Context, config *nodeConfiguration) error {
	obs := config.Base.observe
	if err := os.MkdirAll(config.Base.HomeDir, 0700); err != nil {
		return fmt.Errorf("creating home directory: %w", err)
	}
	nodeKey, err := loadNodeKey(config.nodeKeyFile(), config.GenerateNodeKey)
	if err != nil {
		return err
	}
	log := obs.Logger().With(logger.NodeID(nodeKey.PublicKey()))

	blockStore, err := boltdb.New(config.storeFile(config.BlockStoreFile, blockStoreFileName))
	if err != nil {
		return fmt.Errorf("opening block store: %w", err)
	}
	defer blockStore.Close()
	txIndex, err := boltdb.New(config.storeFile(config.TxIndexFile, txIndexFileName))
	if err != nil {
		return fmt.Errorf("opening transaction index: %w", err)
	}
	defer txIndex.Close()

	networkID := types.NetworkID(config.NetworkID)
	s, err := system.NewGenesisState(map[types.Address]uint64{nodeKey.PublicKey(): config.GenesisSupply})
	if err != nil {
		return err
	}
	marketModule, err := market.NewModule(s)
	if err != nil {
		return fmt.Errorf("creating market program: %w", err)
	}
	txs, err := system.NewTxSystem(networkID, nodeKey.PublicKey(), s, []txsystem.Module{marketModule}, obs)
	if err != nil {
		return fmt.Errorf("creating transaction system: %w", err)
	}

	options := []partition.NodeOption{
		partition.WithBlockStore(blockStore),
		partition.WithTxIndex(txIndex),
		partition.WithBlockRate(config.BlockRate),
	}
	if config.WithOwnerIndex {
		options = append(options, partition.WithOwnerIndex(partition.NewOwnerIndexer(log)))
	}
	if config.WithFaucet {
		options = append(options, partition.WithFaucet(nodeKey))
	}
	node, err := partition.NewNode(ctx, networkID, nodeKey, txs, obs, options...)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	log.InfoContext(ctx, fmt.Sprintf("starting polysight node: BuildInfo=%s", debug.ReadBuildInfo()))
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return node.Run(ctx) })

	g.Go(func() error {
		if config.RPCServer.IsAddressEmpty() {
			return nil // return nil in this case in order not to kill the group!
		}
		stateAPIOpts := []rpc.StateAPIOption{}
		if idx := node.OwnerIndex(); idx != nil {
			stateAPIOpts = append(stateAPIOpts, rpc.WithOwnerIndex(idx))
		}
		config.RPCServer.APIs = []rpc.API{
			{
				Namespace: "state",
				Service:   rpc.NewStateAPI(node, obs, stateAPIOpts...),
			},
		}
		rpcServer, err := rpc.NewHTTPServer(config.RPCServer, obs,
			rpc.MetricsEndpoints(obs.MetricsHandler()),
			rpc.InfoEndpoints(node, "polysight node", log),
			rpc.NodeEndpoints(node, log),
		)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, fmt.Sprintf("RPC server starting on %s", rpcServer.Addr))
		err = httpsrv.Run(ctx, *rpcServer, httpsrv.ShutdownTimeout(5*time.Second))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.InfoContext(ctx, "RPC server exited")
		return nil
	})

	return g.Wait()
}
