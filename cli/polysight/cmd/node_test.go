package cmd

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testlogr "github.com/polysight-org/polysight/internal/testutils/logger"
	"github.com/polysight-org/polysight/partition"
	"github.com/polysight-org/polysight/rpc"
	"github.com/polysight-org/polysight/types"
)

type envVar [2]string

func TestNodeConfig_EnvAndFlags(t *testing.T) {
	tmpDir := t.TempDir()
	logCfgFilename := filepath.Join(tmpDir, "custom-log-conf.yaml")

	// custom log cfg file with minimal content
	require.NoError(t, os.WriteFile(logCfgFilename, []byte(`log-format: "text"`), 0666))

	tests := []struct {
		args           string   // arguments as a space separated string
		envVars        []envVar // Environment variables that will be set before creating command
		expectedConfig *nodeConfiguration
	}{
		// Base configuration permutations
		{
			args:           "node run",
			expectedConfig: defaultNodeConfiguration(),
		}, {
			args: "node run --home=/custom-home",
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.Base = &baseConfiguration{
					HomeDir:    "/custom-home",
					CfgFile:    filepath.Join("/custom-home", defaultConfigFile),
					LogCfgFile: defaultLoggerConfigFile,
				}
				return sc
			}(),
		}, {
			args: "node run --home=/custom-home --config=custom-config.props",
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.Base = &baseConfiguration{
					HomeDir:    "/custom-home",
					CfgFile:    "/custom-home/custom-config.props",
					LogCfgFile: defaultLoggerConfigFile,
				}
				return sc
			}(),
		},
		// node configuration from flags
		{
			args: "node run -k /keys/node.json -g --block-db /db/b.db --tx-index-db /db/t.db --network-id 2 --block-rate 1s --genesis-supply 5 --with-owner-index=false --with-faucet=false",
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.NodeKeyFile = "/keys/node.json"
				sc.GenerateNodeKey = true
				sc.BlockStoreFile = "/db/b.db"
				sc.TxIndexFile = "/db/t.db"
				sc.NetworkID = uint32(types.NetworkTestnet)
				sc.BlockRate = time.Second
				sc.GenesisSupply = 5
				sc.WithOwnerIndex = false
				sc.WithFaucet = false
				return sc
			}(),
		}, {
			args: "node run --rpc-server-address=srv:1111 --rpc-server-read-timeout=10s --rpc-server-read-header-timeout=11s --rpc-server-write-timeout=12s --rpc-server-idle-timeout=13s --rpc-server-max-header=14 --rpc-server-max-body=15 --rpc-server-batch-item-limit=16 --rpc-server-batch-response-size-limit=17",
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.RPCServer = &rpc.ServerConfiguration{
					Address:                "srv:1111",
					ReadTimeout:            10 * time.Second,
					ReadHeaderTimeout:      11 * time.Second,
					WriteTimeout:           12 * time.Second,
					IdleTimeout:            13 * time.Second,
					MaxHeaderBytes:         14,
					MaxBodyBytes:           15,
					BatchItemLimit:         16,
					BatchResponseSizeLimit: 17,
				}
				return sc
			}(),
		},
		// node configuration from ENV
		{
			args: "node run",
			envVars: []envVar{
				{"PS_RPC_SERVER_ADDRESS", "srv:1234"},
				{"PS_BLOCK_RATE", "2s"},
			},
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.RPCServer.Address = "srv:1234"
				sc.BlockRate = 2 * time.Second
				return sc
			}(),
		}, {
			args: "node run --rpc-server-address=srv:666",
			envVars: []envVar{
				{"PS_RPC_SERVER_ADDRESS", "srv:1234"},
			},
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.RPCServer.Address = "srv:666"
				return sc
			}(),
		}, {
			args: "node run --home=/custom-home-1",
			envVars: []envVar{
				{"PS_HOME", "/custom-home-2"},
				{"PS_CONFIG", "custom-config.props"},
				{"PS_LOGGER_CONFIG", logCfgFilename},
			},
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.Base = &baseConfiguration{
					HomeDir:    "/custom-home-1",
					CfgFile:    "/custom-home-1/custom-config.props",
					LogCfgFile: logCfgFilename,
				}
				return sc
			}(),
		}, {
			args: "node run",
			envVars: []envVar{
				{"PS_HOME", "/custom-home"},
				{"PS_CONFIG", "custom-config.props"},
			},
			expectedConfig: func() *nodeConfiguration {
				sc := defaultNodeConfiguration()
				sc.Base = &baseConfiguration{
					HomeDir:    "/custom-home",
					CfgFile:    "/custom-home/custom-config.props",
					LogCfgFile: defaultLoggerConfigFile,
				}
				return sc
			}(),
		},
	}
	for _, tt := range tests {
		t.Run("node_conf|"+tt.args+"|"+envVarsStr(tt.envVars), func(t *testing.T) {
			var actualConfig *nodeConfiguration
			runFunc := func(ctx context.Context, c *nodeConfiguration) error {
				actualConfig = c
				return nil
			}

			// Set environment variables only for single test.
			for _, en := range tt.envVars {
				t.Setenv(en[0], en[1])
			}

			app := New(testlogr.LoggerBuilder(t), NodeRunFunc(runFunc))
			app.baseCmd.SetArgs(strings.Split(tt.args, " "))
			err := app.Execute(context.Background())
			require.NoError(t, err, "executing app command")
			require.NotNil(t, actualConfig.Base.observe)
			// do not compare logger and observability implementation
			actualConfig.Base.observe = nil
			actualConfig.Base.loggerBuilder = nil
			require.Equal(t, tt.expectedConfig, actualConfig)
		})
	}
}

func TestNodeConfig_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	logCfgFilename := filepath.Join(tmpDir, "custom-log-conf.yaml")

	configFileContents := `
rpc-server-address: "srv:1234"
network-id: 2
logger-config: "` + logCfgFilename + `"
`

	// custom log cfg file must exist so store one value there
	require.NoError(t, os.WriteFile(logCfgFilename, []byte(`log-format: "text"`), 0666))

	cfgFilename := filepath.Join(tmpDir, "custom-conf.yaml")
	require.NoError(t, os.WriteFile(cfgFilename, []byte(configFileContents), 0666))

	expectedConfig := defaultNodeConfiguration()
	expectedConfig.Base.CfgFile = cfgFilename
	expectedConfig.Base.LogCfgFile = logCfgFilename
	expectedConfig.RPCServer.Address = "srv:1234"
	expectedConfig.NetworkID = uint32(types.NetworkTestnet)

	var actualConfig *nodeConfiguration
	runFunc := func(ctx context.Context, c *nodeConfiguration) error {
		actualConfig = c
		return nil
	}

	app := New(testlogr.LoggerBuilder(t), NodeRunFunc(runFunc))
	args := "node run --config=" + cfgFilename
	app.baseCmd.SetArgs(strings.Split(args, " "))
	err := app.Execute(context.Background())
	require.NoError(t, err, "executing app command")
	// do not compare logger and observability implementation
	actualConfig.Base.observe = nil
	actualConfig.Base.loggerBuilder = nil
	require.Equal(t, expectedConfig, actualConfig)
}

func TestNodeConfig_Paths(t *testing.T) {
	c := defaultNodeConfiguration()
	c.Base.HomeDir = "/home/ps"
	require.Equal(t, "/home/ps/node-key.json", c.nodeKeyFile())
	require.Equal(t, "/home/ps/blocks.db", c.storeFile(c.BlockStoreFile, blockStoreFileName))
	require.Equal(t, "/home/ps/txindex.db", c.storeFile(c.TxIndexFile, txIndexFileName))

	c.NodeKeyFile = "/keys/node.json"
	c.TxIndexFile = "/db/idx.db"
	require.Equal(t, "/keys/node.json", c.nodeKeyFile())
	require.Equal(t, "/db/idx.db", c.storeFile(c.TxIndexFile, txIndexFileName))
}

func TestLoadNodeKey(t *testing.T) {
	file := filepath.Join(t.TempDir(), "node-key.json")

	_, err := loadNodeKey(file, false)
	require.ErrorIs(t, err, os.ErrNotExist)

	key, err := loadNodeKey(file, true)
	require.NoError(t, err)
	require.FileExists(t, file)

	// existing key is not replaced
	key2, err := loadNodeKey(file, true)
	require.NoError(t, err)
	require.Equal(t, key, key2)
	key3, err := loadNodeKey(file, false)
	require.NoError(t, err)
	require.Equal(t, key, key3)
}

func TestRunNode_Ok(t *testing.T) {
	homeDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStoppedWg := make(chan error, 1)
	go func() {
		app := New(testlogr.LoggerBuilder(t))
		args := "node run -g --home " + homeDir + " --block-rate 20ms --rpc-server-address 127.0.0.1:0"
		app.baseCmd.SetArgs(strings.Split(args, " "))
		appStoppedWg <- app.Execute(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(homeDir, blockStoreFileName))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	require.FileExists(t, filepath.Join(homeDir, nodeKeyFileName))

	cancel()
	select {
	case err := <-appStoppedWg:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("node did not stop")
	}
}

func defaultNodeConfiguration() *nodeConfiguration {
	return &nodeConfiguration{
		Base: &baseConfiguration{
			HomeDir:    polysightHomeDir(),
			CfgFile:    filepath.Join(polysightHomeDir(), defaultConfigFile),
			LogCfgFile: defaultLoggerConfigFile,
		},

		NetworkID:      uint32(types.NetworkLocal),
		BlockRate:      partition.DefaultBlockRate,
		GenesisSupply:  defaultGenesisSupply,
		WithOwnerIndex: true,
		WithFaucet:     true,

		RPCServer: &rpc.ServerConfiguration{
			Address:                defaultRPCServerAddress,
			MaxHeaderBytes:         http.DefaultMaxHeaderBytes,
			MaxBodyBytes:           rpc.DefaultMaxBodyBytes,
			BatchItemLimit:         rpc.DefaultBatchItemLimit,
			BatchResponseSizeLimit: rpc.DefaultBatchResponseSizeLimit,
		},
	}
}

// envVarsStr creates sting for test names from envVars
func envVarsStr(envVars []envVar) (out string) {
	if len(envVars) == 0 {
		return
	}
	out += "ENV:"
	for i, ev := range envVars {
		if i > 0 {
			out += "&"
		}
		out += ev[0] + "=" + ev[1]
	}
	return
}
