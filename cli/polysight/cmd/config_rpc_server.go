package cmd

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/polysight-org/polysight/rpc"
)

const (
	rpcServerAddressCmdName                = "rpc-server-address"
	rpcServerReadTimeoutCmdName            = "rpc-server-read-timeout"
	rpcServerReadHeaderTimeoutCmdName      = "rpc-server-read-header-timeout"
	rpcServerWriteTimeoutCmdName           = "rpc-server-write-timeout"
	rpcServerIdleTimeoutCmdName            = "rpc-server-idle-timeout"
	rpcServerMaxHeaderCmdName              = "rpc-server-max-header"
	rpcServerMaxBodyCmdName                = "rpc-server-max-body"
	rpcServerBatchItemLimitCmdName         = "rpc-server-batch-item-limit"
	rpcServerBatchResponseSizeLimitCmdName = "rpc-server-batch-response-size-limit"
)

func addRPCServerConfigurationFlags(cmd *cobra.Command, c *rpc.ServerConfiguration) {
	cmd.Flags().StringVar(&c.Address, rpcServerAddressCmdName, defaultRPCServerAddress,
		"Specifies the TCP address for the RPC server to listen on, in the form \"host:port\". RPC server isn't initialised if Address is empty.")
	cmd.Flags().DurationVar(&c.ReadTimeout, rpcServerReadTimeoutCmdName, 0,
		"The maximum duration for reading the entire request, including the body. A zero or negative value means there will be no timeout.")
	cmd.Flags().DurationVar(&c.ReadHeaderTimeout, rpcServerReadHeaderTimeoutCmdName, 0,
		"The amount of time allowed to read request headers. If rpc-server-read-header-timeout is zero, the value of rpc-server-read-timeout is used. If both are zero, there is no timeout.")
	cmd.Flags().DurationVar(&c.WriteTimeout, rpcServerWriteTimeoutCmdName, 0,
		"The maximum duration before timing out writes of the response. A zero or negative value means there will be no timeout.")
	cmd.Flags().DurationVar(&c.IdleTimeout, rpcServerIdleTimeoutCmdName, 0,
		"The maximum amount of time to wait for the next request when keep-alives are enabled. If rpc-server-idle-timeout is zero, the value of rpc-server-read-timeout is used. If both are zero, there is no timeout.")
	cmd.Flags().IntVar(&c.MaxHeaderBytes, rpcServerMaxHeaderCmdName, http.DefaultMaxHeaderBytes,
		"The maximum number of bytes the server will read parsing the request header's keys and values, including the request line.")
	cmd.Flags().Int64Var(&c.MaxBodyBytes, rpcServerMaxBodyCmdName, rpc.DefaultMaxBodyBytes,
		"The maximum number of bytes the server will read parsing the request body.")
	cmd.Flags().IntVar(&c.BatchItemLimit, rpcServerBatchItemLimitCmdName, rpc.DefaultBatchItemLimit,
		"The maximum number of requests in a batch.")
	cmd.Flags().IntVar(&c.BatchResponseSizeLimit, rpcServerBatchResponseSizeLimitCmdName, rpc.DefaultBatchResponseSizeLimit,
		"The maximum number of response bytes across all requests in a batch.")
}
