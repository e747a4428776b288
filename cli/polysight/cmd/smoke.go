package cmd

import (
	"github.com/spf13/cobra"

	"github.com/polysight-org/polysight/client"
	clientmarket "github.com/polysight-org/polysight/client/market"
	"github.com/polysight-org/polysight/logger"
)

const programName = "polySightContracts"

/*
newSmokeCmd sends the "initialize" instruction of the market program, ie checks
that the program is deployed on the node and accepts transactions of the wallet.
*/
func newSmokeCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &clientConfiguration{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Initializes the market program to check that the node is usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider, err := config.provider(ctx)
			if err != nil {
				return err
			}
			defer provider.Close()

			prg, err := client.DefaultWorkspace().Program(ctx, provider, programName)
			if err != nil {
				return err
			}
			sig, err := clientmarket.New(prg).Methods().Initialize().RPC(ctx)
			if err != nil {
				return err
			}
			config.Base.observe.Logger().InfoContext(ctx, "Your transaction signature", logger.TxID(sig))
			consoleWriter.Println("Your transaction signature " + sig.String())
			return nil
		},
	}
	config.addClientFlags(cmd)
	return cmd
}
