package cmd

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/polysight-org/polysight/client"
	"github.com/polysight-org/polysight/types"
)

const (
	addressCmdName = "address"
	amountCmdName  = "amount"
	quietCmdName   = "quiet"
)

func newAirdropCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &clientConfiguration{Base: baseConfig}
	var address string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Requests lamports from the faucet of the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			to, err := config.addressOrWallet(address)
			if err != nil {
				return err
			}
			conn, err := config.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			sig, err := conn.RequestAirdrop(ctx, to, amount)
			if err != nil {
				return err
			}
			if _, err := conn.ConfirmTransaction(ctx, sig, config.ConfirmTimeout); err != nil {
				return fmt.Errorf("confirming airdrop %s: %w", sig, err)
			}
			consoleWriter.Println("Signature: " + sig.String())
			consoleWriter.Println(fmt.Sprintf("Airdropped %s to %s", formatLamports(amount), to))
			return nil
		},
	}
	config.addClientFlags(cmd)
	cmd.Flags().StringVarP(&address, addressCmdName, "a", "", "receiver of the airdrop (default is the public key of the wallet)")
	cmd.Flags().Uint64VarP(&amount, amountCmdName, "v", solana.LAMPORTS_PER_SOL, "lamports to airdrop")
	return cmd
}

func newBalanceCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &clientConfiguration{Base: baseConfig}
	var address string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Prints the balance of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := config.addressOrWallet(address)
			if err != nil {
				return err
			}
			conn, err := config.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			balance, err := conn.GetBalance(ctx, id)
			if err != nil {
				return err
			}
			if quiet {
				consoleWriter.Println(balance)
			} else {
				consoleWriter.Println(formatLamports(balance))
			}
			return nil
		},
	}
	config.addClientFlags(cmd)
	cmd.Flags().StringVarP(&address, addressCmdName, "a", "", "account address (default is the public key of the wallet)")
	cmd.Flags().BoolVarP(&quiet, quietCmdName, "q", false, "print only the amount of lamports")
	return cmd
}

// addressOrWallet parses "address", the public key of the wallet is returned when address is empty.
func (c *clientConfiguration) addressOrWallet(address string) (types.Address, error) {
	if address != "" {
		addr, err := types.AddressFromString(address)
		if err != nil {
			return types.Address{}, fmt.Errorf("invalid address %q: %w", address, err)
		}
		return addr, nil
	}
	key, err := client.LoadKeygenFile(c.walletFile())
	if err != nil {
		return types.Address{}, err
	}
	return key.PublicKey(), nil
}

// formatLamports returns amount both in lamports and in SOL, ie "1500000000 lamports (1.5 SOL)".
func formatLamports(lamports uint64) string {
	sol := strconv.FormatFloat(float64(lamports)/float64(solana.LAMPORTS_PER_SOL), 'f', -1, 64)
	return fmt.Sprintf("%d lamports (%s SOL)", lamports, sol)
}
