package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/polysight-org/polysight/client"
	clientmarket "github.com/polysight-org/polysight/client/market"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/types"
)

const (
	marketIDCmdName = "market-id"
	questionCmdName = "question"
	outcomeCmdName  = "outcome"
	betCmdName      = "bet"
	userCmdName     = "user"
)

func newMarketCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &clientConfiguration{Base: baseConfig}
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Sends instructions to the prediction market program",
	}
	config.addClientFlags(cmd)
	cmd.AddCommand(marketInitializeCmd(config))
	cmd.AddCommand(marketCreateCmd(config))
	cmd.AddCommand(marketBetCmd(config))
	cmd.AddCommand(marketResolveCmd(config))
	cmd.AddCommand(marketClaimCmd(config))
	cmd.AddCommand(marketShowCmd(config))
	cmd.AddCommand(marketBetsCmd(config))
	return cmd
}

/*
withMarketProgram connects to the node, resolves the market program and calls "f"
with it. The connection is closed when "f" returns.
*/
func (c *clientConfiguration) withMarketProgram(ctx context.Context, f func(p *clientmarket.Program) error) error {
	provider, err := c.provider(ctx)
	if err != nil {
		return err
	}
	defer provider.Close()

	prg, err := client.DefaultWorkspace().Program(ctx, provider, market.ProgramName)
	if err != nil {
		return err
	}
	return f(clientmarket.New(prg))
}

func marketInitializeCmd(config *clientConfiguration) *cobra.Command {
	return &cobra.Command{
		Use:   "initialize",
		Short: "Initializes the program, the wallet becomes the authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.withMarketProgram(cmd.Context(), func(p *clientmarket.Program) error {
				sig, err := p.Methods().Initialize().RPC(cmd.Context())
				if err != nil {
					return err
				}
				printSignature(sig)
				return nil
			})
		},
	}
}

func marketCreateCmd(config *clientConfiguration) *cobra.Command {
	var marketID, question string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Creates new market, the wallet becomes the authority of the market",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.withMarketProgram(cmd.Context(), func(p *clientmarket.Program) error {
				sig, err := p.Methods().InitializeMarket(marketID, question).RPC(cmd.Context())
				if err != nil {
					return err
				}
				printSignature(sig)
				addr, _, err := market.MarketAddress(marketID)
				if err != nil {
					return err
				}
				consoleWriter.Println("Market: " + addr.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&marketID, marketIDCmdName, "", "identifier of the market (max 50 bytes)")
	cmd.Flags().StringVar(&question, questionCmdName, "", "the question of the market (max 200 bytes)")
	_ = cmd.MarkFlagRequired(marketIDCmdName)
	_ = cmd.MarkFlagRequired(questionCmdName)
	return cmd
}

func marketBetCmd(config *clientConfiguration) *cobra.Command {
	var marketID, outcome string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "bet",
		Short: "Places a bet on the outcome of the market",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := parseOutcome(outcome)
			if err != nil {
				return err
			}
			return config.withMarketProgram(cmd.Context(), func(p *clientmarket.Program) error {
				sig, err := p.Methods().PlaceBet(marketID, o, amount).RPC(cmd.Context())
				if err != nil {
					return err
				}
				printSignature(sig)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&marketID, marketIDCmdName, "", "identifier of the market")
	cmd.Flags().StringVar(&outcome, outcomeCmdName, "", "the outcome to bet on: yes or no")
	cmd.Flags().Uint64VarP(&amount, amountCmdName, "v", market.MinBetAmount, "lamports to bet")
	_ = cmd.MarkFlagRequired(marketIDCmdName)
	_ = cmd.MarkFlagRequired(outcomeCmdName)
	return cmd
}

func marketResolveCmd(config *clientConfiguration) *cobra.Command {
	var marketID, outcome string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolves the market, only the authority of the market can resolve it",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := parseOutcome(outcome)
			if err != nil {
				return err
			}
			return config.withMarketProgram(cmd.Context(), func(p *clientmarket.Program) error {
				sig, err := p.Methods().ResolveMarket(marketID, o).RPC(cmd.Context())
				if err != nil {
					return err
				}
				printSignature(sig)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&marketID, marketIDCmdName, "", "identifier of the market")
	cmd.Flags().StringVar(&outcome, outcomeCmdName, "", "the winning outcome: yes or no")
	_ = cmd.MarkFlagRequired(marketIDCmdName)
	_ = cmd.MarkFlagRequired(outcomeCmdName)
	return cmd
}

func marketClaimCmd(config *clientConfiguration) *cobra.Command {
	var marketID, bet string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claims the payout of the winning bet",
		Long:  `Claims the payout of the winning bet. When the bet is not given all the unclaimed winning bets of the wallet on the market are claimed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return config.withMarketProgram(ctx, func(p *clientmarket.Program) error {
				bets, err := betsToClaim(ctx, p, marketID, bet)
				if err != nil {
					return err
				}
				if len(bets) == 0 {
					return fmt.Errorf("no unclaimed winning bets on market %q", marketID)
				}
				for _, b := range bets {
					sig, err := p.Methods().ClaimPayout(marketID, b).RPC(ctx)
					if err != nil {
						return fmt.Errorf("claiming bet %s: %w", b, err)
					}
					consoleWriter.Println("Claimed bet " + b.String())
					printSignature(sig)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&marketID, marketIDCmdName, "", "identifier of the market")
	cmd.Flags().StringVar(&bet, betCmdName, "", "address of the bet to claim")
	_ = cmd.MarkFlagRequired(marketIDCmdName)
	return cmd
}

func betsToClaim(ctx context.Context, p *clientmarket.Program, marketID, bet string) ([]types.Address, error) {
	if bet != "" {
		addr, err := types.AddressFromString(bet)
		if err != nil {
			return nil, fmt.Errorf("invalid bet address %q: %w", bet, err)
		}
		return []types.Address{addr}, nil
	}
	marketAddr, m, err := p.FetchMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.WinningOutcome == nil {
		return nil, market.ErrMarketNotResolved
	}
	bets, err := p.BetsOf(ctx, p.Provider().PublicKey())
	if err != nil {
		return nil, err
	}
	var ids []types.Address
	for _, b := range bets {
		if b.Market == marketAddr && !b.Claimed && b.Outcome == *m.WinningOutcome {
			ids = append(ids, b.Address)
		}
	}
	return ids, nil
}

func marketShowCmd(config *clientConfiguration) *cobra.Command {
	var marketID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Prints the market",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return config.withMarketProgram(ctx, func(p *clientmarket.Program) error {
				addr, m, err := p.FetchMarket(ctx, marketID)
				if err != nil {
					return err
				}
				consoleWriter.Println("Market: " + addr.String())
				consoleWriter.Println("Question: " + m.Question)
				consoleWriter.Println("Status: " + m.Status.String())
				consoleWriter.Println("YES pool: " + formatLamports(m.TotalYesPool))
				consoleWriter.Println("NO pool: " + formatLamports(m.TotalNoPool))
				if m.WinningOutcome != nil {
					consoleWriter.Println("Winning outcome: " + outcomeString(*m.WinningOutcome))
				}
				if m.ResolvedAt != nil {
					consoleWriter.Println("Resolved at: " + time.Unix(*m.ResolvedAt, 0).UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&marketID, marketIDCmdName, "", "identifier of the market")
	_ = cmd.MarkFlagRequired(marketIDCmdName)
	return cmd
}

func marketBetsCmd(config *clientConfiguration) *cobra.Command {
	var user string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "bets",
		Short: "Lists the bets of the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			owner, err := config.addressOrWallet(user)
			if err != nil {
				return err
			}
			return config.withMarketProgram(ctx, func(p *clientmarket.Program) error {
				bets, err := p.BetsOf(ctx, owner)
				if err != nil {
					return err
				}
				if asJSON {
					data, err := json.MarshalIndent(bets, "", "  ")
					if err != nil {
						return err
					}
					consoleWriter.Println(string(data))
					return nil
				}
				for _, b := range bets {
					consoleWriter.Println(fmt.Sprintf("%s market=%s outcome=%s amount=%d claimed=%t",
						b.Address, b.Market, outcomeString(b.Outcome), b.Amount, b.Claimed))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, userCmdName, "", "owner of the bets (default is the public key of the wallet)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print bets as JSON")
	return cmd
}

func parseOutcome(s string) (uint8, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return market.OutcomeYes, nil
	case "no", "n":
		return market.OutcomeNo, nil
	}
	o, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid outcome %q, expected yes or no", s)
	}
	return uint8(o), nil
}

func outcomeString(o uint8) string {
	switch o {
	case market.OutcomeYes:
		return "YES"
	case market.OutcomeNo:
		return "NO"
	default:
		return strconv.Itoa(int(o))
	}
}

func printSignature(sig types.Signature) {
	consoleWriter.Println("Signature: " + sig.String())
}
