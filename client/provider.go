package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/polysight-org/polysight/types"
)

const (
	EnvProviderURL = "PS_PROVIDER_URL"
	EnvWallet      = "PS_WALLET"
	EnvNetworkID   = "PS_NETWORK_ID"

	DefaultProviderURL = "http://127.0.0.1:8899/rpc"

	DefaultMaxFee         = 5000
	DefaultTimeoutRounds  = 150
	DefaultConfirmTimeout = 30 * time.Second
)

type (
	/*
	Provider bundles the connection to the node with the wallet which signs
	(and pays for) the transactions.
	*/
	Provider struct {
		conn   *Connection
		wallet Wallet
		opts   ProviderOptions
	}

	ProviderOptions struct {
		NetworkID types.NetworkID
		// MaxFee is the max transaction fee the wallet agrees to pay
		MaxFee uint64
		// TimeoutRounds is added to the current round number to get the timeout of the transaction
		TimeoutRounds uint64
		// SkipPreflight disables the simulation of the transaction before it's accepted by the node
		SkipPreflight bool
		// ConfirmTimeout is how long to wait for the transaction to be included into block
		ConfirmTimeout time.Duration
	}

	ProviderOption func(*ProviderOptions)
)

func DefaultProviderOptions() ProviderOptions {
	return ProviderOptions{
		NetworkID:      types.NetworkLocal,
		MaxFee:         DefaultMaxFee,
		TimeoutRounds:  DefaultTimeoutRounds,
		ConfirmTimeout: DefaultConfirmTimeout,
	}
}

func WithNetworkID(id types.NetworkID) ProviderOption {
	return func(po *ProviderOptions) {
		po.NetworkID = id
	}
}

func WithSkipPreflight(skip bool) ProviderOption {
	return func(po *ProviderOptions) {
		po.SkipPreflight = skip
	}
}

func WithConfirmTimeout(d time.Duration) ProviderOption {
	return func(po *ProviderOptions) {
		po.ConfirmTimeout = d
	}
}

func NewProvider(conn *Connection, wallet Wallet, opts ProviderOptions) *Provider {
	return &Provider{conn: conn, wallet: wallet, opts: opts}
}

/*
NewProviderFromEnv creates provider from environment variables:
  - PS_PROVIDER_URL: JSON-RPC endpoint of the node, default is http://127.0.0.1:8899/rpc;
  - PS_WALLET: path to the keypair file, default is ~/.config/solana/id.json;
  - PS_NETWORK_ID: optional network identifier, default is local network.
*/
func NewProviderFromEnv(ctx context.Context, opts ...ProviderOption) (*Provider, error) {
	url := os.Getenv(EnvProviderURL)
	if url == "" {
		url = DefaultProviderURL
	}
	walletFile := os.Getenv(EnvWallet)
	if walletFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%s is not set and user home dir is not defined: %w", EnvWallet, err)
		}
		walletFile = filepath.Join(home, ".config", "solana", "id.json")
	}

	options := DefaultProviderOptions()
	if s := os.Getenv(EnvNetworkID); s != "" {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", EnvNetworkID, s, err)
		}
		options.NetworkID = types.NetworkID(id)
	}
	for _, o := range opts {
		o(&options)
	}

	key, err := LoadKeygenFile(walletFile)
	if err != nil {
		return nil, err
	}
	conn, err := Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewProvider(conn, key, options), nil
}

func (p *Provider) Connection() *Connection { return p.conn }

func (p *Provider) Wallet() Wallet { return p.wallet }

func (p *Provider) PublicKey() types.Address { return p.wallet.PublicKey() }

func (p *Provider) Options() ProviderOptions { return p.opts }

func (p *Provider) Close() {
	p.conn.Close()
}

/*
NewTransaction returns transaction signed by the wallet of the provider. The
timeout of the transaction is set relative to the current round of the node.
*/
func (p *Provider) NewTransaction(ctx context.Context, programID types.Address, txType string, attr any) (*types.TransactionOrder, error) {
	round, err := p.conn.GetRoundNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading round number: %w", err)
	}
	refNo := uuid.New()
	tx := &types.TransactionOrder{
		Payload: &types.Payload{
			NetworkID: p.opts.NetworkID,
			ProgramID: programID,
			Type:      txType,
			Signer:    p.wallet.PublicKey(),
			ClientMetadata: &types.ClientMetadata{
				Timeout:           round + p.opts.TimeoutRounds,
				MaxTransactionFee: p.opts.MaxFee,
				ReferenceNumber:   refNo[:],
			},
		},
	}
	if err := tx.Payload.SetAttributes(attr); err != nil {
		return nil, fmt.Errorf("encoding %s attributes: %w", txType, err)
	}
	if err := tx.Sign(p.wallet); err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	return tx, nil
}

/*
SendAndConfirm submits the transaction and waits until it's included into block.
The signature is returned even when the confirmation fails, the submission is
never retried.
*/
func (p *Provider) SendAndConfirm(ctx context.Context, tx *types.TransactionOrder) (types.Signature, error) {
	if tx == nil {
		return types.Signature{}, errors.New("transaction is nil")
	}
	sig, err := p.conn.SendTransaction(ctx, tx, p.opts.SkipPreflight)
	if err != nil {
		return types.Signature{}, err
	}
	if _, err := p.conn.ConfirmTransaction(ctx, sig, p.opts.ConfirmTimeout); err != nil {
		return sig, err
	}
	return sig, nil
}
