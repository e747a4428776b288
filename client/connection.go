package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/polysight-org/polysight/rpc"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

const (
	defaultPollInterval    = 50 * time.Millisecond
	defaultMaxPollInterval = time.Second
)

var (
	ErrTransactionRejected = errors.New("transaction rejected")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("transaction was not confirmed in time")
)

type (
	// Connection is a JSON-RPC connection to a node.
	Connection struct {
		client *ethrpc.Client
	}

	// Unit is an account as returned by the node, Data is the JSON of the account data.
	Unit struct {
		UnitID   types.Address   `json:"unitId"`
		Owner    types.Address   `json:"owner"`
		Lamports uint64          `json:"lamports,string"`
		Data     json.RawMessage `json:"data"`
	}
)

// Dial connects to the node at "url", ie "http://127.0.0.1:8899/rpc".
func Dial(ctx context.Context, url string) (*Connection, error) {
	c, err := ethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc client: %w", err)
	}
	return NewConnection(c), nil
}

func NewConnection(c *ethrpc.Client) *Connection {
	return &Connection{client: c}
}

func (c *Connection) Close() {
	c.client.Close()
}

// GetRoundNumber returns the latest round number committed by the node.
func (c *Connection) GetRoundNumber(ctx context.Context) (uint64, error) {
	var num uint64
	if err := c.call(ctx, &num, "state_getRoundNumber"); err != nil {
		return 0, err
	}
	return num, nil
}

// GetUnit returns the account "id", nil when the account doesn't exist.
func (c *Connection) GetUnit(ctx context.Context, id types.Address) (*Unit, error) {
	var u *Unit
	if err := c.call(ctx, &u, "state_getUnit", id); err != nil {
		return nil, err
	}
	return u, nil
}

// GetBalance returns lamports held by the account "id", zero when the account doesn't exist.
func (c *Connection) GetBalance(ctx context.Context, id types.Address) (uint64, error) {
	u, err := c.GetUnit(ctx, id)
	if err != nil || u == nil {
		return 0, err
	}
	return u.Lamports, nil
}

func (c *Connection) GetUnitsByOwnerID(ctx context.Context, owner types.Address) ([]types.Address, error) {
	var ids []types.Address
	if err := c.call(ctx, &ids, "state_getUnitsByOwnerID", owner); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetProgram returns description of the program deployed on the node, nil when the program is not deployed.
func (c *Connection) GetProgram(ctx context.Context, id types.Address) (*txsystem.ProgramDescription, error) {
	var p *txsystem.ProgramDescription
	if err := c.call(ctx, &p, "state_getProgram", id); err != nil {
		return nil, err
	}
	return p, nil
}

// GetBlock returns block of the given round, nil when the node doesn't have it.
func (c *Connection) GetBlock(ctx context.Context, round uint64) (*types.Block, error) {
	var res types.Bytes
	if err := c.call(ctx, &res, "state_getBlock", round); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	b := &types.Block{}
	if err := types.Cbor.Unmarshal(res, b); err != nil {
		return nil, fmt.Errorf("decoding block: %w", err)
	}
	return b, nil
}

/*
SendTransaction submits signed transaction to the node. Failed preflight
simulation is returned as error which matches (errors.Is) the program error.
*/
func (c *Connection) SendTransaction(ctx context.Context, tx *types.TransactionOrder, skipPreflight bool) (types.Signature, error) {
	txBytes, err := types.Cbor.Marshal(tx)
	if err != nil {
		return types.Signature{}, fmt.Errorf("encoding transaction: %w", err)
	}
	var sig types.Signature
	if err := c.call(ctx, &sig, "state_sendTransaction", types.Bytes(txBytes), skipPreflight); err != nil {
		return types.Signature{}, err
	}
	return sig, nil
}

func (c *Connection) GetTransactionStatus(ctx context.Context, sig types.Signature) (*rpc.TransactionStatus, error) {
	var status *rpc.TransactionStatus
	if err := c.call(ctx, &status, "state_getTransactionStatus", sig); err != nil {
		return nil, err
	}
	if status == nil {
		return nil, fmt.Errorf("no status returned for transaction %s", sig)
	}
	return status, nil
}

// RequestAirdrop asks the faucet of the node to transfer "lamports" to "to".
func (c *Connection) RequestAirdrop(ctx context.Context, to types.Address, lamports uint64) (types.Signature, error) {
	var sig types.Signature
	if err := c.call(ctx, &sig, "state_requestAirdrop", to, lamports); err != nil {
		return types.Signature{}, err
	}
	return sig, nil
}

/*
ConfirmTransaction polls the status of the transaction until it's included into
a block. Polling interval grows exponentially up to one second. The status of the
transaction is returned together with the error when the transaction failed.
*/
func (c *Connection) ConfirmTransaction(ctx context.Context, sig types.Signature, timeout time.Duration) (*rpc.TransactionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := defaultPollInterval
	for {
		status, err := c.GetTransactionStatus(ctx, sig)
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("querying transaction status: %w", err)
		}
		if status != nil {
			switch status.Status {
			case rpc.TxStatusProcessed:
				if !status.Success {
					return status, fmt.Errorf("%w: %w", ErrTransactionFailed, txError(status.Err))
				}
				return status, nil
			case rpc.TxStatusRejected:
				return status, fmt.Errorf("%w: %s", ErrTransactionRejected, status.Reason)
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return status, fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
			}
			return status, ctx.Err()
		case <-time.After(interval):
			interval = min(2*interval, defaultMaxPollInterval)
		}
	}
}

func (c *Connection) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.client.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, mapRPCError(err))
	}
	return nil
}
