package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Status is where a transaction currently sits from the node's point of view.
type Status int

const (
	// StatusUnknown means the node has never heard of the transaction.
	StatusUnknown Status = iota
	// StatusPending means the transaction is in the node's pending pool.
	StatusPending
	// StatusMined means the transaction is already included in a block.
	StatusMined
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusMined:
		return "mined"
	default:
		return "unknown"
	}
}

// Client wraps the ethereum client with the pool queries the harness needs
type Client struct {
	*ethclient.Client
	rpcClient *rpc.Client
}

// createPooledHTTPClient creates an HTTP client that keeps connections to the daemon alive
// across the tight monitor loop.
func createPooledHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     30 * time.Second,
		DisableKeepAlives:   false,
		MaxConnsPerHost:     64,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}
}

// Dial connects to the daemon at address. http(s), ws(s) and IPC endpoints are accepted.
func Dial(ctx context.Context, address string) (*Client, error) {
	if address == "" {
		return nil, errors.New("empty daemon address")
	}
	rpcClient, err := rpc.DialOptions(ctx, address, rpc.WithHTTPClient(createPooledHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client: %w", err)
	}
	return NewClient(rpcClient), nil
}

// NewClient wraps an already connected rpc client.
func NewClient(rpcClient *rpc.Client) *Client {
	return &Client{
		Client:    ethclient.NewClient(rpcClient),
		rpcClient: rpcClient,
	}
}

// TxStatus reports where the transaction identified by txid currently is.
func (c *Client) TxStatus(ctx context.Context, txid string) (Status, error) {
	hash, err := parseTxID(txid)
	if err != nil {
		return StatusUnknown, err
	}
	_, isPending, err := c.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return StatusUnknown, nil
	}
	if err != nil {
		return StatusUnknown, err
	}
	if isPending {
		return StatusPending, nil
	}
	return StatusMined, nil
}

// InPool reports whether txid currently resides in the node's pending pool.
func (c *Client) InPool(ctx context.Context, txid string) (bool, error) {
	status, err := c.TxStatus(ctx, txid)
	if err != nil {
		return false, err
	}
	return status == StatusPending, nil
}

// PoolStatus queries the txpool_status counters of the node.
func (c *Client) PoolStatus(ctx context.Context) (pending, queued uint64, err error) {
	var result struct {
		Pending hexutil.Uint64 `json:"pending"`
		Queued  hexutil.Uint64 `json:"queued"`
	}
	if err := c.rpcClient.CallContext(ctx, &result, "txpool_status"); err != nil {
		return 0, 0, err
	}
	return uint64(result.Pending), uint64(result.Queued), nil
}

// SendRaw submits an already signed transaction and returns its hash.
func (c *Client) SendRaw(ctx context.Context, tx *types.Transaction) (ethcmn.Hash, error) {
	if err := c.SendTransaction(ctx, tx); err != nil {
		return ethcmn.Hash{}, err
	}
	return tx.Hash(), nil
}

// Account returns the pending nonce and latest balance of addr.
func (c *Client) Account(ctx context.Context, addr ethcmn.Address) (uint64, *big.Int, error) {
	nonce, err := c.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, nil, fmt.Errorf("query nonce: %w", err)
	}
	balance, err := c.BalanceAt(ctx, addr, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("query balance: %w", err)
	}
	return nonce, balance, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}

func parseTxID(txid string) (ethcmn.Hash, error) {
	if !strings.HasPrefix(txid, "0x") && !strings.HasPrefix(txid, "0X") {
		txid = "0x" + txid
	}
	b, err := hexutil.Decode(txid)
	if err != nil || len(b) != ethcmn.HashLength {
		return ethcmn.Hash{}, fmt.Errorf("invalid transaction id %q", txid)
	}
	return ethcmn.BytesToHash(b), nil
}
