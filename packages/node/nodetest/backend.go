// Package nodetest provides an in-process JSON-RPC node exposing the eth and txpool methods
// the harness talks to. It is meant for tests only.
package nodetest

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http/httptest"
	"sync"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Backend holds the fake chain state served over RPC.
type Backend struct {
	mu sync.Mutex

	chainID  *big.Int
	gasPrice *big.Int
	balances map[ethcmn.Address]*big.Int
	nonces   map[ethcmn.Address]uint64
	pool     map[ethcmn.Hash]*types.Transaction
	mined    map[ethcmn.Hash]*types.Transaction
	sent     []*types.Transaction

	// SendErr, when set, is returned by eth_sendRawTransaction.
	SendErr error

	server *rpc.Server
}

// NewBackend creates a backend for the given chain id with a 1 gwei gas price.
func NewBackend(chainID int64) *Backend {
	b := &Backend{
		chainID:  big.NewInt(chainID),
		gasPrice: big.NewInt(1_000_000_000),
		balances: make(map[ethcmn.Address]*big.Int),
		nonces:   make(map[ethcmn.Address]uint64),
		pool:     make(map[ethcmn.Hash]*types.Transaction),
		mined:    make(map[ethcmn.Hash]*types.Transaction),
	}
	b.server = rpc.NewServer()
	if err := b.server.RegisterName("eth", &ethAPI{b}); err != nil {
		panic(err)
	}
	if err := b.server.RegisterName("txpool", &txpoolAPI{b}); err != nil {
		panic(err)
	}
	return b
}

// Dial returns an in-process rpc client connected to the backend.
func (b *Backend) Dial() *rpc.Client {
	return rpc.DialInProc(b.server)
}

// Serve exposes the backend over HTTP and returns its URL and a shutdown function.
func (b *Backend) Serve() (string, func()) {
	srv := httptest.NewServer(b.server)
	return srv.URL, func() {
		srv.Close()
		b.server.Stop()
	}
}

// Fund sets the balance of addr.
func (b *Backend) Fund(addr ethcmn.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(amount)
}

// SetNonce sets the pending nonce of addr.
func (b *Backend) SetNonce(addr ethcmn.Address, nonce uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonces[addr] = nonce
}

// AddToPool places tx in the pending pool without going through eth_sendRawTransaction.
func (b *Backend) AddToPool(tx *types.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pool[tx.Hash()] = tx
}

// Mine moves hash from the pool into a block.
func (b *Backend) Mine(hash ethcmn.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tx, ok := b.pool[hash]; ok {
		delete(b.pool, hash)
		b.mined[hash] = tx
	}
}

// Sent returns the transactions received through eth_sendRawTransaction, in order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// PoolSize returns the number of pending transactions.
func (b *Backend) PoolSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pool)
}

type ethAPI struct{ b *Backend }

func (api *ethAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(api.b.chainID)
}

func (api *ethAPI) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(api.b.gasPrice)
}

func (api *ethAPI) GetBalance(addr ethcmn.Address, _ string) *hexutil.Big {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	if bal, ok := api.b.balances[addr]; ok {
		return (*hexutil.Big)(new(big.Int).Set(bal))
	}
	return (*hexutil.Big)(new(big.Int))
}

func (api *ethAPI) GetTransactionCount(addr ethcmn.Address, _ string) hexutil.Uint64 {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	return hexutil.Uint64(api.b.nonces[addr])
}

func (api *ethAPI) SendRawTransaction(_ context.Context, input hexutil.Bytes) (ethcmn.Hash, error) {
	if api.b.SendErr != nil {
		return ethcmn.Hash{}, api.b.SendErr
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return ethcmn.Hash{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(api.b.chainID), tx)
	if err != nil {
		return ethcmn.Hash{}, err
	}

	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	if tx.Nonce() < api.b.nonces[from] {
		return ethcmn.Hash{}, errors.New("nonce too low")
	}
	if tx.Nonce() == api.b.nonces[from] {
		api.b.nonces[from]++
	}
	api.b.pool[tx.Hash()] = tx
	api.b.sent = append(api.b.sent, tx)
	return tx.Hash(), nil
}

func (api *ethAPI) GetTransactionByHash(hash ethcmn.Hash) (map[string]interface{}, error) {
	api.b.mu.Lock()
	tx, pending := api.b.pool[hash]
	if !pending {
		tx = api.b.mined[hash]
	}
	api.b.mu.Unlock()
	if tx == nil {
		return nil, nil
	}

	raw, err := tx.MarshalJSON()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if pending {
		fields["blockNumber"] = nil
		fields["blockHash"] = nil
	} else {
		fields["blockNumber"] = "0x1"
		fields["blockHash"] = ethcmn.BytesToHash([]byte{0x01}).Hex()
	}
	return fields, nil
}

type txpoolAPI struct{ b *Backend }

func (api *txpoolAPI) Status() map[string]hexutil.Uint {
	api.b.mu.Lock()
	defer api.b.mu.Unlock()
	return map[string]hexutil.Uint{
		"pending": hexutil.Uint(len(api.b.pool)),
		"queued":  0,
	}
}
