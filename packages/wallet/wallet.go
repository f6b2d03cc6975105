package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/okx/txprop/packages/node"
)

const (
	// DefaultGasLimit covers a plain value transfer
	DefaultGasLimit uint64 = 21000

	stateSuffix = ".state"
)

var (
	// ErrNotInitialized is returned by operations that need a daemon connection before Init
	ErrNotInitialized = errors.New("wallet is not connected to a daemon")
	// ErrInsufficientFunds is returned when a new transaction would overspend the balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrWrongWallet is returned for transaction files built by another wallet or for another chain
	ErrWrongWallet = errors.New("transaction does not belong to this wallet")
)

// Option tunes how a wallet builds transactions.
type Option func(*Wallet)

// WithGasLimit overrides DefaultGasLimit.
func WithGasLimit(limit uint64) Option {
	return func(w *Wallet) {
		if limit > 0 {
			w.gasLimit = limit
		}
	}
}

// WithGasPrice pins the gas price instead of asking the daemon on Refresh.
func WithGasPrice(price *big.Int) Option {
	return func(w *Wallet) {
		if price != nil && price.Sign() > 0 {
			w.fixedGasPrice = new(big.Int).Set(price)
		}
	}
}

// Wallet is a single encrypted key file plus the chain state needed to build
// transactions from it.
type Wallet struct {
	path    string
	key     *keystore.Key
	network Network

	client    *node.Client
	ownClient bool
	chainID   *big.Int
	signer    types.Signer

	gasLimit      uint64
	fixedGasPrice *big.Int
	gasPrice      *big.Int
	nonce         uint64
	balance       *big.Int
	committed     *big.Int
}

// walletState is what Store persists next to the key file.
type walletState struct {
	Address   ethcmn.Address `json:"address"`
	ChainID   *hexutil.Big   `json:"chainId"`
	NextNonce hexutil.Uint64 `json:"nextNonce"`
}

// Open decrypts the key file at path.
func Open(path, password string, network Network, opts ...Option) (*Wallet, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error opening wallet %s: %w", path, err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("error opening wallet %s: %w", path, err)
	}

	w := &Wallet{
		path:      path,
		key:       key,
		network:   network,
		gasLimit:  DefaultGasLimit,
		balance:   new(big.Int),
		committed: new(big.Int),
	}
	for _, opt := range opts {
		opt(w)
	}
	log.Debug("Wallet opened", "path", path, "address", key.Address)
	return w, nil
}

// Create writes a new encrypted key file at path and returns its address.
// Use keystore.StandardScryptN/P outside of tests.
func Create(path, password string, scryptN, scryptP int) (ethcmn.Address, error) {
	if _, err := os.Stat(path); err == nil {
		return ethcmn.Address{}, fmt.Errorf("wallet file %s already exists", path)
	}
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return ethcmn.Address{}, err
	}
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    AddressFromKey(privateKey),
		PrivateKey: privateKey,
	}
	keyJSON, err := keystore.EncryptKey(key, password, scryptN, scryptP)
	if err != nil {
		return ethcmn.Address{}, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return ethcmn.Address{}, err
		}
	}
	if err := os.WriteFile(path, keyJSON, 0600); err != nil {
		return ethcmn.Address{}, err
	}
	return key.Address, nil
}

// AddressFromKey converts an ECDSA private key to an account address
func AddressFromKey(privateKey *ecdsa.PrivateKey) ethcmn.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// Address is the wallet's account address.
func (w *Wallet) Address() ethcmn.Address {
	return w.key.Address
}

// ChainID is the daemon's chain id, nil before Init.
func (w *Wallet) ChainID() *big.Int {
	return w.chainID
}

// Balance is the balance read by the last Refresh.
func (w *Wallet) Balance() *big.Int {
	return new(big.Int).Set(w.balance)
}

// NextNonce is the nonce the next committed transaction will use.
func (w *Wallet) NextNonce() uint64 {
	return w.nonce
}

// Init dials the daemon and checks that it serves the selected network.
func (w *Wallet) Init(ctx context.Context, daemonAddress string) error {
	client, err := node.Dial(ctx, daemonAddress)
	if err != nil {
		return fmt.Errorf("error connecting to daemon at %s: %w", daemonAddress, err)
	}
	if err := w.Attach(ctx, client); err != nil {
		client.Close()
		return fmt.Errorf("error connecting to daemon at %s: %w", daemonAddress, err)
	}
	w.ownClient = true
	return nil
}

// Attach uses an existing daemon connection. The wallet does not close it.
func (w *Wallet) Attach(ctx context.Context, client *node.Client) error {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return err
	}
	if err := w.network.CheckChainID(chainID); err != nil {
		return err
	}
	w.client = client
	w.chainID = chainID
	w.signer = types.LatestSignerForChainID(chainID)
	return nil
}

// Refresh reloads nonce, balance and gas price from the daemon. A nonce persisted by an
// earlier Store wins over the daemon's pending nonce when it is ahead, so transactions
// generated but not yet sent are not reused.
func (w *Wallet) Refresh(ctx context.Context) error {
	if w.client == nil {
		return ErrNotInitialized
	}
	nonce, balance, err := w.client.Account(ctx, w.Address())
	if err != nil {
		return err
	}
	if stored, ok := w.loadState(); ok && stored > nonce {
		log.Debug("Using stored nonce", "stored", stored, "daemon", nonce)
		nonce = stored
	}

	gasPrice := w.fixedGasPrice
	if gasPrice == nil {
		if gasPrice, err = w.client.SuggestGasPrice(ctx); err != nil {
			return fmt.Errorf("query gas price: %w", err)
		}
	}

	w.nonce = nonce
	w.balance = balance
	w.gasPrice = gasPrice
	w.committed = new(big.Int)
	log.Info("Wallet refreshed", "address", w.Address(), "nonce", nonce,
		"balance", FormatAmount(balance), "gasPrice", gasPrice)
	return nil
}

// Store persists the next nonce so a later run continues after transactions
// generated by this one.
func (w *Wallet) Store() error {
	if w.chainID == nil {
		return ErrNotInitialized
	}
	state := walletState{
		Address:   w.Address(),
		ChainID:   (*hexutil.Big)(w.chainID),
		NextNonce: hexutil.Uint64(w.nonce),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(w.path+stateSuffix, data, 0600); err != nil {
		return fmt.Errorf("error storing wallet %s: %w", w.path, err)
	}
	return nil
}

// Close releases the daemon connection if the wallet dialed it.
func (w *Wallet) Close() {
	if w.client != nil && w.ownClient {
		w.client.Close()
	}
	w.client = nil
}

func (w *Wallet) loadState() (uint64, bool) {
	data, err := os.ReadFile(w.path + stateSuffix)
	if err != nil {
		return 0, false
	}
	var state walletState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn("Ignoring unreadable wallet state", "path", w.path+stateSuffix, "err", err)
		return 0, false
	}
	if state.Address != w.Address() || state.ChainID == nil || state.ChainID.ToInt().Cmp(w.chainID) != 0 {
		return 0, false
	}
	return uint64(state.NextNonce), true
}
