package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// PendingTransaction is a transfer built by the wallet but not yet written anywhere.
type PendingTransaction struct {
	w    *Wallet
	tx   *types.Transaction
	cost *big.Int
}

// UnsignedTransaction is a transaction loaded back from an unsigned transaction file.
type UnsignedTransaction struct {
	w       *Wallet
	tx      *types.Transaction
	chainID *big.Int
}

// unsignedEnvelope is the on-disk form of an unsigned transaction.
type unsignedEnvelope struct {
	ChainID *hexutil.Big   `json:"chainId"`
	From    ethcmn.Address `json:"from"`
	Tx      hexutil.Bytes  `json:"tx"`
}

// CreateTransaction builds a value transfer of amount wei to the given address.
func (w *Wallet) CreateTransaction(to ethcmn.Address, amount *big.Int) (*PendingTransaction, error) {
	if w.chainID == nil || w.gasPrice == nil {
		return nil, ErrNotInitialized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %v", amount)
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(w.gasLimit), w.gasPrice)
	cost := new(big.Int).Add(amount, fee)
	if total := new(big.Int).Add(w.committed, cost); total.Cmp(w.balance) > 0 {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds,
			FormatAmount(total), FormatAmount(w.balance))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    w.nonce,
		GasPrice: new(big.Int).Set(w.gasPrice),
		Gas:      w.gasLimit,
		To:       &to,
		Value:    new(big.Int).Set(amount),
	})
	return &PendingTransaction{w: w, tx: tx, cost: cost}, nil
}

// TxID identifies the unsigned transaction.
func (p *PendingTransaction) TxID() string {
	return p.tx.Hash().Hex()
}

// Nonce is the account nonce the transaction carries.
func (p *PendingTransaction) Nonce() uint64 {
	return p.tx.Nonce()
}

// Commit writes the unsigned transaction to filename and reserves its nonce.
func (p *PendingTransaction) Commit(filename string) error {
	raw, err := p.tx.MarshalBinary()
	if err != nil {
		return err
	}
	data, err := json.Marshal(unsignedEnvelope{
		ChainID: (*hexutil.Big)(p.w.chainID),
		From:    p.w.Address(),
		Tx:      raw,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("error saving tx to file %s: %w", filename, err)
	}

	p.w.nonce++
	p.w.committed.Add(p.w.committed, p.cost)
	log.Debug("Unsigned transaction saved", "txid", p.TxID(), "nonce", p.tx.Nonce(), "file", filename)
	return nil
}

// LoadUnsignedTx reads an unsigned transaction file written by Commit.
func (w *Wallet) LoadUnsignedTx(filename string) (*UnsignedTransaction, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error loading unsigned transaction %s: %w", filename, err)
	}
	var env unsignedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("error loading unsigned transaction %s: %w", filename, err)
	}
	if env.ChainID == nil {
		return nil, fmt.Errorf("error loading unsigned transaction %s: missing chain id", filename)
	}
	if env.From != w.Address() {
		return nil, fmt.Errorf("%w: built by %s", ErrWrongWallet, env.From)
	}
	chainID := env.ChainID.ToInt()
	if w.chainID != nil && chainID.Cmp(w.chainID) != 0 {
		return nil, fmt.Errorf("%w: chain id %s, daemon has %s", ErrWrongWallet, chainID, w.chainID)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(env.Tx); err != nil {
		return nil, fmt.Errorf("error loading unsigned transaction %s: %w", filename, err)
	}
	return &UnsignedTransaction{w: w, tx: tx, chainID: chainID}, nil
}

// Sign signs the transaction, writes it to filename and returns the ids of the
// signed transactions written. A wallet of this kind always produces exactly one.
func (u *UnsignedTransaction) Sign(filename string) ([]string, error) {
	signed, err := types.SignTx(u.tx, types.LatestSignerForChainID(u.chainID), u.w.key.PrivateKey)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filename, []byte(hexutil.Encode(raw)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("error saving signed tx to %s: %w", filename, err)
	}
	return []string{signed.Hash().Hex()}, nil
}

// ReadSignedTx decodes a signed transaction file.
func ReadSignedTx(filename string) (*types.Transaction, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	raw, err := hexutil.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("error decoding signed transaction %s: %w", filename, err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("error decoding signed transaction %s: %w", filename, err)
	}
	return tx, nil
}

// Sender recovers the account that signed tx, using the wallet's chain.
func (w *Wallet) Sender(tx *types.Transaction) (ethcmn.Address, error) {
	if w.signer == nil {
		return ethcmn.Address{}, ErrNotInitialized
	}
	return types.Sender(w.signer, tx)
}

// SubmitTx sends an already decoded signed transaction to the daemon.
func (w *Wallet) SubmitTx(ctx context.Context, tx *types.Transaction) error {
	if w.client == nil {
		return ErrNotInitialized
	}
	hash, err := w.client.SendRaw(ctx, tx)
	if err != nil {
		return fmt.Errorf("error submitting transaction %s: %w", tx.Hash().Hex(), err)
	}
	log.Debug("Transaction submitted", "txid", hash.Hex(), "nonce", tx.Nonce())
	return nil
}

// SubmitTransaction reads a signed transaction file and sends it to the daemon.
func (w *Wallet) SubmitTransaction(ctx context.Context, filename string) error {
	tx, err := ReadSignedTx(filename)
	if err != nil {
		return err
	}
	return w.SubmitTx(ctx, tx)
}
