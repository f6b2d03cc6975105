package txtest

import (
	"context"
	"fmt"
	"math/big"
	mathrand "math/rand"
	"os"
	"path/filepath"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/okx/txprop/packages/records"
	"github.com/okx/txprop/packages/wallet"
)

// Generate builds, signs and writes transactions into cfg.OutputDir as <txid>.gtx files
// and returns the ids of the signed transactions.
//
// Payments come from cfg.InputFile when set, otherwise cfg.Count transfers of a random
// amount in [0.1, 1.0) go to freshly generated addresses. A transaction that cannot be
// created or saved is skipped; a signing failure aborts the whole batch.
func Generate(ctx context.Context, cfg GenerateConfig) ([]string, error) {
	if cfg.Count == 0 {
		return nil, nil
	}
	log.Debug("Generating transactions", "count", cfg.Count, "input", cfg.InputFile, "output", cfg.OutputDir)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output dir %s: %w", cfg.OutputDir, err)
	}

	w, err := openWallet(ctx, cfg.Wallet)
	if err != nil {
		return nil, err
	}

	var txids []string
	genTx := func(to ethcmn.Address, amount *big.Int) error {
		txid, err := generateOne(w, cfg.OutputDir, to, amount)
		if err != nil {
			return err
		}
		if txid != "" {
			txids = append(txids, txid)
		}
		return nil
	}

	if cfg.InputFile != "" {
		payments, err := records.ReadPayments(cfg.InputFile)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("error reading payments from %s: %w", cfg.InputFile, err)
		}
		for _, p := range payments {
			amount, err := wallet.ParseAmount(p.Amount)
			if err != nil {
				w.Close()
				return nil, fmt.Errorf("payment to %s: %w", p.Address, err)
			}
			if err := genTx(p.Address, amount); err != nil {
				w.Close()
				return nil, err
			}
		}
	} else {
		for i := 0; i < cfg.Count; i++ {
			to, err := randomAddress()
			if err != nil {
				w.Close()
				return nil, err
			}
			coins := 0.1 + mathrand.Float64()*0.9
			log.Info("Sending", "amount", fmt.Sprintf("%.6f", coins), "to", to)
			if err := genTx(to, wallet.AmountFromFloat(coins)); err != nil {
				w.Close()
				return nil, err
			}
		}
	}

	if err := closeWallet(w); err != nil {
		return nil, err
	}
	log.Info("Transactions generated", "count", len(txids), "dir", cfg.OutputDir)
	return txids, nil
}

// generateOne runs create, commit, load, sign and rename for a single transfer. It returns
// an empty id when the transfer was skipped.
func generateOne(w *wallet.Wallet, outputDir string, to ethcmn.Address, amount *big.Int) (string, error) {
	ptx, err := w.CreateTransaction(to, amount)
	if err != nil {
		log.Error("Error creating transaction", "to", to, "amount", wallet.FormatAmount(amount), "err", err)
		return "", nil
	}

	unsignedFile := filepath.Join(outputDir, ptx.TxID()+records.UnsignedTxExt)
	if err := ptx.Commit(unsignedFile); err != nil {
		log.Error("Error saving tx to file", "err", err)
		return "", nil
	}

	utx, err := w.LoadUnsignedTx(unsignedFile)
	if err != nil {
		return "", err
	}
	tmpFile := filepath.Join(outputDir, ptx.TxID()+records.SignedTxExt)
	ids, err := utx.Sign(tmpFile)
	if err != nil {
		return "", fmt.Errorf("error signing tx %s: %w", ptx.TxID(), err)
	}

	signedFile := filepath.Join(outputDir, ids[0]+records.SignedTxExt)
	if err := os.Rename(tmpFile, signedFile); err != nil {
		return "", err
	}
	if err := os.Remove(unsignedFile); err != nil {
		log.Warn("Failed to remove unsigned transaction", "file", unsignedFile, "err", err)
	}
	log.Debug("Transaction generated", "txid", ids[0], "nonce", ptx.Nonce(), "to", to)
	return ids[0], nil
}

func randomAddress() (ethcmn.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return ethcmn.Address{}, err
	}
	return wallet.AddressFromKey(key), nil
}
