package txtest

import (
	"bytes"
	"context"
	"os"
	"sort"
	"time"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/okx/txprop/packages/records"
	"github.com/okx/txprop/packages/wallet"
)

type txFile struct {
	path   string
	tx     *types.Transaction
	sender ethcmn.Address
}

// Send submits every signed transaction file found under cfg.InputDir and removes each
// file once submitted. It returns one record per transaction with the submission time.
//
// Files are submitted ordered by sender and nonce so the node does not park them as
// future transactions. The first failed submission aborts the run.
func Send(ctx context.Context, cfg SendConfig) ([]records.TxRecord, error) {
	log.Debug("Sending transactions", "dir", cfg.InputDir)

	paths, err := records.FindTxFiles(cfg.InputDir)
	if err != nil {
		return nil, err
	}

	w, err := openWallet(ctx, cfg.Wallet)
	if err != nil {
		return nil, err
	}

	files := make([]txFile, 0, len(paths))
	for _, path := range paths {
		tx, err := wallet.ReadSignedTx(path)
		if err != nil {
			w.Close()
			return nil, err
		}
		sender, err := w.Sender(tx)
		if err != nil {
			w.Close()
			return nil, err
		}
		files = append(files, txFile{path: path, tx: tx, sender: sender})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if c := bytes.Compare(files[i].sender.Bytes(), files[j].sender.Bytes()); c != 0 {
			return c < 0
		}
		return files[i].tx.Nonce() < files[j].tx.Nonce()
	})

	txrs := make([]records.TxRecord, 0, len(files))
	for _, f := range files {
		log.Debug("Sending tx", "file", f.path, "nonce", f.tx.Nonce())
		if err := w.SubmitTx(ctx, f.tx); err != nil {
			w.Close()
			return nil, err
		}
		txrs = append(txrs, records.TxRecord{
			TxID:        records.TxIDFromPath(f.path),
			TimestampMs: time.Now().UnixMilli(),
		})
		if err := os.Remove(f.path); err != nil {
			log.Warn("Failed to remove sent transaction file", "file", f.path, "err", err)
		}
	}

	if err := closeWallet(w); err != nil {
		return nil, err
	}
	log.Info("Transactions sent", "count", len(txrs))
	return txrs, nil
}
