package records

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ethcmn "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

const (
	// SignedTxExt is the extension of signed transaction files
	SignedTxExt = ".gtx"
	// UnsignedTxExt is appended to signed file names for the unsigned intermediate
	UnsignedTxExt = ".gtx.unsigned"
)

// Payment is one "address,amount" line of a payments file. Amount is kept as written.
type Payment struct {
	Address ethcmn.Address
	Amount  string
}

// TxRecord pairs a transaction id with a unix timestamp in milliseconds.
type TxRecord struct {
	TxID        string
	TimestampMs int64
}

// ReadPayments parses a payments file.
func ReadPayments(path string) ([]Payment, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	log.Debug("Reading payments from file", "path", path)

	payments := make([]Payment, 0, len(lines))
	for _, line := range lines {
		tokens := splitTokens(line)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("error parsing payment: %s", line)
		}
		if !ethcmn.IsHexAddress(tokens[0]) {
			return nil, fmt.Errorf("error parsing payment: %s: invalid address", line)
		}
		payments = append(payments, Payment{
			Address: ethcmn.HexToAddress(tokens[0]),
			Amount:  tokens[1],
		})
	}
	return payments, nil
}

// WriteTxRecords writes "txid,timestamp_ms" lines.
func WriteTxRecords(path string, txrs []TxRecord) error {
	log.Debug("Saving tx records to a file", "path", path, "count", len(txrs))
	lines := make([]string, len(txrs))
	for i, txr := range txrs {
		lines[i] = txr.TxID + "," + strconv.FormatInt(txr.TimestampMs, 10)
	}
	return writeLines(path, lines)
}

// ReadTxRecords parses a file written by WriteTxRecords.
func ReadTxRecords(path string) ([]TxRecord, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	txrs := make([]TxRecord, 0, len(lines))
	for _, line := range lines {
		tokens := splitTokens(line)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("error parsing tx record: %s", line)
		}
		ts, err := strconv.ParseInt(tokens[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing tx record %s: %w", line, err)
		}
		txrs = append(txrs, TxRecord{TxID: tokens[0], TimestampMs: ts})
	}
	return txrs, nil
}

// WriteTxHashes writes one transaction id per line.
func WriteTxHashes(path string, txs []string) error {
	return writeLines(path, txs)
}

// ReadTxHashes reads one transaction id per line.
func ReadTxHashes(path string) ([]string, error) {
	log.Debug("Reading txs from file", "path", path)
	return ReadLines(path)
}

// FindTxFiles returns every regular file under root with the signed transaction
// extension, in lexical walk order.
func FindTxFiles(root string) ([]string, error) {
	log.Trace("Checking for transaction files", "ext", SignedTxExt, "root", root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("path %s does not exist: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path %s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		log.Trace("Checking file", "path", path)
		if d.Type().IsRegular() && filepath.Ext(path) == SignedTxExt {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// TxIDFromPath returns the transaction id encoded in a signed transaction file name.
func TxIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), SignedTxExt)
}

// splitTokens splits on commas, dropping empty tokens.
func splitTokens(line string) []string {
	var tokens []string
	for _, tok := range strings.Split(line, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
