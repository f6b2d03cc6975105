package txtest

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/okx/txprop/packages/wallet"
)

const (
	// DefaultMonitorTimeout is the default of the monitor command's --timeout
	DefaultMonitorTimeout = 30 * time.Second
)

// WalletConfig tells the procedures which wallet to use and where the daemon is.
type WalletConfig struct {
	Path          string
	Password      string
	DaemonAddress string
	Network       wallet.Network
	GasLimit      uint64
	GasPrice      *big.Int // nil asks the daemon
}

// GenerateConfig configures Generate.
type GenerateConfig struct {
	Wallet    WalletConfig
	Count     int
	InputFile string // optional "address,amount" payments file
	OutputDir string
}

// SendConfig configures Send.
type SendConfig struct {
	Wallet   WalletConfig
	InputDir string
}

// MonitorConfig configures Monitor.
type MonitorConfig struct {
	Timeout     time.Duration
	PollRate    float64 // status queries per second, 0 means unlimited
	AcceptMined bool
}

// openWallet opens the wallet, connects it to the daemon and refreshes it.
func openWallet(ctx context.Context, cfg WalletConfig) (*wallet.Wallet, error) {
	w, err := wallet.Open(cfg.Path, cfg.Password, cfg.Network,
		wallet.WithGasLimit(cfg.GasLimit), wallet.WithGasPrice(cfg.GasPrice))
	if err != nil {
		return nil, err
	}
	if err := w.Init(ctx, cfg.DaemonAddress); err != nil {
		return nil, err
	}
	if err := w.Refresh(ctx); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// closeWallet stores and closes w, reporting a failed store.
func closeWallet(w *wallet.Wallet) error {
	defer w.Close()
	if err := w.Store(); err != nil {
		log.Error("Error storing wallet", "err", err)
		return err
	}
	return nil
}
