package main

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/okx/txprop/packages/txtest"
	"github.com/okx/txprop/packages/wallet"
)

const (
	FlagConfig         = "config"
	FlagLogLevel       = "log-level"
	FlagNetwork        = "network"
	FlagWalletPath     = "wallet-path"
	FlagWalletPassword = "wallet-password"
	FlagDaemonAddress  = "daemon-address"
	FlagOutputDir      = "output-dir"
	FlagInputDir       = "input-dir"
	FlagOutputFile     = "output-file"
	FlagInputFile      = "input-file"
	FlagCount          = "count"
	FlagTimeout        = "timeout"
	FlagPollRate       = "poll-rate"
	FlagAcceptMined    = "accept-mined"
	FlagGasLimit       = "gas-limit"
	FlagGasPriceGwei   = "gas-price-gwei"
	FlagSendFile       = "send-file"
	FlagMonitorFile    = "monitor-file"
	FlagLightKDF       = "light-kdf"
)

// flagNames is how a missing flag is reported to the user.
var flagNames = map[string]string{
	FlagDaemonAddress: "daemon address",
	FlagWalletPath:    "wallet path",
	FlagOutputDir:     "output dir",
	FlagInputDir:      "input dir",
	FlagOutputFile:    "output file",
	FlagInputFile:     "input file",
	FlagSendFile:      "send file",
	FlagMonitorFile:   "monitor file",
}

var (
	errMissingFlag = errors.New("missing flag")
	errInvalidFlag = errors.New("invalid flag value")
)

func invalidFlag(flag string, value interface{}) error {
	return fmt.Errorf("%w: --%s %v", errInvalidFlag, flag, value)
}

type missingFlagError struct {
	what    string
	command string
}

func (e *missingFlagError) Error() string {
	return fmt.Sprintf("%s is missing for %s command", e.what, e.command)
}

func (e *missingFlagError) Unwrap() error {
	return errMissingFlag
}

// requireFlags checks that every flag has a non-empty value, from the command line,
// the environment or the config file, in the given order.
func requireFlags(v *viper.Viper, cmd *cobra.Command, flags ...string) error {
	for _, f := range flags {
		if v.GetString(f) == "" {
			what, ok := flagNames[f]
			if !ok {
				what = f
			}
			return &missingFlagError{what: what, command: cmd.Name()}
		}
	}
	return nil
}

func addWalletFlags(cmd *cobra.Command) {
	cmd.Flags().String(FlagWalletPath, "", "Path to the wallet key file")
	cmd.Flags().String(FlagWalletPassword, "", "Wallet password")
	cmd.Flags().String(FlagDaemonAddress, "", "Node RPC address, e.g. http://127.0.0.1:8545")
	cmd.Flags().Uint64(FlagGasLimit, wallet.DefaultGasLimit, "Gas limit of every transfer")
	cmd.Flags().Float64(FlagGasPriceGwei, 0, "Gas price in gwei, 0 asks the node")
}

func walletConfig(v *viper.Viper) (txtest.WalletConfig, error) {
	network, err := wallet.ParseNetwork(v.GetString(FlagNetwork))
	if err != nil {
		return txtest.WalletConfig{}, err
	}
	gasPriceGwei := v.GetFloat64(FlagGasPriceGwei)
	if math.IsNaN(gasPriceGwei) || math.IsInf(gasPriceGwei, 0) {
		return txtest.WalletConfig{}, invalidFlag(FlagGasPriceGwei, gasPriceGwei)
	}
	return txtest.WalletConfig{
		Path:          v.GetString(FlagWalletPath),
		Password:      v.GetString(FlagWalletPassword),
		DaemonAddress: v.GetString(FlagDaemonAddress),
		Network:       network,
		GasLimit:      v.GetUint64(FlagGasLimit),
		GasPrice:      gweiToWei(gasPriceGwei),
	}, nil
}

// gweiToWei returns nil for a non-positive price so the node is asked instead.
func gweiToWei(gwei float64) *big.Int {
	if gwei <= 0 {
		return nil
	}
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(params.GWei)).Int(nil)
	return wei
}
