package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "TXTEST"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one tx-test invocation and returns the process exit code:
// 0 on success or help, -1 on a validation or operational failure, 1 on a panic.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, newRootCmd(viper.New()), args, stdout, stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "error: %v\n", r)
			code = 1
		}
	}()

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if !isOperational(err) {
		fmt.Fprintln(stdout, err)
		_ = cmd.Usage()
		return -1
	}
	log.Error("Command failed", "command", cmd.Name(), "err", err)
	return -1
}

// isOperational reports whether err came out of a command body rather than flag parsing
// or validation.
func isOperational(err error) bool {
	var oe *operationalError
	return errors.As(err, &oe)
}

type operationalError struct{ err error }

func (e *operationalError) Error() string { return e.err.Error() }
func (e *operationalError) Unwrap() error { return e.err }

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "tx-test <command>",
		Short: "Transaction propagation test harness",
		Long: `A command-line tool measuring how fast transactions reach a node's pending pool.

  generate   generates transactions and saves them to --output-dir
  send       sends transactions and writes "txid,timestamp_ms" records to --output-file
  monitor    watches the pool for the ids in --input-file and writes when each one was seen
  report     turns send and monitor records into latency statistics
  new-wallet creates a wallet key file

Every flag can also be set through the environment (TXTEST_DAEMON_ADDRESS, ...)
or a config file passed with --config.`,
		Args: cobra.ArbitraryArgs,
		// flags of an unknown command still end in "unknown command"
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceErrors:      true,
		SilenceUsage:       true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "unknown command: %s\n", args[0])
			}
			return cmd.Help()
		},
	}

	root.PersistentFlags().String(FlagConfig, "", "Config file (json, yaml or toml) holding flag values")
	root.PersistentFlags().Int(FlagLogLevel, 3, "Log level, 0 (critical) to 5 (trace)")
	root.PersistentFlags().String(FlagNetwork, "testnet", "Network the daemon must be on: mainnet, testnet or devnet")

	for _, sub := range []*cobra.Command{
		generateCmd(v),
		sendCmd(v),
		monitorCmd(v),
		reportCmd(v),
		newWalletCmd(v),
	} {
		wrapOperational(sub)
		root.AddCommand(sub)
	}
	return root
}

// wrapOperational marks errors returned by the command body so run can tell them from
// usage mistakes.
func wrapOperational(cmd *cobra.Command) {
	body := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := body(cmd, args)
		if err == nil || errors.Is(err, errMissingFlag) || errors.Is(err, errInvalidFlag) {
			return err
		}
		return &operationalError{err: err}
	}
}

// setupConfig layers the config file and the environment under the parsed flags and
// installs the logger for this run.
func setupConfig(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(FlagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	lvl := v.GetInt(FlagLogLevel)
	if lvl < 0 || lvl > 5 {
		return fmt.Errorf("invalid log level %d, expected 0 to 5", lvl)
	}
	runID := uuid.New().String()[:8]
	handler := log.NewTerminalHandlerWithLevel(cmd.ErrOrStderr(), log.FromLegacyLevel(lvl), false)
	log.SetDefault(log.NewLogger(handler).With("run", runID))
	log.Debug("Starting", "command", cmd.Name())
	return nil
}
