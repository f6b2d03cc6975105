package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/okx/txprop/packages/node"
	"github.com/okx/txprop/packages/records"
	"github.com/okx/txprop/packages/stats"
	"github.com/okx/txprop/packages/txtest"
	"github.com/okx/txprop/packages/wallet"
)

func generateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate signed transactions into a directory",
		Long: `Generate signed transactions and save each one as <txid>.gtx in --output-dir.
The ids of the generated transactions are written to --output-file, one per line.

Payments are read from --input-file ("address,amount" per line) when given,
otherwise --count transfers of a random amount go to random addresses.

Example:
  tx-test generate --daemon-address http://127.0.0.1:8545 --wallet-path ./wallet.json \
    --output-dir ./txs --output-file ./generated.txt --count 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(v, cmd, FlagDaemonAddress, FlagWalletPath, FlagOutputDir, FlagOutputFile); err != nil {
				return err
			}
			wcfg, err := walletConfig(v)
			if err != nil {
				return err
			}

			txids, err := txtest.Generate(cmd.Context(), txtest.GenerateConfig{
				Wallet:    wcfg,
				Count:     v.GetInt(FlagCount),
				InputFile: v.GetString(FlagInputFile),
				OutputDir: v.GetString(FlagOutputDir),
			})
			if err != nil {
				return fmt.Errorf("error generating transactions: %w", err)
			}
			if err := records.WriteTxHashes(v.GetString(FlagOutputFile), txids); err != nil {
				return fmt.Errorf("error saving tx hashes: %w", err)
			}
			return nil
		},
	}

	addWalletFlags(cmd)
	cmd.Flags().String(FlagOutputDir, "", "Directory where transaction files are written")
	cmd.Flags().String(FlagOutputFile, "", "File where generated transaction ids are written")
	cmd.Flags().String(FlagInputFile, "", "Optional payments file, one \"address,amount\" per line")
	cmd.Flags().Int(FlagCount, 1, "Number of transactions to generate")

	return cmd
}

func sendCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send generated transactions to the node",
		Long: `Send every *.gtx file found under --input-dir to the node and delete it afterwards.
Each sent transaction is written to --output-file as "txid,timestamp_ms".

Example:
  tx-test send --daemon-address http://127.0.0.1:8545 --wallet-path ./wallet.json \
    --input-dir ./txs --output-file ./sent.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(v, cmd, FlagDaemonAddress, FlagWalletPath, FlagInputDir, FlagOutputFile); err != nil {
				return err
			}
			wcfg, err := walletConfig(v)
			if err != nil {
				return err
			}

			txrs, err := txtest.Send(cmd.Context(), txtest.SendConfig{
				Wallet:   wcfg,
				InputDir: v.GetString(FlagInputDir),
			})
			if err != nil {
				return fmt.Errorf("error sending transactions: %w", err)
			}
			if err := records.WriteTxRecords(v.GetString(FlagOutputFile), txrs); err != nil {
				return fmt.Errorf("error saving transaction records: %w", err)
			}
			return nil
		},
	}

	addWalletFlags(cmd)
	cmd.Flags().String(FlagInputDir, "", "Directory to read transaction files from")
	cmd.Flags().String(FlagOutputFile, "", "File where send records are written")

	return cmd
}

func monitorCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Wait for transactions to show up in the node's pool",
		Long: `Poll the node until every transaction id listed in --input-file is in its pending
pool. The time each one was first seen is written to --output-file as
"txid,timestamp_ms". Nothing is written if --timeout passes first.

Example:
  tx-test monitor --daemon-address http://127.0.0.1:8545 \
    --input-file ./generated.txt --output-file ./seen.csv --timeout 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(v, cmd, FlagDaemonAddress, FlagInputFile, FlagOutputFile); err != nil {
				return err
			}
			timeout := v.GetInt(FlagTimeout)
			if timeout < 0 {
				return invalidFlag(FlagTimeout, timeout)
			}
			ctx := cmd.Context()

			txids, err := records.ReadTxHashes(v.GetString(FlagInputFile))
			if err != nil {
				return fmt.Errorf("error reading transactions from file %s: %w", v.GetString(FlagInputFile), err)
			}
			cli, err := node.Dial(ctx, v.GetString(FlagDaemonAddress))
			if err != nil {
				return fmt.Errorf("error connecting to daemon at %s: %w", v.GetString(FlagDaemonAddress), err)
			}
			defer cli.Close()

			txrs, err := txtest.Monitor(ctx, cli, txids, txtest.MonitorConfig{
				Timeout:     time.Duration(timeout) * time.Second,
				PollRate:    v.GetFloat64(FlagPollRate),
				AcceptMined: v.GetBool(FlagAcceptMined),
			})
			if err != nil {
				return fmt.Errorf("error monitoring transactions: %w", err)
			}
			if err := records.WriteTxRecords(v.GetString(FlagOutputFile), txrs); err != nil {
				return fmt.Errorf("error saving transaction records: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String(FlagDaemonAddress, "", "Node RPC address, e.g. http://127.0.0.1:8545")
	cmd.Flags().String(FlagInputFile, "", "File with the transaction ids to wait for")
	cmd.Flags().String(FlagOutputFile, "", "File where monitor records are written")
	cmd.Flags().Int(FlagTimeout, int(txtest.DefaultMonitorTimeout/time.Second), "Seconds to wait for all transactions")
	cmd.Flags().Float64(FlagPollRate, 0, "Pool queries per second, 0 means unlimited")
	cmd.Flags().Bool(FlagAcceptMined, false, "Also count transactions that were already mined")

	return cmd
}

func reportCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize propagation latency from send and monitor records",
		Long: `Join the records written by "send" and "monitor" by transaction id and print
latency statistics. Per transaction latencies are written to --output-file as
"txid,latency_ms" when given.

Example:
  tx-test report --send-file ./sent.csv --monitor-file ./seen.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(v, cmd, FlagSendFile, FlagMonitorFile); err != nil {
				return err
			}
			sent, err := records.ReadTxRecords(v.GetString(FlagSendFile))
			if err != nil {
				return err
			}
			seen, err := records.ReadTxRecords(v.GetString(FlagMonitorFile))
			if err != nil {
				return err
			}

			latencies, missing := stats.Join(sent, seen)
			summary := stats.Summarize(latencies, len(missing))
			summary.Log(log.Root())
			for _, txid := range missing {
				log.Debug("Transaction never seen", "txid", txid)
			}
			fmt.Fprint(cmd.OutOrStdout(), summary.String())

			if out := v.GetString(FlagOutputFile); out != "" {
				if err := records.WriteTxRecords(out, stats.LatencyRecords(latencies)); err != nil {
					return fmt.Errorf("error saving latencies: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().String(FlagSendFile, "", "Records written by the send command")
	cmd.Flags().String(FlagMonitorFile, "", "Records written by the monitor command")
	cmd.Flags().String(FlagOutputFile, "", "Optional file for per transaction latencies")

	return cmd
}

func newWalletCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new-wallet",
		Short: "Create an encrypted wallet key file",
		Long: `Create a new key, encrypt it with --wallet-password and save it to --wallet-path.
The address of the new wallet is printed. An existing file is never overwritten.

Example:
  tx-test new-wallet --wallet-path ./wallet.json --wallet-password secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlags(v, cmd, FlagWalletPath); err != nil {
				return err
			}
			scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
			if v.GetBool(FlagLightKDF) {
				scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
			}

			addr, err := wallet.Create(v.GetString(FlagWalletPath), v.GetString(FlagWalletPassword), scryptN, scryptP)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			return nil
		},
	}

	cmd.Flags().String(FlagWalletPath, "", "Where to write the key file")
	cmd.Flags().String(FlagWalletPassword, "", "Password encrypting the key file")
	cmd.Flags().Bool(FlagLightKDF, false, "Use weaker scrypt parameters, faster to open")

	return cmd
}
