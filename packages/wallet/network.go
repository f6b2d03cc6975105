package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Network selects which chains a wallet is allowed to talk to.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Devnet  Network = "devnet"
)

// ParseNetwork validates a network selector.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case Mainnet, Testnet, Devnet:
		return n, nil
	default:
		return "", fmt.Errorf("unknown network %q, want mainnet, testnet or devnet", s)
	}
}

// CheckChainID refuses chain ids that do not belong to the network.
func (n Network) CheckChainID(chainID *big.Int) error {
	mainnet := params.MainnetChainConfig.ChainID
	switch n {
	case Mainnet:
		if chainID.Cmp(mainnet) != 0 {
			return fmt.Errorf("daemon chain id %s is not mainnet", chainID)
		}
	case Testnet:
		if chainID.Cmp(mainnet) == 0 {
			return fmt.Errorf("daemon is on mainnet but the testnet network was selected")
		}
	}
	return nil
}
