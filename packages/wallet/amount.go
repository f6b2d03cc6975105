package wallet

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	weiPerEth = big.NewInt(1_000_000_000_000_000_000)

	decimalAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParseAmount parses a decimal coin amount such as "0.5" or "1ETH" into wei.
func ParseAmount(amountStr string) (*big.Int, error) {
	value := strings.TrimSpace(amountStr)
	if strings.HasSuffix(strings.ToUpper(value), "ETH") {
		value = strings.TrimSpace(value[:len(value)-3])
	}

	if !decimalAmount.MatchString(value) {
		return nil, fmt.Errorf("invalid numeric value: %q", amountStr)
	}
	coins, ok := new(big.Rat).SetString(value)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value: %q", amountStr)
	}
	wei := coins.Mul(coins, new(big.Rat).SetInt(weiPerEth))
	if !wei.IsInt() {
		return nil, fmt.Errorf("amount %q has more than 18 decimals", amountStr)
	}
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	return new(big.Int).Set(wei.Num()), nil
}

// AmountFromFloat converts a coin amount to wei, truncating below 1 wei.
func AmountFromFloat(coins float64) *big.Int {
	weiFloat := new(big.Float).Mul(big.NewFloat(coins), new(big.Float).SetInt(weiPerEth))
	wei, _ := weiFloat.Int(nil)
	return wei
}

// FormatAmount renders wei as a coin amount with six decimals.
func FormatAmount(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return new(big.Rat).SetFrac(wei, weiPerEth).FloatString(6)
}
