package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	sponsor "github.com/maxlomu/blocksheep-wallet-test"
)

// ParseCounterABI parses CounterABI
func ParseCounterABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(CounterABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse counter ABI: %w", err)
	}
	return parsed, nil
}

// EncodeIncrement returns the call data for increment(): the 4-byte selector
// and no arguments.
func EncodeIncrement() ([]byte, error) {
	parsed, err := ParseCounterABI()
	if err != nil {
		return nil, err
	}

	data, err := parsed.Pack(FunctionIncrement)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", FunctionIncrement, err)
	}
	return data, nil
}

// NewIncrementTransaction builds the fixed sponsored increment() call.
//
// Args:
//
//	contractAddress: Counter contract (hex, any case)
//	chainID: Numeric chain id; the CAIP-2 id is derived from it
//
// Returns:
//
//	Transaction with zero value and the increment selector as data
func NewIncrementTransaction(contractAddress string, chainID *big.Int) (sponsor.SponsoredTransaction, error) {
	if !common.IsHexAddress(contractAddress) {
		return sponsor.SponsoredTransaction{}, fmt.Errorf("invalid contract address: %s", contractAddress)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return sponsor.SponsoredTransaction{}, fmt.Errorf("invalid chain id: %v", chainID)
	}

	data, err := EncodeIncrement()
	if err != nil {
		return sponsor.SponsoredTransaction{}, err
	}

	return sponsor.SponsoredTransaction{
		To:      common.HexToAddress(contractAddress).Hex(),
		Data:    hexutil.Encode(data),
		Value:   ZeroValue,
		ChainID: chainID.Int64(),
		CAIP2:   CAIP2(chainID),
	}, nil
}

// CAIP2 returns the eip155 CAIP-2 identifier for a chain id
func CAIP2(chainID *big.Int) string {
	return fmt.Sprintf("eip155:%s", chainID.String())
}

// ExplorerTxURL links a transaction hash on the Base Sepolia explorer
func ExplorerTxURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s", BaseSepoliaExplorerURL, hash)
}
