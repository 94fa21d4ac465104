package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// CounterReader performs the read-only getCount() view call
type CounterReader struct {
	caller   ethereum.ContractCaller
	contract common.Address
	abi      abi.ABI
}

// NewCounterReader binds a reader to a contract using any contract caller
// (an *ethclient.Client in production).
func NewCounterReader(caller ethereum.ContractCaller, contractAddress string) (*CounterReader, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", contractAddress)
	}

	parsed, err := ParseCounterABI()
	if err != nil {
		return nil, err
	}

	return &CounterReader{
		caller:   caller,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
	}, nil
}

// DialCounterReader connects to rpcURL and returns a reader plus a close func
func DialCounterReader(ctx context.Context, rpcURL string, contractAddress string) (*CounterReader, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	reader, err := NewCounterReader(client, contractAddress)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return reader, client.Close, nil
}

// GetCount reads the counter at the latest block. There is no retry.
func (r *CounterReader) GetCount(ctx context.Context) (*big.Int, error) {
	data, err := r.abi.Pack(FunctionGetCount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &r.contract,
		Data: data,
	}

	result, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty result from contract call")
	}

	output, err := r.abi.Unpack(FunctionGetCount, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no output from %s", FunctionGetCount)
	}

	count, ok := output[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", FunctionGetCount, output[0])
	}
	return count, nil
}

// Contract returns the checksummed contract address being read
func (r *CounterReader) Contract() string {
	return r.contract.Hex()
}
