package evm

import (
	"math/big"
)

const (
	// TestContractAddress is the counter contract every request targets
	TestContractAddress = "0xDc89dA1e7Ca49b7CcDC8fDB897A32d564Abb8E42"

	// Counter function names
	FunctionIncrement = "increment"
	FunctionGetCount  = "getCount"

	// IncrementSelector is keccak256("increment()")[:4]
	IncrementSelector = "0xd09de08a"

	// ZeroValue is the hex quantity sent with every sponsored call
	ZeroValue = "0x0"

	// Base Sepolia identifiers
	CAIP2BaseSepolia  = "eip155:84532"
	ChainTypeEthereum = "ethereum"

	// DefaultRPCURL is the provider-hosted Base Sepolia RPC endpoint
	DefaultRPCURL = "https://api.privy.io/v1/rpc/base-sepolia"

	// BaseSepoliaExplorerURL is the public block explorer for Base Sepolia
	BaseSepoliaExplorerURL = "https://sepolia.basescan.org"
)

var (
	// ChainIDBaseSepolia is the Base Sepolia chain id
	ChainIDBaseSepolia = big.NewInt(84532)
)

// CounterABI is the two-function ABI of the counter contract
const CounterABI = `[
	{
		"inputs": [],
		"name": "increment",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getCount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
