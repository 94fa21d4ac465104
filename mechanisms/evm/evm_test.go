package evm

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock contract caller backed by an in-memory counter
type mockCaller struct {
	count  *big.Int
	err    error
	result []byte
	calls  []ethereum.CallMsg
}

func (m *mockCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.calls = append(m.calls, call)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return common.LeftPadBytes(m.count.Bytes(), 32), nil
}

func TestEncodeIncrementMatchesSelector(t *testing.T) {
	data, err := EncodeIncrement()
	require.NoError(t, err)

	assert.Len(t, data, 4)
	assert.Equal(t, IncrementSelector, hexutil.Encode(data))
}

func TestNewIncrementTransaction(t *testing.T) {
	tx, err := NewIncrementTransaction("0xdc89da1e7ca49b7ccdc8fdb897a32d564abb8e42", ChainIDBaseSepolia)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(TestContractAddress).Hex(), tx.To)
	assert.Equal(t, IncrementSelector, tx.Data)
	assert.Equal(t, ZeroValue, tx.Value)
	assert.Equal(t, int64(84532), tx.ChainID)
	assert.Equal(t, CAIP2BaseSepolia, tx.CAIP2)
}

func TestNewIncrementTransactionRejectsBadInput(t *testing.T) {
	_, err := NewIncrementTransaction("not-an-address", ChainIDBaseSepolia)
	assert.Error(t, err)

	_, err = NewIncrementTransaction(TestContractAddress, big.NewInt(0))
	assert.Error(t, err)
}

func TestCounterReaderGetCount(t *testing.T) {
	caller := &mockCaller{count: big.NewInt(41)}
	reader, err := NewCounterReader(caller, TestContractAddress)
	require.NoError(t, err)

	count, err := reader.GetCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "41", count.String())

	require.Len(t, caller.calls, 1)
	call := caller.calls[0]
	require.NotNil(t, call.To)
	assert.Equal(t, common.HexToAddress(TestContractAddress), *call.To)

	parsed, err := ParseCounterABI()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(parsed.Methods[FunctionGetCount].ID, call.Data), "expected getCount selector as call data")
}

func TestCounterReaderNonDecreasing(t *testing.T) {
	caller := &mockCaller{count: big.NewInt(0)}
	reader, err := NewCounterReader(caller, TestContractAddress)
	require.NoError(t, err)

	prev := big.NewInt(-1)
	for range 5 {
		count, err := reader.GetCount(context.Background())
		require.NoError(t, err)
		assert.True(t, count.Cmp(prev) >= 0)
		prev = count
		caller.count = new(big.Int).Add(caller.count, big.NewInt(1))
	}
	assert.Equal(t, "4", prev.String())
}

func TestCounterReaderErrors(t *testing.T) {
	_, err := NewCounterReader(&mockCaller{}, "0x1234")
	assert.Error(t, err)

	reader, err := NewCounterReader(&mockCaller{err: errors.New("connection refused")}, TestContractAddress)
	require.NoError(t, err)
	_, err = reader.GetCount(context.Background())
	assert.ErrorContains(t, err, "connection refused")

	reader, err = NewCounterReader(&mockCaller{result: []byte{}}, TestContractAddress)
	require.NoError(t, err)
	_, err = reader.GetCount(context.Background())
	assert.ErrorContains(t, err, "empty result")

	reader, err = NewCounterReader(&mockCaller{result: []byte{0x01, 0x02}}, TestContractAddress)
	require.NoError(t, err)
	_, err = reader.GetCount(context.Background())
	assert.ErrorContains(t, err, "failed to unpack")
}

func TestExplorerTxURL(t *testing.T) {
	assert.Equal(t, "https://sepolia.basescan.org/tx/0xfeed", ExplorerTxURL("0xfeed"))
	assert.Equal(t, CAIP2BaseSepolia, CAIP2(ChainIDBaseSepolia))
}
