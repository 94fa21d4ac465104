package http

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestAuthorizationKeyRoundTrip(t *testing.T) {
	priv := generateKey(t)

	encoded, err := EncodeAuthorizationKey(priv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, AuthorizationKeyPrefix))

	parsed, err := ParseAuthorizationKey(encoded)
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))

	// Prefix is optional
	parsed, err = ParseAuthorizationKey(strings.TrimPrefix(encoded, AuthorizationKeyPrefix))
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))
}

func TestParseAuthorizationKeyRejectsGarbage(t *testing.T) {
	for _, key := range []string{"", "wallet-auth:", "!!!not-base64", "wallet-auth:aGVsbG8="} {
		_, err := ParseAuthorizationKey(key)
		assert.Error(t, err, key)
	}
}

func TestCanonicalJSON(t *testing.T) {
	out, err := CanonicalJSON(map[string]interface{}{
		"b": 1,
		"a": map[string]interface{}{"d": 84532, "c": "<x>&"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":"<x>&","d":84532},"b":1}`, string(out))

	// Struct field order does not matter
	out, err = CanonicalJSON(NewSponsoredRPCRequest(testTx))
	require.NoError(t, err)
	assert.Equal(t,
		`{"caip2":"eip155:84532","chain_type":"ethereum","method":"eth_sendTransaction","params":{"transaction":{"chain_id":84532,"data":"0xd09de08a","to":"0xDc89dA1e7Ca49b7CcDC8fDB897A32d564Abb8E42","value":"0x0"}},"sponsor":true}`,
		string(out))
}

func TestSignAndVerifyRequest(t *testing.T) {
	priv := generateKey(t)
	payload := SignaturePayload{
		Version: 1,
		Method:  "POST",
		URL:     "https://api.privy.io/v1/wallets/w1/rpc",
		Body:    NewSponsoredRPCRequest(testTx),
		Headers: map[string]string{HeaderAppID: "app"},
	}

	sig, err := SignRequest(priv, payload)
	require.NoError(t, err)

	ok, err := VerifyRequestSignature(&priv.PublicKey, sig, payload)
	require.NoError(t, err)
	assert.True(t, ok)

	// Any change to the covered fields breaks the signature
	tampered := payload
	tampered.URL = "https://api.privy.io/v1/wallets/w2/rpc"
	ok, err = VerifyRequestSignature(&priv.PublicKey, sig, tampered)
	require.NoError(t, err)
	assert.False(t, ok)

	other := generateKey(t)
	ok, err = VerifyRequestSignature(&other.PublicKey, sig, payload)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyRequestSignature(&priv.PublicKey, "%%%", payload)
	assert.Error(t, err)
}
