package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// AuthorizationKeyPrefix may precede a base64 PKCS#8 authorization key
const AuthorizationKeyPrefix = "wallet-auth:"

// SignaturePayload is the document an authorization signature covers
type SignaturePayload struct {
	Version int               `json:"version"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    interface{}       `json:"body"`
	Headers map[string]string `json:"headers"`
}

// ParseAuthorizationKey decodes a P-256 private key from its base64 PKCS#8
// form, with or without the wallet-auth: prefix.
func ParseAuthorizationKey(key string) (*ecdsa.PrivateKey, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), AuthorizationKeyPrefix)
	if key == "" {
		return nil, fmt.Errorf("authorization key is empty")
	}

	der, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("authorization key is not base64: %w", err)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization key: %w", err)
	}

	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || priv.Curve != elliptic.P256() {
		return nil, fmt.Errorf("authorization key must be an ECDSA P-256 key, got %T", parsed)
	}
	return priv, nil
}

// EncodeAuthorizationKey is the inverse of ParseAuthorizationKey
func EncodeAuthorizationKey(priv *ecdsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("failed to marshal authorization key: %w", err)
	}
	return AuthorizationKeyPrefix + base64.StdEncoding.EncodeToString(der), nil
}

// CanonicalJSON encodes v with object keys sorted, no insignificant
// whitespace, no HTML escaping and numbers kept as written.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SignRequest returns the base64 DER signature over the canonical payload
func SignRequest(priv *ecdsa.PrivateKey, payload SignaturePayload) (string, error) {
	digest, err := payloadDigest(payload)
	if err != nil {
		return "", err
	}

	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyRequestSignature checks a signature produced by SignRequest
func VerifyRequestSignature(pub *ecdsa.PublicKey, signature string, payload SignaturePayload) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("signature is not base64: %w", err)
	}

	digest, err := payloadDigest(payload)
	if err != nil {
		return false, err
	}
	return ecdsa.VerifyASN1(pub, digest, sig), nil
}

func payloadDigest(payload SignaturePayload) ([]byte, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize signature payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return sum[:], nil
}
