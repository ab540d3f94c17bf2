package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"time"
)

// Test issuer and audience shared by NewTestTokenProvider and NewTestVerifier.
const (
	testIssuer   = "test-issuer"
	testAudience = "test-audience"
)

var (
	testKeyOnce sync.Once
	testKey     *ecdsa.PrivateKey
	testKeyErr  error
)

// testSigningKey returns a P-256 key generated once per test binary.
func testSigningKey() (*ecdsa.PrivateKey, error) {
	testKeyOnce.Do(func() {
		testKey, testKeyErr = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	})
	return testKey, testKeyErr
}

// testKeyPEM returns the test key as PKCS#8 private and PKIX public PEM.
func testKeyPEM() (private, public string, err error) {
	key, err := testSigningKey()
	if err != nil {
		return "", "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})), nil
}

// NewTestTokenProvider returns an ES256 TokenProvider over a throwaway key. Tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	key, err := testSigningKey()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(key, &key.PublicKey, testIssuer, testAudience, 5*time.Minute), nil
}

// NewTestVerifier returns a verify-only TokenProvider accepting NewTestTokenProvider's tokens.
func NewTestVerifier() (*TokenProvider, error) {
	key, err := testSigningKey()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(nil, &key.PublicKey, testIssuer, testAudience, 5*time.Minute), nil
}
