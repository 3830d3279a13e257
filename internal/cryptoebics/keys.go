// Package cryptoebics implements the EBICS cryptographic primitives:
// RSA key marshalling, A006 signing, E002 hybrid encryption, and raw
// DEFLATE compression of order data. All primitives are built on the
// standard library's crypto and compress packages: EBICS's A006/E002
// schemes are RSA-PKCS#1-v1.5 plus AES-CBC, which no third-party
// library in the reference stack implements, so rolling them directly
// against crypto/rsa, crypto/aes, crypto/cipher, and crypto/x509 is the
// idiomatic choice here (see DESIGN.md for the stdlib justification).
package cryptoebics

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

const RSAKeyBits = 2048

// GenerateKey creates a fresh RSA keypair for use as one of the
// subscriber's sign/auth/enc keys.
func GenerateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, RSAKeyBits)
}

// MarshalPrivateKey serializes to PKCS#1 DER for storage at rest.
func MarshalPrivateKey(key *rsa.PrivateKey) []byte {
	return x509.MarshalPKCS1PrivateKey(key)
}

// ParsePrivateKey parses PKCS#1 DER bytes read back from storage.
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	return key, nil
}

// MarshalPublicKey serializes to PKIX DER, the form EBICS transmits
// and digests for key confirmation.
func MarshalPublicKey(key *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(key)
}

// ParsePublicKey parses PKIX DER bytes, as received in an HPB response
// or read back from storage.
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return rsaPub, nil
}

// PublicKeyDigest computes SHA-256(DER(pub)), used both to confirm a
// bank's HPB fingerprint out-of-band and to select our own private key
// by matching a DataEncryptionInfo/PubKeyDigest in an incoming request.
func PublicKeyDigest(pub *rsa.PublicKey) ([]byte, error) {
	der, err := MarshalPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(der)
	return sum[:], nil
}
