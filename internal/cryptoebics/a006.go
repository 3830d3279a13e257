package cryptoebics

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"git.taler.net/nexus/internal/domain/shared"
)

// A006Digest computes the EBICS A006 digest of order data: normalize
// line endings to LF (strip CR), then SHA-256 the result. Per spec
// §4.1 this digests the plain order data before compression, not the
// compressed bytes.
func A006Digest(orderData []byte) [32]byte {
	normalized := bytes.ReplaceAll(orderData, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte("\r"), []byte(""))
	return sha256.Sum256(normalized)
}

// SignA006 signs order data with the subscriber's signing private key:
// digest per A006Digest, then RSA-PKCS#1-v1.5 over SHA-256.
func SignA006(orderData []byte, signingKey *rsa.PrivateKey) ([]byte, error) {
	digest := A006Digest(orderData)
	sig, err := rsa.SignPKCS1v15(rand.Reader, signingKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "A006 sign: " + err.Error()}
	}
	return sig, nil
}

// VerifyA006 verifies a signature produced by SignA006 against a
// counterparty's public key (used to check a bank signature on a
// response that carries signed order data, symmetric to SignA006).
func VerifyA006(orderData, signature []byte, pub *rsa.PublicKey) error {
	digest := A006Digest(orderData)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		return shared.BadSignature{Detail: "A006 verify: " + err.Error()}
	}
	return nil
}

// SignA006Bytes signs an already-computed SHA-256 digest directly,
// without A006Digest's line-ending normalization. Used by ebicsxml for
// the C14N document-signature digest, which is computed over XML text
// rather than raw order data.
func SignA006Bytes(digest []byte, key *rsa.PrivateKey) ([]byte, error) {
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "A006 sign: " + err.Error()}
	}
	return sig, nil
}

// VerifyA006Bytes verifies a signature over an already-computed digest.
func VerifyA006Bytes(digest, signature []byte, pub *rsa.PublicKey) error {
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, signature); err != nil {
		return shared.BadSignature{Detail: "A006 verify: " + err.Error()}
	}
	return nil
}
