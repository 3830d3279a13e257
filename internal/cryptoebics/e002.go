package cryptoebics

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"

	"git.taler.net/nexus/internal/domain/shared"
)

// EncryptedPayload is the result of E002 hybrid encryption: a
// transaction key RSA-wrapped to the bank's enc public key, the
// digest of that public key (so the bank, and later we, can pick the
// matching private key), and the AES-CBC ciphertext.
type EncryptedPayload struct {
	EncryptedTransactionKey []byte
	BankPubKeyDigest        []byte
	Ciphertext               []byte
}

// EncryptE002 generates a random 16-byte AES key K, AES-128-CBC
// encrypts plain with K (IV all-zero per EBICS convention, padded with
// PKCS#7), RSA-PKCS#1-v1.5 encrypts K to bankEncPub, and returns the
// digest of bankEncPub alongside.
func EncryptE002(plain []byte, bankEncPub *rsa.PublicKey) (*EncryptedPayload, error) {
	key, err := NewTransactionKey()
	if err != nil {
		return nil, err
	}
	return EncryptE002WithKey(plain, key, bankEncPub)
}

// NewTransactionKey generates a fresh random 16-byte E002 transaction
// key. Exposed so upload transactions can generate one key and reuse
// it across the signature-data and payload encryption steps.
func NewTransactionKey() ([]byte, error) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return nil, shared.CryptoFailure{Detail: "E002 key gen: " + err.Error()}
	}
	return key, nil
}

// EncryptE002WithKey runs E002 with a caller-supplied transaction key
// instead of generating a fresh one. Uploads need this: the signature
// preparation step and the payload preparation step are encrypted
// under the *same* transaction key (spec §4.2), so the key is
// generated once and reused across both EncryptE002WithKey calls.
func EncryptE002WithKey(plain, key []byte, bankEncPub *rsa.PublicKey) (*EncryptedPayload, error) {
	ciphertext, err := EncryptAESCBCWithKey(plain, key)
	if err != nil {
		return nil, err
	}

	encKey, err := rsa.EncryptPKCS1v15(rand.Reader, bankEncPub, key)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "E002 rsa wrap: " + err.Error()}
	}

	digest, err := PublicKeyDigest(bankEncPub)
	if err != nil {
		return nil, err
	}

	return &EncryptedPayload{
		EncryptedTransactionKey: encKey,
		BankPubKeyDigest:        digest,
		Ciphertext:              ciphertext,
	}, nil
}

// EncryptAESCBCWithKey is the symmetric half of E002: PKCS#7-pad and
// AES-128-CBC-encrypt plain under key, with the all-zero IV EBICS
// conventionally uses.
func EncryptAESCBCWithKey(plain, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "E002 aes cipher: " + err.Error()}
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// DecryptE002 inverts EncryptE002: ourPriv must be the private key
// whose digest matches payload.BankPubKeyDigest (callers select it by
// comparing PublicKeyDigest against their own auth/enc keys, per
// spec §4.1's explicit "select the encryption key" resolution of the
// source's key-confusion bug).
func DecryptE002(payload *EncryptedPayload, ourPriv *rsa.PrivateKey) ([]byte, error) {
	key, err := rsa.DecryptPKCS1v15(rand.Reader, ourPriv, payload.EncryptedTransactionKey)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "E002 rsa unwrap: " + err.Error()}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "E002 aes cipher: " + err.Error()}
	}
	if len(payload.Ciphertext)%aes.BlockSize != 0 {
		return nil, shared.CryptoFailure{Detail: "E002 ciphertext not block-aligned"}
	}

	iv := make([]byte, aes.BlockSize)
	plainPadded := make([]byte, len(payload.Ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, payload.Ciphertext)

	plain, err := pkcs7Unpad(plainPadded)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "E002 unpad: " + err.Error()}
	}
	return plain, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, shared.CryptoFailure{Detail: "empty padded data"}
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, shared.CryptoFailure{Detail: "invalid pkcs7 padding"}
	}
	return data[:len(data)-padLen], nil
}
