package cryptoebics

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"git.taler.net/nexus/internal/domain/shared"
	"golang.org/x/crypto/pbkdf2"
)

const backupPBKDF2Iterations = 210_000

// EncryptBackup derives an AES-256 key from passphrase via PBKDF2-SHA256
// and AES-GCM-seals plaintext (the subscriber's three PKCS#1 private
// keys, concatenated by the caller). Supports the connection
// export-backup/restore supplement (spec §9): unlike the E002 wire
// primitive, this has no interop constraint with a bank, so it uses
// an AEAD instead of bare CBC.
func EncryptBackup(plaintext []byte, passphrase string) (salt, nonce, ciphertext []byte, err error) {
	salt = make([]byte, 16)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, fmt.Errorf("backup salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), salt, backupPBKDF2Iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, shared.CryptoFailure{Detail: "backup aes: " + err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, shared.CryptoFailure{Detail: "backup gcm: " + err.Error()}
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("backup nonce: %w", err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return salt, nonce, ciphertext, nil
}

// DecryptBackup reverses EncryptBackup.
func DecryptBackup(salt, nonce, ciphertext []byte, passphrase string) ([]byte, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, backupPBKDF2Iterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "backup aes: " + err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "backup gcm: " + err.Error()}
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, shared.CryptoFailure{Detail: "backup decrypt: wrong passphrase or corrupt data"}
	}
	return plaintext, nil
}
