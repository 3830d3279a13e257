package ebics

import (
	"crypto/rsa"
	"math/big"

	"git.taler.net/nexus/internal/cryptoebics"
)

func bytesToBigInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// decryptAndInflate inverts the E002-encrypt-then-DEFLATE pipeline a
// bank applies to response order data: RSA-unwrap the transaction key
// with ourKey, AES-CBC decrypt resp.OrderData, then inflate.
func decryptAndInflate(resp *parsedResponse, ourKey *rsa.PrivateKey) ([]byte, error) {
	payload := &cryptoebics.EncryptedPayload{
		EncryptedTransactionKey: resp.EncTransactionKey,
		BankPubKeyDigest:        resp.BankPubKeyDigest,
		Ciphertext:              resp.OrderData,
	}
	deflated, err := cryptoebics.DecryptE002(payload, ourKey)
	if err != nil {
		return nil, err
	}
	return cryptoebics.Inflate(deflated)
}
