// Package ebicssubscriber models the EBICS subscriber: wire endpoint,
// host/partner/user identifiers, the subscriber's three private keys,
// the bank's two public keys (populated by HPB), and the INI/HIA
// handshake state. One-to-one with a bankconnection.Connection of
// type ebics.
package ebicssubscriber

import (
	"crypto/rsa"
	"errors"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

var ErrBankKeysNotReady = errors.New("bank public keys not yet confirmed (HPB not done or not confirmed)")

// Subscriber is the EbicsSubscriber row. Private keys are stored as
// PKCS#1 DER bytes at rest (see cryptoebics.MarshalPrivateKey); this
// in-memory struct carries parsed *rsa.PrivateKey so callers never
// re-parse per use.
type Subscriber struct {
	ID           uuid.UUID
	ConnectionID uuid.UUID

	URL       string
	HostID    string
	PartnerID string
	UserID    string

	SigningPrivateKey       *rsa.PrivateKey
	AuthenticationPrivateKey *rsa.PrivateKey
	EncryptionPrivateKey    *rsa.PrivateKey

	BankAuthPublicKey *rsa.PublicKey // nil until HPB succeeds
	BankEncPublicKey  *rsa.PublicKey // nil until HPB succeeds

	IniState shared.KeyState
	HiaState shared.KeyState

	// BankKeysConfirmed is set once the operator has confirmed the bank
	// keys' fingerprints out-of-band (spec's "confirm before READY" step).
	BankKeysConfirmed bool

	// NextOrderID is the 6-char alphanumeric upload order id counter,
	// persisted so it survives restarts. Values at or beyond 26^2*10^4
	// are refused with ErrOrderIDOverflow rather than wrapped (see
	// EbicsSubscriberRepository.NextOrderID and ebics.EncodeOrderID).
	NextOrderID int64

	CreatedAt time.Time
}

// Ready reports whether the subscriber has confirmed bank keys and can
// run ordinary (non key-management) transactions.
func (s *Subscriber) Ready() bool {
	return s.BankKeysConfirmed && s.BankAuthPublicKey != nil && s.BankEncPublicKey != nil
}
