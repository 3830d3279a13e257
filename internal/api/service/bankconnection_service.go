package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"git.taler.net/nexus/internal/cryptoebics"
	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankconnection"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/offeredaccount"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/ebics"
)

type bankConnectionService struct {
	connections bankconnection.Repository
	subscribers ebicssubscriber.Repository
	offered     offeredaccount.Repository
	accounts    bankaccount.Repository
	client      *ebics.Client
	clock       shared.Clock
	logger      *slog.Logger
}

func NewBankConnectionService(
	connections bankconnection.Repository,
	subscribers ebicssubscriber.Repository,
	offered offeredaccount.Repository,
	accounts bankaccount.Repository,
	client *ebics.Client,
	clock shared.Clock,
	logger *slog.Logger,
) BankConnectionService {
	return &bankConnectionService{
		connections: connections,
		subscribers: subscribers,
		offered:     offered,
		accounts:    accounts,
		client:      client,
		clock:       clock,
		logger:      logger,
	}
}

func (s *bankConnectionService) Create(ctx context.Context, ownerID uuid.UUID, name string, dialect shared.EbicsDialect, url, hostID, partnerID, userID string) (*bankconnection.Connection, error) {
	conn, err := bankconnection.New(name, dialect, ownerID)
	if err != nil {
		return nil, err
	}

	signingKey, err := cryptoebics.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	authKey, err := cryptoebics.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating authentication key: %w", err)
	}
	encKey, err := cryptoebics.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}

	sub := &ebicssubscriber.Subscriber{
		ID:                       uuid.New(),
		ConnectionID:             conn.ID,
		URL:                      url,
		HostID:                   hostID,
		PartnerID:                partnerID,
		UserID:                   userID,
		SigningPrivateKey:        signingKey,
		AuthenticationPrivateKey: authKey,
		EncryptionPrivateKey:     encKey,
		IniState:                 shared.KeyStateNotSent,
		HiaState:                 shared.KeyStateNotSent,
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		return nil, err
	}
	if err := s.subscribers.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("persisting subscriber: %w", err)
	}
	return conn, nil
}

func (s *bankConnectionService) List(ctx context.Context, ownerID uuid.UUID) ([]*bankconnection.Connection, error) {
	return s.connections.List(ctx, ownerID)
}

// Connect runs the INI/HIA/HPB handshake in sequence and persists the
// resulting key state. The downloaded bank keys are stored unconfirmed;
// the operator must call ConfirmBankKeys after checking their
// fingerprints out of band before the subscriber is Ready.
func (s *bankConnectionService) Connect(ctx context.Context, connectionID uuid.UUID) (*ConnectResult, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscribers.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	if err := s.client.RunINI(ctx, sub, conn.Dialect); err != nil {
		return nil, fmt.Errorf("INI: %w", err)
	}
	sent := string(shared.KeyStateSent)
	if err := s.subscribers.UpdateKeyState(ctx, sub.ID, &sent, nil); err != nil {
		return nil, err
	}

	if err := s.client.RunHIA(ctx, sub, conn.Dialect); err != nil {
		return nil, fmt.Errorf("HIA: %w", err)
	}
	if err := s.subscribers.UpdateKeyState(ctx, sub.ID, nil, &sent); err != nil {
		return nil, err
	}

	authPub, encPub, err := s.client.RunHPB(ctx, sub, conn.Dialect)
	if err != nil {
		return nil, fmt.Errorf("HPB: %w", err)
	}
	authDER, err := cryptoebics.MarshalPublicKey(authPub)
	if err != nil {
		return nil, err
	}
	encDER, err := cryptoebics.MarshalPublicKey(encPub)
	if err != nil {
		return nil, err
	}
	if err := s.subscribers.SetBankKeys(ctx, sub.ID, authDER, encDER); err != nil {
		return nil, err
	}

	authDigest, err := cryptoebics.PublicKeyDigest(authPub)
	if err != nil {
		return nil, err
	}
	encDigest, err := cryptoebics.PublicKeyDigest(encPub)
	if err != nil {
		return nil, err
	}
	return &ConnectResult{
		AuthPublicKeyFingerprint: hex.EncodeToString(authDigest),
		EncPublicKeyFingerprint:  hex.EncodeToString(encDigest),
	}, nil
}

func (s *bankConnectionService) ConfirmBankKeys(ctx context.Context, connectionID uuid.UUID) error {
	sub, err := s.subscribers.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return err
	}
	return s.subscribers.ConfirmBankKeys(ctx, sub.ID)
}

func (s *bankConnectionService) FetchAccounts(ctx context.Context, connectionID uuid.UUID) ([]*offeredaccount.Offered, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscribers.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !sub.Ready() {
		return nil, ebicssubscriber.ErrBankKeysNotReady
	}
	offered, err := s.client.FetchAccounts(ctx, sub, conn.Dialect)
	if err != nil {
		return nil, err
	}
	if err := s.offered.ReplaceForConnection(ctx, connectionID, offered); err != nil {
		return nil, err
	}
	return offered, nil
}

func (s *bankConnectionService) ImportAccount(ctx context.Context, offeredID uuid.UUID, label string) (*bankaccount.Account, error) {
	off, err := s.offered.GetByID(ctx, offeredID)
	if err != nil {
		return nil, err
	}
	if off.ImportedAs != nil {
		return nil, offeredaccount.ErrAlreadyImported{ID: off.ID}
	}
	acc, err := bankaccount.New(label, off.HolderName, off.IBAN, off.BIC)
	if err != nil {
		return nil, err
	}
	acc.ConnectionID = &off.ConnectionID
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	if err := s.offered.MarkImported(ctx, off.ID, acc.ID); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *bankConnectionService) Delete(ctx context.Context, connectionID uuid.UUID) error {
	return s.connections.Delete(ctx, connectionID)
}

// ExportBackup concatenates the subscriber's three DER-encoded private
// keys and seals them with the operator-supplied passphrase.
func (s *bankConnectionService) ExportBackup(ctx context.Context, connectionID uuid.UUID, passphrase string) ([]byte, error) {
	sub, err := s.subscribers.GetByConnectionID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	plaintext := marshalBackupKeys(sub)
	salt, nonce, ciphertext, err := cryptoebics.EncryptBackup(plaintext, passphrase)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

func marshalBackupKeys(sub *ebicssubscriber.Subscriber) []byte {
	signing := cryptoebics.MarshalPrivateKey(sub.SigningPrivateKey)
	auth := cryptoebics.MarshalPrivateKey(sub.AuthenticationPrivateKey)
	enc := cryptoebics.MarshalPrivateKey(sub.EncryptionPrivateKey)

	out := make([]byte, 0, 4*3+len(signing)+len(auth)+len(enc))
	out = appendChunk(out, signing)
	out = appendChunk(out, auth)
	out = appendChunk(out, enc)
	return out
}

func appendChunk(dst, chunk []byte) []byte {
	var length [4]byte
	length[0] = byte(len(chunk) >> 24)
	length[1] = byte(len(chunk) >> 16)
	length[2] = byte(len(chunk) >> 8)
	length[3] = byte(len(chunk))
	dst = append(dst, length[:]...)
	return append(dst, chunk...)
}
