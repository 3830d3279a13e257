package ebics

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"sync"

	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/offeredaccount"
	"git.taler.net/nexus/internal/domain/shared"
	"github.com/google/uuid"
)

// fetchLevelOrderType maps a camt family to its EBICS H004 order type.
var fetchLevelOrderType = map[shared.FetchLevel]string{
	shared.FetchLevelReport:       "C52",
	shared.FetchLevelStatement:    "C53",
	shared.FetchLevelNotification: "C54",
}

// Client is the engine's public entry point: it owns the transport and
// enforces the per-subscriber single-flight rule from spec §4.2 ("At
// most one EBICS transaction may be in flight per subscriber") with a
// lazily-created mutex per subscriber ID: an in-process lock, where the
// bankaccount repository's LockForUpdate takes a SELECT ... FOR UPDATE
// row lock at the database layer for the analogous per-account constraint.
type Client struct {
	transport Transport
	clock     shared.Clock
	logger    *slog.Logger

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewClient(transport Transport, clock shared.Clock, logger *slog.Logger) *Client {
	return &Client{
		transport: transport,
		clock:     clock,
		logger:    logger,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (c *Client) lockFor(subscriberID uuid.UUID) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	m, ok := c.locks[subscriberID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[subscriberID] = m
	}
	return m
}

func toEndpoint(sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect) endpoint {
	return endpoint{
		URL:       sub.URL,
		HostID:    sub.HostID,
		PartnerID: sub.PartnerID,
		UserID:    sub.UserID,
		Dialect:   dialect,
	}
}

// RunINI uploads the subscriber's signing public key.
func (c *Client) RunINI(ctx context.Context, sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect) error {
	lock := c.lockFor(sub.ID)
	lock.Lock()
	defer lock.Unlock()

	ep := toEndpoint(sub, dialect)
	req, err := BuildINIRequest(ep, sub, c.clock)
	if err != nil {
		return err
	}
	raw, err := c.transport.Post(ctx, ep.URL, req)
	if err != nil {
		return err
	}
	resp, err := parseResponse(raw)
	if err != nil {
		return err
	}
	if _, protoErr := classify(resp.TechnicalCode, resp.ReportText); protoErr != nil {
		return protoErr
	}
	return nil
}

// RunHIA uploads the subscriber's authentication and encryption public keys.
func (c *Client) RunHIA(ctx context.Context, sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect) error {
	lock := c.lockFor(sub.ID)
	lock.Lock()
	defer lock.Unlock()

	ep := toEndpoint(sub, dialect)
	req, err := BuildHIARequest(ep, sub, c.clock)
	if err != nil {
		return err
	}
	raw, err := c.transport.Post(ctx, ep.URL, req)
	if err != nil {
		return err
	}
	resp, err := parseResponse(raw)
	if err != nil {
		return err
	}
	if _, protoErr := classify(resp.TechnicalCode, resp.ReportText); protoErr != nil {
		return protoErr
	}
	return nil
}

// RunHPB downloads and returns the bank's auth/enc public keys. The
// caller is responsible for persisting them (unconfirmed) and for the
// operator's later out-of-band fingerprint confirmation before the
// connection is READY (spec §4.2).
func (c *Client) RunHPB(ctx context.Context, sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect) (authPub, encPub *rsa.PublicKey, err error) {
	lock := c.lockFor(sub.ID)
	lock.Lock()
	defer lock.Unlock()

	ep := toEndpoint(sub, dialect)
	req, err := BuildHPBRequest(ep, sub, c.clock)
	if err != nil {
		return nil, nil, err
	}
	raw, err := c.transport.Post(ctx, ep.URL, req)
	if err != nil {
		return nil, nil, err
	}
	return ParseHPBResponse(raw, sub)
}

// FetchAccounts runs HTD and parses the response into offered accounts.
func (c *Client) FetchAccounts(ctx context.Context, sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect) ([]*offeredaccount.Offered, error) {
	lock := c.lockFor(sub.ID)
	lock.Lock()
	defer lock.Unlock()

	ep := toEndpoint(sub, dialect)
	result, err := Download(ctx, c.transport, ep, sub, "HTD", nil, c.clock)
	if err != nil {
		return nil, err
	}
	if result.NoData {
		return nil, nil
	}
	return ParseHTDAccounts(result.OrderData, sub.ConnectionID)
}

// FetchTransactions runs a C52/C53/C54 download for the given fetch
// level and date range, returning the raw (decrypted, inflated) order
// data for the iso20022 layer to parse.
func (c *Client) FetchTransactions(ctx context.Context, sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect, level shared.FetchLevel, rng *DateRange) (*DownloadResult, error) {
	orderType, ok := fetchLevelOrderType[level]
	if !ok {
		return nil, fmt.Errorf("unsupported fetch level: %s", level)
	}

	lock := c.lockFor(sub.ID)
	lock.Lock()
	defer lock.Unlock()

	ep := toEndpoint(sub, dialect)
	return Download(ctx, c.transport, ep, sub, orderType, rng, c.clock)
}

// SubmitPayment runs a CCT upload carrying painXML (pain.001 bytes).
func (c *Client) SubmitPayment(ctx context.Context, sub *ebicssubscriber.Subscriber, dialect shared.EbicsDialect, painXML []byte) (*UploadResult, error) {
	lock := c.lockFor(sub.ID)
	lock.Lock()
	defer lock.Unlock()

	ep := toEndpoint(sub, dialect)
	return Upload(ctx, c.transport, ep, sub, "CCT", painXML, c.clock)
}
