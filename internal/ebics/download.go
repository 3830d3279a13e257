package ebics

import (
	"context"
	"fmt"

	"git.taler.net/nexus/internal/cryptoebics"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/ebicsxml"
	"github.com/beevik/etree"
)

// DateRange bounds a download's StandardOrderParams/DateRange. Both
// fields empty means "no range" (server-default window).
type DateRange struct {
	Start string // YYYY-MM-DD
	End   string
}

// DownloadResult is the outcome of a completed download transaction:
// either NoData (bank reported EBICS_NO_DOWNLOAD_DATA_AVAILABLE, a
// clean terminal state per spec §4.2) or the decrypted, inflated order
// data, ready for the iso20022 layer or the HTD/HKD/HAA parsers.
type DownloadResult struct {
	NoData    bool
	OrderData []byte
}

// Download runs a full INIT -> [TRANSFER x N] -> RECEIPT transaction
// for a download order type (C52, C53, C54, HTD, HKD, HAA). Every
// suspension point (each POST) happens under the caller's subscriber
// mutex; Client.FetchTransactions and Client.FetchAccounts are the
// locking wrappers.
func Download(ctx context.Context, transport Transport, ep endpoint, sub *ebicssubscriber.Subscriber, orderType string, rng *DateRange, clock shared.Clock) (*DownloadResult, error) {
	if !sub.Ready() {
		return nil, ebicssubscriber.ErrBankKeysNotReady
	}

	initReq, err := buildDownloadInitRequest(ep, sub, orderType, rng, clock)
	if err != nil {
		return nil, err
	}
	rawResp, err := transport.Post(ctx, ep.URL, initReq)
	if err != nil {
		return nil, err
	}
	resp, err := parseResponse(rawResp)
	if err != nil {
		return nil, err
	}
	if noData, protoErr := classify(resp.TechnicalCode, resp.ReportText); protoErr != nil {
		return nil, protoErr
	} else if noData {
		return &DownloadResult{NoData: true}, nil
	}
	if resp.TransactionID == "" {
		return nil, shared.ProtocolError{Reason: "download INIT response missing TransactionID"}
	}

	segments := [][]byte{resp.OrderData}
	for seg := 2; seg <= resp.NumSegments; seg++ {
		req, err := buildDownloadTransferRequest(ep, sub, resp.TransactionID, seg)
		if err != nil {
			return nil, err
		}
		raw, err := transport.Post(ctx, ep.URL, req)
		if err != nil {
			return nil, err
		}
		segResp, err := parseResponse(raw)
		if err != nil {
			return nil, err
		}
		if _, protoErr := classify(segResp.TechnicalCode, segResp.ReportText); protoErr != nil {
			return nil, protoErr
		}
		segments = append(segments, segResp.OrderData)
	}

	var ciphertext []byte
	for _, s := range segments {
		ciphertext = append(ciphertext, s...)
	}

	plain, err := decryptAndInflate(&parsedResponse{
		EncTransactionKey: resp.EncTransactionKey,
		BankPubKeyDigest:  resp.BankPubKeyDigest,
		OrderData:         ciphertext,
	}, sub.EncryptionPrivateKey)
	if err != nil {
		// Post-processing error: bank said OK but our decrypt/inflate
		// failed. Fatal per spec §4.2; still send the receipt so the
		// bank's side of the transaction closes cleanly.
		_, _ = transport.Post(ctx, ep.URL, buildReceiptRequest(ep, resp.TransactionID, 1))
		return nil, fmt.Errorf("post-processing failure decoding order data: %w", err)
	}

	receiptReq := buildReceiptRequest(ep, resp.TransactionID, 0)
	if _, err := transport.Post(ctx, ep.URL, receiptReq); err != nil {
		return nil, fmt.Errorf("send download receipt: %w", err)
	}

	return &DownloadResult{OrderData: plain}, nil
}

func buildDownloadInitRequest(ep endpoint, sub *ebicssubscriber.Subscriber, orderType string, rng *DateRange, clock shared.Clock) ([]byte, error) {
	nonceVal, err := nonce()
	if err != nil {
		return nil, err
	}
	doc, root := newEnvelope("ebicsRequest", ep.Dialect)

	authDigest, err := cryptoebics.PublicKeyDigest(&sub.AuthenticationPrivateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	encDigest, err := cryptoebics.PublicKeyDigest(&sub.EncryptionPrivateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	header := root.CreateElement("header")
	header.CreateAttr("authenticate", "true")
	static := header.CreateElement("static")
	static.CreateElement("HostID").SetText(ep.HostID)
	static.CreateElement("Nonce").SetText(nonceVal)
	static.CreateElement("Timestamp").SetText(timestamp(clock.Now()))
	static.CreateElement("PartnerID").SetText(ep.PartnerID)
	static.CreateElement("UserID").SetText(ep.UserID)

	od := OrderDetails{OrderType: orderType, OrderAttribute: "DZHNN"}
	params := map[string]string{}
	if rng != nil {
		if rng.Start != "" {
			params["start"] = rng.Start
		}
		if rng.End != "" {
			params["end"] = rng.End
		}
	}
	od.writeOrderDetailsH004(static, 0, params)
	static.CreateElement("SecurityMedium").SetText("0000")

	bankKeys := static.CreateElement("BankPubKeyDigests")
	addDigest(bankKeys, "Authentication", "X002", authDigest)
	addDigest(bankKeys, "Encryption", "E002", encDigest)

	mutable := header.CreateElement("mutable")
	mutable.CreateElement("TransactionPhase").SetText("Initialisation")

	root.CreateElement("AuthSignature")
	root.CreateElement("body")

	if err := ebicsxml.EmbedSignature(doc, sub.AuthenticationPrivateKey); err != nil {
		return nil, fmt.Errorf("sign download INIT request: %w", err)
	}
	return doc.WriteToBytes()
}

func buildDownloadTransferRequest(ep endpoint, sub *ebicssubscriber.Subscriber, transactionID string, segmentNumber int) ([]byte, error) {
	doc, root := newEnvelope("ebicsRequest", ep.Dialect)
	header := root.CreateElement("header")
	header.CreateAttr("authenticate", "true")
	header.CreateElement("static").CreateElement("TransactionID").SetText(transactionID)
	mutable := header.CreateElement("mutable")
	mutable.CreateElement("TransactionPhase").SetText("Transfer")
	mutable.CreateElement("SegmentNumber").SetText(fmt.Sprintf("%d", segmentNumber))
	root.CreateElement("AuthSignature")
	root.CreateElement("body")

	if err := ebicsxml.EmbedSignature(doc, sub.AuthenticationPrivateKey); err != nil {
		return nil, fmt.Errorf("sign download TRANSFER request: %w", err)
	}
	return doc.WriteToBytes()
}

func buildReceiptRequest(ep endpoint, transactionID string, receiptCode int) []byte {
	doc, root := newEnvelope("ebicsRequest", ep.Dialect)
	header := root.CreateElement("header")
	header.CreateAttr("authenticate", "true")
	header.CreateElement("static").CreateElement("TransactionID").SetText(transactionID)
	mutable := header.CreateElement("mutable")
	mutable.CreateElement("TransactionPhase").SetText("Receipt")
	body := root.CreateElement("body")
	ta := body.CreateElement("TransferReceipt")
	ta.CreateAttr("authenticate", "true")
	ta.CreateElement("ReceiptCode").SetText(fmt.Sprintf("%d", receiptCode))

	out, _ := doc.WriteToBytes()
	return out
}

func addDigest(parent *etree.Element, kind, version string, digest []byte) {
	el := parent.CreateElement(kind)
	el.CreateAttr("Version", version)
	el.SetText(encodeB64(digest))
}
