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

// uploadSegmentSize is the base64-character chunk size for upload
// transfer segments (spec §4.2).
const uploadSegmentSize = 4096

// UploadResult is the outcome of a completed upload transaction.
type UploadResult struct {
	OrderID       string
	TransactionID string
}

// Upload runs a full INIT -> [TRANSFER x N] transaction uploading
// orderData (pain.001 bytes) under orderType (CCT for a credit
// transfer, CCC for a direct debit). Signature preparation and payload
// preparation share one transaction key per spec §4.2 step 1-2.
func Upload(ctx context.Context, transport Transport, ep endpoint, sub *ebicssubscriber.Subscriber, orderType string, orderData []byte, clock shared.Clock) (*UploadResult, error) {
	if !sub.Ready() {
		return nil, ebicssubscriber.ErrBankKeysNotReady
	}

	sigValue, err := cryptoebics.SignA006(orderData, sub.SigningPrivateKey)
	if err != nil {
		return nil, err
	}
	userSigXML := buildUserSignatureData(ep.PartnerID, ep.UserID, sigValue)

	txKey, err := cryptoebics.NewTransactionKey()
	if err != nil {
		return nil, err
	}
	sigPayload, err := cryptoebics.EncryptE002WithKey(userSigXML, txKey, sub.BankEncPublicKey)
	if err != nil {
		return nil, err
	}

	deflated, err := cryptoebics.Deflate(orderData)
	if err != nil {
		return nil, err
	}
	orderCiphertext, err := cryptoebics.EncryptAESCBCWithKey(deflated, txKey)
	if err != nil {
		return nil, err
	}
	orderB64 := encodeB64(orderCiphertext)

	chunks := chunkString(orderB64, uploadSegmentSize)

	initReq, err := buildUploadInitRequest(ep, sub, orderType, sigPayload, chunks[0], len(chunks), clock)
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
	if _, protoErr := classify(resp.TechnicalCode, resp.ReportText); protoErr != nil {
		return nil, protoErr
	}
	if resp.TransactionID == "" {
		return nil, shared.ProtocolError{Reason: "upload INIT response missing TransactionID"}
	}

	for i := 1; i < len(chunks); i++ {
		req, err := buildUploadTransferRequest(ep, sub, resp.TransactionID, i+1, chunks[i])
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
	}

	return &UploadResult{OrderID: resp.OrderID, TransactionID: resp.TransactionID}, nil
}

func chunkString(s string, size int) []string {
	if len(s) == 0 {
		return []string{""}
	}
	var out []string
	for i := 0; i < len(s); i += size {
		end := i + size
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[i:end])
	}
	return out
}

// buildUserSignatureData renders the plain XML wrapping the A006
// signature value that gets E002-encrypted and sent as
// the body's DataTransfer/SignatureData element in the INIT request.
func buildUserSignatureData(partnerID, userID string, sigValue []byte) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("UserSignatureData")
	root.CreateAttr("xmlns", "http://www.ebics.org/S001")
	usd := root.CreateElement("OrderSignatureData")
	usd.CreateElement("SignatureVersion").SetText("A006")
	usd.CreateElement("SignatureValue").SetText(encodeB64(sigValue))
	usd.CreateElement("PartnerID").SetText(partnerID)
	usd.CreateElement("UserID").SetText(userID)
	out, _ := doc.WriteToBytes()
	return out
}

func buildUploadInitRequest(ep endpoint, sub *ebicssubscriber.Subscriber, orderType string, sigPayload *cryptoebics.EncryptedPayload, firstChunk string, numSegments int, clock shared.Clock) ([]byte, error) {
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
	static.CreateElement("NumSegments").SetText(fmt.Sprintf("%d", numSegments))
	static.CreateElement("Timestamp").SetText(timestamp(clock.Now()))
	static.CreateElement("PartnerID").SetText(ep.PartnerID)
	static.CreateElement("UserID").SetText(ep.UserID)

	od := OrderDetails{OrderType: orderType, OrderAttribute: "OZHNN"}
	od.writeOrderDetailsH004(static, numSegments, nil)
	static.CreateElement("SecurityMedium").SetText("0000")

	bankKeys := static.CreateElement("BankPubKeyDigests")
	addDigest(bankKeys, "Authentication", "X002", authDigest)
	addDigest(bankKeys, "Encryption", "E002", encDigest)

	mutable := header.CreateElement("mutable")
	mutable.CreateElement("TransactionPhase").SetText("Initialisation")

	root.CreateElement("AuthSignature")

	body := root.CreateElement("body")

	sigData := body.CreateElement("DataTransfer").CreateElement("SignatureData")
	sigData.CreateAttr("authenticate", "true")
	sigData.SetText(encodeB64(sigPayload.Ciphertext))

	dt := body.CreateElement("DataTransfer")
	dei := dt.CreateElement("DataEncryptionInfo")
	dei.CreateAttr("authenticate", "true")
	digestEl := dei.CreateElement("EncryptionPubKeyDigest")
	digestEl.CreateAttr("Version", "E002")
	digestEl.SetText(encodeB64(sigPayload.BankPubKeyDigest))
	dei.CreateElement("TransactionKey").SetText(encodeB64(sigPayload.EncryptedTransactionKey))
	dt.CreateElement("OrderData").SetText(firstChunk)

	if err := ebicsxml.EmbedSignature(doc, sub.AuthenticationPrivateKey); err != nil {
		return nil, fmt.Errorf("sign upload INIT request: %w", err)
	}
	return doc.WriteToBytes()
}

func buildUploadTransferRequest(ep endpoint, sub *ebicssubscriber.Subscriber, transactionID string, segmentNumber int, chunk string) ([]byte, error) {
	doc, root := newEnvelope("ebicsRequest", ep.Dialect)
	header := root.CreateElement("header")
	header.CreateAttr("authenticate", "true")
	header.CreateElement("static").CreateElement("TransactionID").SetText(transactionID)
	mutable := header.CreateElement("mutable")
	mutable.CreateElement("TransactionPhase").SetText("Transfer")
	mutable.CreateElement("SegmentNumber").SetText(fmt.Sprintf("%d", segmentNumber))

	root.CreateElement("AuthSignature")
	body := root.CreateElement("body")
	dt := body.CreateElement("DataTransfer")
	od := dt.CreateElement("OrderData")
	od.SetText(chunk)

	if err := ebicsxml.EmbedSignature(doc, sub.AuthenticationPrivateKey); err != nil {
		return nil, fmt.Errorf("sign upload TRANSFER request: %w", err)
	}
	return doc.WriteToBytes()
}
