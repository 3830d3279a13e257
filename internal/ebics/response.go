package ebics

import (
	"fmt"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/beevik/etree"
)

// parsedResponse holds the fields the engine cares about out of an
// ebicsResponse or ebicsKeyManagementResponse document, independent of
// which transaction phase produced it.
type parsedResponse struct {
	TechnicalCode shared.TechnicalCode
	BusinessCode  string
	ReportText    string

	TransactionID   string
	OrderID         string
	NumSegments     int
	SegmentSize     int
	EncTransactionKey []byte // DataEncryptionInfo/TransactionKey, base64-decoded
	BankPubKeyDigest  []byte // DataEncryptionInfo/EncryptionPubKeyDigest, base64-decoded
	OrderData         []byte // base64-decoded segment payload, still compressed+encrypted

	Doc *etree.Document
}

// parseResponse decodes raw bytes into a parsedResponse, pulling out
// whichever fields are present (key-management responses carry no
// transaction/segment data; download INIT responses carry both codes
// and the first segment; transfer responses carry only a segment and
// the receipt confirmation code).
func parseResponse(raw []byte) (*parsedResponse, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("parse ebics response xml: %w", err)
	}

	out := &parsedResponse{Doc: doc}

	if el := doc.FindElement("//ReturnCode"); el != nil {
		out.TechnicalCode = shared.TechnicalCode(el.Text())
	}
	if el := doc.FindElement("//ReportText"); el != nil {
		out.ReportText = el.Text()
	}
	// Business-level return code lives in the mutable header for
	// ordinary (secured) responses; key-management responses only
	// carry the technical ReturnCode.
	if el := doc.FindElement("//mutable/ReturnCode"); el != nil {
		out.BusinessCode = el.Text()
	}

	if el := doc.FindElement("//TransactionID"); el != nil {
		out.TransactionID = el.Text()
	}
	if el := doc.FindElement("//OrderID"); el != nil {
		out.OrderID = el.Text()
	}
	if el := doc.FindElement("//NumSegments"); el != nil {
		fmt.Sscanf(el.Text(), "%d", &out.NumSegments)
	}
	if el := doc.FindElement("//SegmentNumber"); el != nil {
		// presence alone is enough; the engine tracks segment count itself
		_ = el
	}

	if el := doc.FindElement("//DataEncryptionInfo/TransactionKey"); el != nil {
		b, err := decodeB64(el.Text())
		if err != nil {
			return nil, fmt.Errorf("decode transaction key: %w", err)
		}
		out.EncTransactionKey = b
	}
	if el := doc.FindElement("//DataEncryptionInfo/EncryptionPubKeyDigest"); el != nil {
		b, err := decodeB64(el.Text())
		if err != nil {
			return nil, fmt.Errorf("decode pub key digest: %w", err)
		}
		out.BankPubKeyDigest = b
	}
	if el := doc.FindElement("//OrderData"); el != nil {
		b, err := decodeB64(el.Text())
		if err != nil {
			return nil, fmt.Errorf("decode order data segment: %w", err)
		}
		out.OrderData = b
	}

	return out, nil
}

// classify turns a technical return code into the engine's error
// taxonomy. EBICS_OK and the two download-postprocess codes are not
// errors; EBICS_NO_DOWNLOAD_DATA_AVAILABLE is reported via the bool so
// callers can terminate the transaction cleanly instead of treating it
// as a failure.
func classify(code shared.TechnicalCode, reportText string) (noData bool, err error) {
	switch code {
	case shared.EbicsOK, shared.EbicsDownloadPostprocessDone, shared.EbicsDownloadPostprocessSkipped, "":
		return false, nil
	case shared.EbicsNoDownloadDataAvailable:
		return true, nil
	default:
		return false, shared.ProtocolError{
			HTTPStatus:    502,
			Reason:        reportText,
			TechnicalCode: code,
		}
	}
}
