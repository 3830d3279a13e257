package ebics

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"git.taler.net/nexus/internal/cryptoebics"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/shared"
	"git.taler.net/nexus/internal/ebicsxml"
	"github.com/beevik/etree"
)

// keyOrderData renders the plain (unencrypted, uncompressed) XML EBICS
// wraps a subscriber public key in for INI/HIA upload: a PubKeyValue
// carrying the RSA modulus/exponent and a generation timestamp, under
// the root element the caller names: <SignaturePubKeyOrderData> for INI,
// <HIARequestOrderData> for HIA.
func keyOrderData(root string, partnerID, userID string, sigKeyValue *pubKeyElements, authKeyValue, encKeyValue *pubKeyElements) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	r := doc.CreateElement(root)
	r.CreateAttr("xmlns", "http://www.ebics.org/S001")

	writeKey := func(tag string, k *pubKeyElements, versionAttr string) {
		if k == nil {
			return
		}
		info := r.CreateElement(tag)
		keyEl := info.CreateElement("PubKeyValue")
		rsaKey := keyEl.CreateElement("PubKeyValue")
		rsaKey.CreateElement("Exponent").SetText(k.Exponent)
		rsaKey.CreateElement("Modulus").SetText(k.Modulus)
		keyEl.CreateElement("TimeStamp").SetText(k.Timestamp)
		info.CreateElement(versionAttr).SetText(k.Version)
		info.CreateElement("PartnerID").SetText(partnerID)
		info.CreateElement("UserID").SetText(userID)
	}
	writeKey("SignaturePubKeyInfo", sigKeyValue, "SignatureVersion")
	writeKey("AuthenticationPubKeyInfo", authKeyValue, "AuthenticationVersion")
	writeKey("EncryptionPubKeyInfo", encKeyValue, "EncryptionVersion")

	out, _ := doc.WriteToBytes()
	return out
}

type pubKeyElements struct {
	Exponent, Modulus, Timestamp, Version string
}

func toPubKeyElements(pub *rsa.PublicKey, clock shared.Clock, version string) *pubKeyElements {
	e := big64(int64(pub.E))
	return &pubKeyElements{
		Exponent:  e,
		Modulus:   base64.StdEncoding.EncodeToString(pub.N.Bytes()),
		Timestamp: timestamp(clock.Now()),
		Version:   version,
	}
}

func big64(n int64) string {
	b := []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return base64.StdEncoding.EncodeToString(b[i:])
}

// BuildINIRequest builds the ebicsUnsecuredRequest that uploads the
// subscriber's signing public key (order type INI). Unsecured
// requests carry no ds:Signature: the subscriber has no registered
// signing key yet, which is precisely what this request establishes.
func BuildINIRequest(ep endpoint, sub *ebicssubscriber.Subscriber, clock shared.Clock) ([]byte, error) {
	orderData := keyOrderData("SignaturePubKeyOrderData", ep.PartnerID, ep.UserID,
		toPubKeyElements(&sub.SigningPrivateKey.PublicKey, clock, "A006"), nil, nil)
	return buildUnsecuredRequest(ep, "INI", orderData)
}

// BuildHIARequest builds the ebicsUnsecuredRequest that uploads the
// subscriber's authentication and encryption public keys (order type HIA).
func BuildHIARequest(ep endpoint, sub *ebicssubscriber.Subscriber, clock shared.Clock) ([]byte, error) {
	orderData := keyOrderData("HIARequestOrderData", ep.PartnerID, ep.UserID,
		nil,
		toPubKeyElements(&sub.AuthenticationPrivateKey.PublicKey, clock, "X002"),
		toPubKeyElements(&sub.EncryptionPrivateKey.PublicKey, clock, "E002"))
	return buildUnsecuredRequest(ep, "HIA", orderData)
}

func buildUnsecuredRequest(ep endpoint, orderType string, orderData []byte) ([]byte, error) {
	doc, root := newEnvelope("ebicsUnsecuredRequest", ep.Dialect)
	header := root.CreateElement("header")
	header.CreateAttr("authenticate", "true")
	static := header.CreateElement("static")
	static.CreateElement("HostID").SetText(ep.HostID)
	static.CreateElement("PartnerID").SetText(ep.PartnerID)
	static.CreateElement("UserID").SetText(ep.UserID)
	static.CreateElement("OrderDetails").CreateElement("OrderType").SetText(orderType)
	static.CreateElement("SecurityMedium").SetText("0000")
	header.CreateElement("mutable")

	body := root.CreateElement("body")
	dt := body.CreateElement("DataTransfer")
	dt.CreateElement("OrderData").SetText(encodeB64(orderData))

	return doc.WriteToBytes()
}

// BuildHPBRequest builds the ebicsNoPubKeyDigestsRequest that
// downloads the bank's authentication and encryption public keys
// (order type HPB), signed with the subscriber's authentication key,
// which HIA has already registered with the bank.
func BuildHPBRequest(ep endpoint, sub *ebicssubscriber.Subscriber, clock shared.Clock) ([]byte, error) {
	nonceVal, err := nonce()
	if err != nil {
		return nil, err
	}
	doc, root := newEnvelope("ebicsNoPubKeyDigestsRequest", ep.Dialect)
	header := root.CreateElement("header")
	header.CreateAttr("authenticate", "true")
	static := header.CreateElement("static")
	static.CreateElement("HostID").SetText(ep.HostID)
	static.CreateElement("Nonce").SetText(nonceVal)
	static.CreateElement("Timestamp").SetText(timestamp(clock.Now()))
	static.CreateElement("PartnerID").SetText(ep.PartnerID)
	static.CreateElement("UserID").SetText(ep.UserID)
	static.CreateElement("OrderDetails").CreateElement("OrderType").SetText("HPB")
	static.CreateElement("SecurityMedium").SetText("0000")
	mutable := header.CreateElement("mutable")
	mutable.CreateElement("TransactionPhase").SetText("Initialisation")
	root.CreateElement("AuthSignature")
	root.CreateElement("body")

	if err := ebicsxml.EmbedSignature(doc, sub.AuthenticationPrivateKey); err != nil {
		return nil, fmt.Errorf("sign HPB request: %w", err)
	}
	return doc.WriteToBytes()
}

// ParseHPBResponse decrypts and parses an HPB response body, returning
// the bank's authentication and encryption public keys. The order data
// is E002-encrypted and DEFLATEd exactly like a download transaction's
// payload, just carrying a PubKeyValue document instead of camt XML.
func ParseHPBResponse(raw []byte, sub *ebicssubscriber.Subscriber) (authPub, encPub *rsa.PublicKey, err error) {
	resp, err := parseResponse(raw)
	if err != nil {
		return nil, nil, err
	}
	if _, protoErr := classify(resp.TechnicalCode, resp.ReportText); protoErr != nil {
		return nil, nil, protoErr
	}
	if resp.EncTransactionKey == nil || resp.OrderData == nil {
		return nil, nil, shared.ProtocolError{Reason: "HPB response missing encrypted key material"}
	}

	plain, err := decryptAndInflate(resp, sub.EncryptionPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(plain); err != nil {
		return nil, nil, fmt.Errorf("parse HPB order data: %w", err)
	}
	authPub, err = readPubKeyElement(doc, "AuthenticationPubKeyInfo")
	if err != nil {
		return nil, nil, err
	}
	encPub, err = readPubKeyElement(doc, "EncryptionPubKeyInfo")
	if err != nil {
		return nil, nil, err
	}
	return authPub, encPub, nil
}

func readPubKeyElement(doc *etree.Document, tag string) (*rsa.PublicKey, error) {
	modEl := doc.FindElement("//" + tag + "//Modulus")
	expEl := doc.FindElement("//" + tag + "//Exponent")
	if modEl == nil || expEl == nil {
		return nil, fmt.Errorf("HPB response missing %s", tag)
	}
	mod, err := base64.StdEncoding.DecodeString(modEl.Text())
	if err != nil {
		return nil, fmt.Errorf("decode %s modulus: %w", tag, err)
	}
	exp, err := base64.StdEncoding.DecodeString(expEl.Text())
	if err != nil {
		return nil, fmt.Errorf("decode %s exponent: %w", tag, err)
	}
	e := 0
	for _, b := range exp {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{N: bytesToBigInt(mod), E: e}, nil
}

// SignatureDigestFor computes the A006 digest used to confirm the
// bank's HPB fingerprint out-of-band (spec §4.2: "the operator must
// confirm the bank keys' fingerprints ... before the connection
// transitions to READY").
func SignatureDigestFor(pub *rsa.PublicKey) ([]byte, error) {
	return cryptoebics.PublicKeyDigest(pub)
}
