package ebicsxml

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"git.taler.net/nexus/internal/cryptoebics"
	"github.com/beevik/etree"
)

const dsNS = "http://www.w3.org/2000/09/xmldsig#"

// EmbedSignature computes SHA-256 over the canonical concatenation of
// every @authenticate="true" element, RSA-PKCS#1-v1.5-signs it with
// authKey, and appends a ds:Signature carrying one ds:Reference
// URI="#xpointer(//*[@authenticate='true'])" to doc's root, per spec §4.1.
func EmbedSignature(doc *etree.Document, authKey *rsa.PrivateKey) error {
	scope, err := CanonicalizeAuthenticatedScope(doc)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(scope)

	sigValue, err := cryptoebics.SignA006Bytes(digest[:], authKey)
	if err != nil {
		return err
	}

	root := doc.Root()
	if root == nil {
		return fmt.Errorf("cannot sign document without root element")
	}

	sig := root.CreateElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", dsNS)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "#xpointer(//*[@authenticate='true'])")
	digestValue := ref.CreateElement("ds:DigestValue")
	digestValue.SetText(base64.StdEncoding.EncodeToString(digest[:]))

	sigValueEl := sig.CreateElement("ds:SignatureValue")
	sigValueEl.SetText(base64.StdEncoding.EncodeToString(sigValue))

	return nil
}

// VerifySignature recomputes the canonical digest over the
// @authenticate="true" scope (which excludes the ds:Signature element
// itself, since it carries no such attribute) and checks it against
// the embedded ds:SignatureValue using bankAuthPub.
func VerifySignature(doc *etree.Document, bankAuthPub *rsa.PublicKey) error {
	scope, err := CanonicalizeAuthenticatedScope(doc)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(scope)

	sigValueEl := doc.FindElement("//ds:Signature/ds:SignatureValue")
	if sigValueEl == nil {
		return fmt.Errorf("document has no ds:SignatureValue")
	}
	sigValue, err := base64.StdEncoding.DecodeString(sigValueEl.Text())
	if err != nil {
		return fmt.Errorf("decode ds:SignatureValue: %w", err)
	}

	return cryptoebics.VerifyA006Bytes(digest[:], sigValue, bankAuthPub)
}
