// Package iso20022 builds pain.001 credit transfer initiations and
// parses camt.052/053/054 bank reports into the canonical
// banktransaction.Entry model, per spec §4.3. It sits above the domain
// packages (paymentinitiation, banktransaction, bankaccount) and below
// the EBICS engine, which only ever sees opaque XML bytes.
package iso20022

import (
	"fmt"
	"time"

	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/shared"
	"github.com/beevik/etree"
)

// painVersion picks the pain.001 message version for the dialect the
// connection speaks: EBICS 3 (H005) carries pain.001.001.09, everything
// else (H004 and the vendor dialects layered on top of it) carries
// pain.001.001.03.
func painVersion(dialect shared.EbicsDialect) string {
	if dialect == shared.DialectGenericH005 {
		return "pain.001.001.09"
	}
	return "pain.001.001.03"
}

// BuildPain001 renders init as a pain.001 document. debtorName/IBAN/BIC
// identify the Nexus-side account; init already carries the validated
// 2-decimal amount and the identifier triplet assigned by
// bankaccount.Account.NextPain001Identifiers.
func BuildPain001(init *paymentinitiation.Initiation, debtorName, debtorIBAN, debtorBIC string, dialect shared.EbicsDialect, now time.Time) ([]byte, error) {
	if init.Currency == "" {
		return nil, fmt.Errorf("pain.001: initiation %s has no currency", init.ID)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	version := painVersion(dialect)
	root := doc.CreateElement("Document")
	root.CreateAttr("xmlns", "urn:iso:std:iso:20022:tech:xsd:"+version)
	root.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")

	cstmr := root.CreateElement("CstmrCdtTrfInitn")

	grpHdr := cstmr.CreateElement("GrpHdr")
	grpHdr.CreateElement("MsgId").SetText(init.MessageID)
	grpHdr.CreateElement("CreDtTm").SetText(formatDateTime(now))
	grpHdr.CreateElement("NbOfTxs").SetText("1")
	grpHdr.CreateElement("CtrlSum").SetText(init.Amount)
	grpHdr.CreateElement("InitgPty").CreateElement("Nm").SetText(debtorName)

	pmtInf := cstmr.CreateElement("PmtInf")
	pmtInf.CreateElement("PmtInfId").SetText(init.PaymentInformationID)
	pmtInf.CreateElement("PmtMtd").SetText("TRF")
	pmtInf.CreateElement("BtchBookg").SetText("false")
	pmtInf.CreateElement("NbOfTxs").SetText("1")
	pmtInf.CreateElement("CtrlSum").SetText(init.Amount)

	svcLvl := pmtInf.CreateElement("PmtTpInf").CreateElement("SvcLvl")
	svcLvl.CreateElement("Cd").SetText("SEPA")

	pmtInf.CreateElement("ReqdExctnDt").SetText(formatDate(now))

	dbtr := pmtInf.CreateElement("Dbtr")
	dbtr.CreateElement("Nm").SetText(debtorName)

	pmtInf.CreateElement("DbtrAcct").CreateElement("Id").CreateElement("IBAN").SetText(debtorIBAN)

	if debtorBIC != "" {
		pmtInf.CreateElement("DbtrAgt").CreateElement("FinInstnId").CreateElement("BIC").SetText(debtorBIC)
	}

	pmtInf.CreateElement("ChrgBr").SetText("SLEV")

	cdtTrfTxInf := pmtInf.CreateElement("CdtTrfTxInf")
	pmtId := cdtTrfTxInf.CreateElement("PmtId")
	pmtId.CreateElement("InstrId").SetText(init.InstructionID)
	pmtId.CreateElement("EndToEndId").SetText(init.EndToEndID)

	amt := cdtTrfTxInf.CreateElement("Amt").CreateElement("InstdAmt")
	amt.CreateAttr("Ccy", init.Currency)
	amt.SetText(init.Amount)

	if init.CreditorBIC != "" {
		cdtTrfTxInf.CreateElement("CdtrAgt").CreateElement("FinInstnId").CreateElement("BIC").SetText(init.CreditorBIC)
	}

	cdtr := cdtTrfTxInf.CreateElement("Cdtr")
	cdtr.CreateElement("Nm").SetText(init.CreditorName)

	cdtTrfTxInf.CreateElement("CdtrAcct").CreateElement("Id").CreateElement("IBAN").SetText(init.CreditorIBAN)

	if init.Subject != "" {
		cdtTrfTxInf.CreateElement("RmtInf").CreateElement("Ustrd").SetText(init.Subject)
	}

	return doc.WriteToBytes()
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
