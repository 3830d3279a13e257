package iso20022

import (
	"encoding/json"
	"fmt"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/beevik/etree"
)

// camtRootTags lists the three outer elements spec §4.3 accepts, one
// per fetch level.
var camtRootTags = []string{"BkToCstmrAcctRpt", "BkToCstmrStmt", "BkToCstmrDbtCdtNtfctn"}

// ParsedEntry is one Ntry extracted from a camt document, not yet
// checked for duplication against existing rows.
type ParsedEntry struct {
	AcctSvcrRef    string
	Direction      shared.CreditDebitIndicator
	Currency       string
	Amount         string
	Status         shared.EntryStatus
	PmtInfID       string // from TxDtls/Refs, empty if absent or not DBIT
	TransactionJSON json.RawMessage
}

// ParsedStatement is the result of parsing one camt.05x message.
type ParsedStatement struct {
	MsgID     string
	CreDtTm   time.Time
	Entries   []ParsedEntry
	Dropped   int // entries with no AcctSvcrRef, dropped per §4.3
}

// ParseCamt parses a camt.052/053/054 document into a ParsedStatement.
// Entries lacking AcctSvcrRef are counted in Dropped and excluded, per
// the "If AcctSvcrRef is absent, the entry is dropped with a warning"
// rule; the caller logs the warning using Dropped.
func ParseCamt(raw []byte) (*ParsedStatement, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("camt: invalid XML: %w", err)
	}

	var outer *etree.Element
	for _, tag := range camtRootTags {
		if el := doc.FindElement("//" + tag); el != nil {
			outer = el
			break
		}
	}
	if outer == nil {
		return nil, fmt.Errorf("camt: no recognized report/statement/notification root found")
	}

	grpHdr := outer.FindElement("GrpHdr")
	stmt := &ParsedStatement{}
	if grpHdr != nil {
		stmt.MsgID = textOf(grpHdr, "MsgId")
		if ts := textOf(grpHdr, "CreDtTm"); ts != "" {
			parsed, err := parseISOTime(ts)
			if err != nil {
				return nil, fmt.Errorf("camt: invalid CreDtTm %q: %w", ts, err)
			}
			stmt.CreDtTm = parsed
		}
	}

	for _, ntry := range outer.FindElements(".//Ntry") {
		entry, ok, err := parseEntry(ntry)
		if err != nil {
			return nil, err
		}
		if !ok {
			stmt.Dropped++
			continue
		}
		stmt.Entries = append(stmt.Entries, entry)
	}

	return stmt, nil
}

func parseEntry(ntry *etree.Element) (ParsedEntry, bool, error) {
	ref := textOf(ntry, "AcctSvcrRef")
	if ref == "" {
		return ParsedEntry{}, false, nil
	}

	direction := shared.CreditDebitIndicator(textOf(ntry, "CdtDbtInd"))
	status := shared.EntryStatus(textOf(ntry, "Sts"))
	if status == "" {
		// H005 nests status one level deeper: Sts/Cd.
		status = shared.EntryStatus(textOf(ntry, "Sts/Cd"))
	}

	amtEl := ntry.FindElement("Amt")
	var currency, amount string
	if amtEl != nil {
		currency = amtEl.SelectAttrValue("Ccy", "")
		amount = amtEl.Text()
	}

	var pmtInfID string
	if direction == shared.Debit {
		pmtInfID = textOf(ntry, ".//TxDtls/Refs/PmtInfId")
	}

	txJSON, err := entryToJSON(ntry)
	if err != nil {
		return ParsedEntry{}, false, err
	}

	return ParsedEntry{
		AcctSvcrRef:     ref,
		Direction:       direction,
		Currency:        currency,
		Amount:          amount,
		Status:          status,
		PmtInfID:        pmtInfID,
		TransactionJSON: txJSON,
	}, true, nil
}

// entryToJSON renders the whole Ntry element as the canonical JSON form
// stored in BankTransactionEntry.TransactionJSON (spec §4.3: "the
// canonical BankTransactionEntry.transactionJson records the whole
// Ntry", independent of the batch/singleton shape underneath).
func entryToJSON(ntry *etree.Element) (json.RawMessage, error) {
	m := elementToMap(ntry)
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("camt: marshal entry: %w", err)
	}
	return out, nil
}

// elementToMap renders an etree element tree into a JSON-friendly map:
// attributes prefixed with "@", repeated child tags collected into a
// slice, leaf text under "#text" when the element also has children or
// attributes, or the bare string when it is a pure leaf.
func elementToMap(el *etree.Element) interface{} {
	if len(el.ChildElements()) == 0 {
		if len(el.Attr) == 0 {
			return el.Text()
		}
	}

	m := map[string]interface{}{}
	for _, attr := range el.Attr {
		m["@"+attr.Key] = attr.Value
	}
	if text := el.Text(); text != "" {
		m["#text"] = text
	}

	grouped := map[string][]interface{}{}
	var order []string
	for _, child := range el.ChildElements() {
		if _, ok := grouped[child.Tag]; !ok {
			order = append(order, child.Tag)
		}
		grouped[child.Tag] = append(grouped[child.Tag], elementToMap(child))
	}
	for _, tag := range order {
		vals := grouped[tag]
		if len(vals) == 1 {
			m[tag] = vals[0]
		} else {
			m[tag] = vals
		}
	}
	return m
}

func textOf(parent *etree.Element, path string) string {
	el := parent.FindElement(path)
	if el == nil {
		return ""
	}
	return el.Text()
}

func parseISOTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
