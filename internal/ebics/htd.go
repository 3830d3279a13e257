package ebics

import (
	"git.taler.net/nexus/internal/domain/offeredaccount"
	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// ParseHTDAccounts parses the HTD/HKD order data (a
// HTDResponseOrderData-family document listing the partner's
// authorized accounts) into offeredaccount.Offered rows bound to
// connectionID. Only the fields the data model tracks are extracted;
// anything else in the response (order type permissions, address
// info) is ignored.
func ParseHTDAccounts(orderData []byte, connectionID uuid.UUID) ([]*offeredaccount.Offered, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(orderData); err != nil {
		return nil, err
	}

	var out []*offeredaccount.Offered
	for _, acc := range doc.FindElements("//AccountInfo") {
		remoteID := acc.SelectAttrValue("ID", "")
		iban := textOf(acc, "AccountNumber[@international='true']")
		if iban == "" {
			iban = textOf(acc, "AccountNumber")
		}
		bic := textOf(acc, "BankCode[@international='true']")
		if bic == "" {
			bic = textOf(acc, "BankCode")
		}
		holder := textOf(acc, "AccountHolder")
		out = append(out, offeredaccount.New(connectionID, remoteID, iban, bic, holder))
	}
	return out, nil
}

func textOf(parent *etree.Element, path string) string {
	el := parent.FindElement(path)
	if el == nil {
		return ""
	}
	return el.Text()
}
