package iso20022

import (
	"testing"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCamt053 = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.02">
  <BkToCstmrStmt>
    <GrpHdr>
      <MsgId>stmt-msg-1</MsgId>
      <CreDtTm>2026-01-05T09:00:00Z</CreDtTm>
    </GrpHdr>
    <Stmt>
      <Ntry>
        <Amt Ccy="EUR">12.50</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <Sts>BOOK</Sts>
        <AcctSvcrRef>REF001</AcctSvcrRef>
        <NtryDtls>
          <TxDtls>
            <Refs>
              <PmtInfId>pmtinf-1</PmtInfId>
            </Refs>
          </TxDtls>
        </NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="EUR">5.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts>BOOK</Sts>
        <AcctSvcrRef>REF002</AcctSvcrRef>
      </Ntry>
      <Ntry>
        <Amt Ccy="EUR">1.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts>BOOK</Sts>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestParseCamtExtractsEntries(t *testing.T) {
	stmt, err := ParseCamt([]byte(sampleCamt053))
	require.NoError(t, err)

	assert.Equal(t, "stmt-msg-1", stmt.MsgID)
	assert.False(t, stmt.CreDtTm.IsZero())
	assert.Equal(t, 1, stmt.Dropped, "the ref-less entry is dropped")
	require.Len(t, stmt.Entries, 2)

	debit := stmt.Entries[0]
	assert.Equal(t, "REF001", debit.AcctSvcrRef)
	assert.Equal(t, shared.Debit, debit.Direction)
	assert.Equal(t, "12.50", debit.Amount)
	assert.Equal(t, "EUR", debit.Currency)
	assert.Equal(t, shared.StatusBooked, debit.Status)
	assert.Equal(t, "pmtinf-1", debit.PmtInfID)
	assert.NotEmpty(t, debit.TransactionJSON)

	credit := stmt.Entries[1]
	assert.Equal(t, "REF002", credit.AcctSvcrRef)
	assert.Equal(t, shared.Credit, credit.Direction)
	assert.Empty(t, credit.PmtInfID, "credit entries are never confirmation candidates")
}

func TestParseCamtRejectsUnrecognizedRoot(t *testing.T) {
	_, err := ParseCamt([]byte(`<Document><SomethingElse/></Document>`))
	assert.Error(t, err)
}

func TestParseCamtRejectsInvalidXML(t *testing.T) {
	_, err := ParseCamt([]byte(`not xml`))
	assert.Error(t, err)
}

func TestEntryToJSONRoundTripsStructurally(t *testing.T) {
	stmt1, err := ParseCamt([]byte(sampleCamt053))
	require.NoError(t, err)
	stmt2, err := ParseCamt([]byte(sampleCamt053))
	require.NoError(t, err)

	require.Len(t, stmt1.Entries, len(stmt2.Entries))
	for i := range stmt1.Entries {
		assert.JSONEq(t, string(stmt1.Entries[i].TransactionJSON), string(stmt2.Entries[i].TransactionJSON))
	}
}
