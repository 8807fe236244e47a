package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testIssueDate = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func testHeader() DocumentHeader {
	return DocumentHeader{CompanyID: uuid.New(), IssueDate: testIssueDate}
}

func newTestInvoice(t *testing.T, tenantID uuid.UUID) *Invoice {
	t.Helper()
	inv, err := NewInvoice(tenantID, uuid.New(), testHeader(), []LineItemInput{taxedLine("1", "45000", "0", "14")}, nil)
	require.NoError(t, err)
	return inv
}

func newTestProforma(t *testing.T) *Proforma {
	t.Helper()
	p, err := NewProforma(uuid.New(), uuid.New(), testHeader(), []LineItemInput{taxedLine("2", "1000", "5", "14")}, nil)
	require.NoError(t, err)
	return p
}

func certify(t *testing.T, doc *FiscalDocument) {
	t.Helper()
	c := newTestCertifier(stubSigner{})
	bundle, err := c.Certify(context.Background(), newStubAllocator(), doc.CertificationRequest())
	require.NoError(t, err)
	require.NoError(t, doc.ApplyCertification(bundle))
}
