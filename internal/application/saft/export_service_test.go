package saft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubDocuments serves FindIssuedBetween; every other method panics if called
type stubDocuments struct {
	fiscal.DocumentRepository
	docs       []fiscal.Document
	err        error
	start, end time.Time
}

func (s *stubDocuments) FindIssuedBetween(_ context.Context, _ uuid.UUID, start, end time.Time) ([]fiscal.Document, error) {
	s.start, s.end = start, end
	return s.docs, s.err
}

type recordingWriter struct {
	header AuditHeader
	docs   int
	err    error
}

func (w *recordingWriter) Write(h AuditHeader, docs []fiscal.Document) ([]byte, error) {
	w.header = h
	w.docs = len(docs)
	if w.err != nil {
		return nil, w.err
	}
	return []byte("<AuditFile/>"), nil
}

// MockArchive is a mock implementation of ArchiveStorage
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

type countingMetrics struct {
	calls int
	docs  int
}

func (m *countingMetrics) SAFTExported(_ context.Context, _ time.Duration, documents int) {
	m.calls++
	m.docs = documents
}

var (
	march1  = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	march31 = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

func principal() fiscalapp.Principal {
	return fiscalapp.Principal{TenantID: uuid.New(), UserID: uuid.New()}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "SAFT_AO_2026-03-01_2026-03-31.xml", FileName(march1, march31))
}

func TestExportService_Export(t *testing.T) {
	docs := &stubDocuments{}
	writer := &recordingWriter{}
	metrics := &countingMetrics{}
	created := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	svc := NewExportService(docs, writer, CompanyInfo{CompanyName: "Kwanza Lda"},
		WithExportMetrics(metrics),
		WithKeyVersion("2"),
		WithExportClock(func() time.Time { return created }))
	p := principal()

	export, err := svc.Export(context.Background(), p, march1.Add(15*time.Hour), march31)
	require.NoError(t, err)

	assert.Equal(t, "SAFT_AO_2026-03-01_2026-03-31.xml", export.FileName)
	assert.Equal(t, "<AuditFile/>", string(export.Content))
	assert.Zero(t, export.DocumentCount, "empty periods still export")
	assert.Empty(t, export.ArchiveKey)
	assert.Equal(t, march1, docs.start, "start is truncated to the date")
	assert.Equal(t, march31, docs.end)
	assert.Equal(t, "2", writer.header.KeyVersion)
	assert.Equal(t, created, writer.header.DateCreated)
	assert.Equal(t, p.TenantID, writer.header.TenantID)
	assert.Equal(t, "Kwanza Lda", writer.header.Company.CompanyName)
	assert.Equal(t, 1, metrics.calls)
}

func TestExportService_Validation(t *testing.T) {
	svc := NewExportService(&stubDocuments{}, &recordingWriter{}, CompanyInfo{})

	_, err := svc.Export(context.Background(), principal(), march31, march1)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))

	_, err = svc.Export(context.Background(), principal(), time.Time{}, march31)
	assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))

	_, err = svc.Export(context.Background(), fiscalapp.Principal{}, march1, march31)
	assert.Equal(t, shared.CodeUnauthorized, shared.CodeOf(err))
}

func TestExportService_StorageFailure(t *testing.T) {
	cause := shared.WrapDomainError(shared.CodeStorageUnavailable, "database unreachable", errors.New("dial tcp: connection refused"))
	writer := &recordingWriter{}
	svc := NewExportService(&stubDocuments{err: cause}, writer, CompanyInfo{})

	_, err := svc.Export(context.Background(), principal(), march1, march31)
	require.Error(t, err)
	assert.Equal(t, shared.CodeExport, shared.CodeOf(err))
	assert.True(t, shared.HasCode(err, shared.CodeStorageUnavailable))
	assert.Zero(t, writer.docs, "nothing is written after a failed query")
}

func TestExportService_WriterFailure(t *testing.T) {
	svc := NewExportService(&stubDocuments{}, &recordingWriter{err: errors.New("encoding failed")}, CompanyInfo{})
	_, err := svc.Export(context.Background(), principal(), march1, march31)
	assert.Equal(t, shared.CodeExport, shared.CodeOf(err))
}

func TestExportService_Archive(t *testing.T) {
	p := principal()
	key := "saft/" + p.TenantID.String() + "/SAFT_AO_2026-03-01_2026-03-31.xml"

	t.Run("stored", func(t *testing.T) {
		archive := new(MockArchive)
		archive.On("PutObject", mock.Anything, key, "application/xml", []byte("<AuditFile/>")).Return(nil)
		svc := NewExportService(&stubDocuments{}, &recordingWriter{}, CompanyInfo{}, WithArchive(archive))

		export, err := svc.Export(context.Background(), p, march1, march31)
		require.NoError(t, err)
		assert.Equal(t, key, export.ArchiveKey)
		archive.AssertExpectations(t)
	})

	t.Run("archive failure does not fail the export", func(t *testing.T) {
		archive := new(MockArchive)
		archive.On("PutObject", mock.Anything, key, "application/xml", mock.Anything).Return(errors.New("bucket missing"))
		svc := NewExportService(&stubDocuments{}, &recordingWriter{}, CompanyInfo{}, WithArchive(archive))

		export, err := svc.Export(context.Background(), p, march1, march31)
		require.NoError(t, err)
		assert.Empty(t, export.ArchiveKey)
		assert.NotEmpty(t, export.Content)
	})
}
