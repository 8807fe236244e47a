package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFiscalDocumentRepository implements fiscal.DocumentRepository using GORM
type GormFiscalDocumentRepository struct {
	db *gorm.DB
}

// NewGormFiscalDocumentRepository creates a new GormFiscalDocumentRepository
func NewGormFiscalDocumentRepository(db *gorm.DB) *GormFiscalDocumentRepository {
	return &GormFiscalDocumentRepository{db: db}
}

// Ensure GormFiscalDocumentRepository implements fiscal.DocumentRepository
var _ fiscal.DocumentRepository = (*GormFiscalDocumentRepository)(nil)

func orderByLineNumber(db *gorm.DB) *gorm.DB {
	return db.Order("line_number ASC")
}

func (r *GormFiscalDocumentRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", orderByLineNumber).
		Preload("ReceiptLines", orderByLineNumber)
}

func (r *GormFiscalDocumentRepository) find(q *gorm.DB, tenantID, id uuid.UUID, docType *fiscal.DocumentType, resource string) (fiscal.Document, error) {
	q = q.Where("tenant_id = ? AND id = ?", tenantID, id)
	if docType != nil {
		q = q.Where("document_type = ?", string(*docType))
	}
	var model models.FiscalDocumentModel
	if err := q.First(&model).Error; err != nil {
		return nil, mapError(err, resource)
	}
	return model.ToDomain()
}

// FindByID loads any document type for a tenant
func (r *GormFiscalDocumentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (fiscal.Document, error) {
	return r.find(r.withLines(ctx), tenantID, id, nil, "document")
}

// FindProforma loads a proforma
func (r *GormFiscalDocumentRepository) FindProforma(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Proforma, error) {
	t := fiscal.DocumentTypeProforma
	doc, err := r.find(r.withLines(ctx), tenantID, id, &t, "proforma")
	if err != nil {
		return nil, err
	}
	return doc.(*fiscal.Proforma), nil
}

// FindInvoice loads an invoice
func (r *GormFiscalDocumentRepository) FindInvoice(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Invoice, error) {
	t := fiscal.DocumentTypeInvoice
	doc, err := r.find(r.withLines(ctx), tenantID, id, &t, "invoice")
	if err != nil {
		return nil, err
	}
	return doc.(*fiscal.Invoice), nil
}

// FindInvoiceForUpdate loads an invoice with SELECT ... FOR UPDATE
func (r *GormFiscalDocumentRepository) FindInvoiceForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Invoice, error) {
	t := fiscal.DocumentTypeInvoice
	q := r.withLines(ctx).Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: clause.CurrentTable}})
	doc, err := r.find(q, tenantID, id, &t, "invoice")
	if err != nil {
		return nil, err
	}
	return doc.(*fiscal.Invoice), nil
}

// FindAll lists documents matching filter with pagination
func (r *GormFiscalDocumentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter fiscal.DocumentFilter) ([]fiscal.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FiscalDocumentModel{}).Where("tenant_id = ?", tenantID)
	if filter.Type != nil {
		query = query.Where("document_type = ?", string(*filter.Type))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.FromDate != nil {
		query = query.Where("issue_date >= ?", fiscal.DateOnly(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query = query.Where("issue_date <= ?", fiscal.DateOnly(*filter.ToDate))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, mapError(err, "document")
	}

	sortField := ValidateSortField(filter.OrderBy, DocumentSortFields, "issue_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var rows []models.FiscalDocumentModel
	err := query.
		Preload("Lines", orderByLineNumber).
		Preload("ReceiptLines", orderByLineNumber).
		Order(sortField + " " + sortOrder).
		Order("document_number " + sortOrder).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, mapError(err, "document")
	}
	docs, err := toDomainDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// FindIssuedBetween returns certified documents issued within [start, end]
func (r *GormFiscalDocumentRepository) FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]fiscal.Document, error) {
	var rows []models.FiscalDocumentModel
	err := r.withLines(ctx).
		Where("tenant_id = ? AND certified_at IS NOT NULL", tenantID).
		Where("issue_date >= ? AND issue_date <= ?", fiscal.DateOnly(start), fiscal.DateOnly(end)).
		Order("document_type ASC").
		Order("fiscal_year ASC").
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, "document")
	}
	return toDomainDocuments(rows)
}

// FindOverdueCandidates returns issued invoices whose due date is before asOf
func (r *GormFiscalDocumentRepository) FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*fiscal.Invoice, error) {
	var rows []models.FiscalDocumentModel
	err := r.withLines(ctx).
		Where("tenant_id = ? AND document_type = ? AND status = ?", tenantID, string(fiscal.DocumentTypeInvoice), string(fiscal.InvoiceStatusIssued)).
		Where("due_date < ?", fiscal.DateOnly(asOf)).
		Order("due_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, "invoice")
	}
	out := make([]*fiscal.Invoice, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, doc.(*fiscal.Invoice))
	}
	return out, nil
}

// SumCreditedAmount sums the totals of credit notes issued against an invoice
func (r *GormFiscalDocumentRepository) SumCreditedAmount(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&models.FiscalDocumentModel{}).
		Select("COALESCE(SUM(total_amount), 0) AS total").
		Where("tenant_id = ? AND document_type = ? AND original_invoice_id = ?", tenantID, string(fiscal.DocumentTypeCreditNote), invoiceID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, mapError(err, "credit note")
	}
	return result.Total, nil
}

// Create inserts a new document with its lines
func (r *GormFiscalDocumentRepository) Create(ctx context.Context, doc fiscal.Document) error {
	model := models.FiscalDocumentModelFromDomain(doc)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return mapError(err, "document "+model.DocumentNumber)
	}
	return nil
}

// Update writes the lifecycle columns of a document. Lines, totals and
// certification columns are never rewritten. The version must match the
// stored one; on success it is incremented on both sides.
func (r *GormFiscalDocumentRepository) Update(ctx context.Context, doc fiscal.Document) error {
	h := doc.Header()
	model := models.FiscalDocumentModelFromDomain(doc)
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.FiscalDocumentModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", h.TenantID, h.ID, h.Version).
		Updates(map[string]any{
			"status":                  model.Status,
			"version":                 gorm.Expr("version + 1"),
			"updated_at":              now,
			"sent_at":                 model.SentAt,
			"accepted_at":             model.AcceptedAt,
			"rejected_at":             model.RejectedAt,
			"rejection_reason":        model.RejectionReason,
			"converted_to_invoice_id": model.ConvertedToInvoiceID,
			"converted_at":            model.ConvertedAt,
			"payment_status":          model.PaymentStatus,
			"paid_amount":             model.PaidAmount,
			"paid_at":                 model.PaidAt,
			"cancelled_at":            model.CancelledAt,
			"cancel_reason":           model.CancelReason,
		})
	if result.Error != nil {
		return mapError(result.Error, "document")
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	h.IncrementVersion()
	h.UpdatedAt = now
	return nil
}

// Delete removes a document and its lines
func (r *GormFiscalDocumentRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.FiscalDocumentModel{}, "tenant_id = ? AND id = ?", tenantID, id)
		if result.Error != nil {
			return mapError(result.Error, "document")
		}
		if result.RowsAffected == 0 {
			return shared.NewNotFoundError("document")
		}
		if err := tx.Delete(&models.DocumentLineModel{}, "document_id = ?", id).Error; err != nil {
			return mapError(err, "document")
		}
		return nil
	})
}

func toDomainDocuments(rows []models.FiscalDocumentModel) ([]fiscal.Document, error) {
	docs := make([]fiscal.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
