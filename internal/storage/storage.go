// Package storage persists full invoice records beyond the compact synopsis
// kept in the vector index.
package storage

import (
	"context"

	"github.com/hyperjump/seisan/internal/models"
)

// RecordStore defines invoice record persistence operations.
type RecordStore interface {
	SaveInvoice(ctx context.Context, rec *models.InvoiceRecord, docID string) (*models.StoredInvoice, error)
	GetInvoice(ctx context.Context, id string) (*models.StoredInvoice, error)
	GetByDocID(ctx context.Context, docID string) (*models.StoredInvoice, error)
	ListByEmployee(ctx context.Context, employee string, limit int) ([]*models.StoredInvoice, error)
	CountInvoices(ctx context.Context) (int64, error)
	DeleteInvoice(ctx context.Context, id string) error
	Close() error
}
