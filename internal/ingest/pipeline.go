package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/seisan/internal/embedding"
	"github.com/hyperjump/seisan/internal/extract"
	"github.com/hyperjump/seisan/internal/llm"
	"github.com/hyperjump/seisan/internal/models"
	"github.com/hyperjump/seisan/internal/storage"
	"github.com/hyperjump/seisan/internal/vector"
)

// Pipeline processes invoice documents end to end: extract text, analyze
// against the policy, persist the record, embed, and index.
type Pipeline struct {
	extractor *extract.Extractor
	llm       llm.Client
	embedder  embedding.Embedder
	store     vector.Store
	records   storage.RecordStore
	logger    *zap.Logger
}

// NewPipeline assembles an ingestion pipeline. records may be nil when record
// persistence is disabled.
func NewPipeline(extractor *extract.Extractor, client llm.Client, embedder embedding.Embedder, store vector.Store, records storage.RecordStore, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		llm:       client,
		embedder:  embedder,
		store:     store,
		records:   records,
		logger:    logger,
	}
}

// ProcessInvoices ingests every supported document in the ZIP archive for one
// employee. The returned slice always has one entry per document found: a
// document that fails at any stage yields a failed row instead of aborting
// the batch. Only archive-level problems (unreadable ZIP, no supported
// documents) return an error.
func (p *Pipeline) ProcessInvoices(ctx context.Context, archivePath, employeeName, policyText string) ([]models.ProcessedInvoice, error) {
	tmpDir, err := os.MkdirTemp("", "seisan-ingest-*")
	if err != nil {
		return nil, &ProcessingError{Op: "create temp dir", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	paths, err := extractArchive(archivePath, tmpDir, p.extractor.Supported)
	if err != nil {
		return nil, err
	}
	p.logger.Info("processing invoice batch",
		zap.String("employee", employeeName),
		zap.Int("documents", len(paths)))

	results := make([]models.ProcessedInvoice, 0, len(paths))
	for _, path := range paths {
		result, err := p.processSingle(ctx, path, employeeName, policyText)
		if err != nil {
			p.logger.Warn("invoice processing failed",
				zap.String("file", filepath.Base(path)),
				zap.Error(err))
			results = append(results, failedRow(path, employeeName, err))
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// ProcessFile ingests a single invoice document. Used by the drop-directory
// watcher; unlike batch processing, failures are returned to the caller.
func (p *Pipeline) ProcessFile(ctx context.Context, path, employeeName, policyText string) (*models.ProcessedInvoice, error) {
	if !p.extractor.Supported(strings.ToLower(filepath.Ext(path))) {
		return nil, &ProcessingError{Op: "process file", Err: fmt.Errorf("unsupported document type %q", filepath.Ext(path))}
	}
	return p.processSingle(ctx, path, employeeName, policyText)
}

func (p *Pipeline) processSingle(ctx context.Context, path, employeeName, policyText string) (*models.ProcessedInvoice, error) {
	fileName := filepath.Base(path)
	invoiceID := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	text, err := p.extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	analysis, err := p.llm.AnalyzeInvoice(ctx, text, policyText, employeeName)
	if err != nil {
		return nil, err
	}

	record := &models.InvoiceRecord{
		InvoiceID:    invoiceID,
		EmployeeName: employeeName,
		FileName:     fileName,
		RawText:      text,
		Analysis:     analysis,
	}

	vec, err := embedding.EmbedInvoice(ctx, p.embedder, embedding.InvoiceText{
		RawText:  text,
		Reason:   analysis.Reason,
		Status:   string(analysis.Status),
		Employee: employeeName,
	})
	if err != nil {
		return nil, err
	}

	date := time.Now().Format("2006-01-02")
	docID, err := p.store.Insert(ctx, map[string]string{
		"invoice_id":    invoiceID,
		"employee_name": employeeName,
		"status":        string(analysis.Status),
		"date":          date,
		"amount":        analysis.ReimbursableAmount,
		"file_name":     fileName,
	}, synopsis(record), vec)
	if err != nil {
		return nil, err
	}

	if p.records != nil {
		if _, err := p.records.SaveInvoice(ctx, record, docID); err != nil {
			p.logger.Warn("record persistence failed",
				zap.String("invoice_id", invoiceID),
				zap.Error(err))
		}
	}

	p.logger.Debug("invoice indexed",
		zap.String("invoice_id", invoiceID),
		zap.String("status", string(analysis.Status)),
		zap.String("doc_id", docID))

	return &models.ProcessedInvoice{
		InvoiceID:          invoiceID,
		EmployeeName:       employeeName,
		FileName:           fileName,
		Status:             analysis.Status,
		Reason:             analysis.Reason,
		ReimbursableAmount: analysis.ReimbursableAmount,
		TotalAmount:        analysis.TotalAmount,
		Date:               date,
		DocumentID:         docID,
	}, nil
}

// synopsis renders the compact document text stored alongside the vector.
// The retriever surfaces these lines directly as context summaries.
func synopsis(rec *models.InvoiceRecord) string {
	return fmt.Sprintf("Invoice ID: %s\nEmployee: %s\nStatus: %s\nReason: %s\nAmount: %s",
		rec.InvoiceID, rec.EmployeeName, rec.Analysis.Status, rec.Analysis.Reason,
		rec.Analysis.ReimbursableAmount)
}

// failedRow shapes a per-invoice failure as a structurally complete result.
func failedRow(path, employeeName string, err error) models.ProcessedInvoice {
	fileName := filepath.Base(path)
	return models.ProcessedInvoice{
		InvoiceID:          strings.TrimSuffix(fileName, filepath.Ext(fileName)),
		EmployeeName:       employeeName,
		FileName:           fileName,
		Status:             models.StatusFailed,
		Reason:             fmt.Sprintf("Processing error: %v", err),
		ReimbursableAmount: "0.00",
		TotalAmount:        "0.00",
		Date:               time.Now().Format("2006-01-02"),
	}
}
