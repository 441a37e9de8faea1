package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
	"github.com/hyperjump/seisan/internal/models"
)

// SQLiteStore implements RecordStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		file_name TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		analysis TEXT NOT NULL,
		doc_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_employee ON invoices(employee_name);
	CREATE INDEX IF NOT EXISTS idx_invoices_doc_id ON invoices(doc_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveInvoice inserts a new record. Records are immutable; a re-ingest of the
// same file creates a new row with a new id.
func (s *SQLiteStore) SaveInvoice(ctx context.Context, rec *models.InvoiceRecord, docID string) (*models.StoredInvoice, error) {
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	stored := &models.StoredInvoice{
		ID:        uuid.New().String(),
		Record:    rec,
		DocID:     docID,
		CreatedAt: time.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, invoice_id, employee_name, file_name, raw_text, analysis, doc_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, rec.InvoiceID, rec.EmployeeName, rec.FileName, rec.RawText,
		string(analysisJSON), docID, stored.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetInvoice returns a stored invoice by primary id.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*models.StoredInvoice, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, invoice_id, employee_name, file_name, raw_text, analysis, doc_id, created_at
		 FROM invoices WHERE id = ?`, id))
}

// GetByDocID returns the stored invoice for a vector index document id.
func (s *SQLiteStore) GetByDocID(ctx context.Context, docID string) (*models.StoredInvoice, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, invoice_id, employee_name, file_name, raw_text, analysis, doc_id, created_at
		 FROM invoices WHERE doc_id = ?`, docID))
}

func (s *SQLiteStore) scanOne(row *sql.Row) (*models.StoredInvoice, error) {
	var stored models.StoredInvoice
	var rec models.InvoiceRecord
	var analysisJSON string
	err := row.Scan(&stored.ID, &rec.InvoiceID, &rec.EmployeeName, &rec.FileName,
		&rec.RawText, &analysisJSON, &stored.DocID, &stored.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invoice not found")
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	stored.Record = &rec
	return &stored, nil
}

// ListByEmployee returns stored invoices for an employee, newest first.
func (s *SQLiteStore) ListByEmployee(ctx context.Context, employee string, limit int) ([]*models.StoredInvoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, invoice_id, employee_name, file_name, raw_text, analysis, doc_id, created_at
		 FROM invoices WHERE employee_name = ? ORDER BY created_at DESC LIMIT ?`,
		employee, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.StoredInvoice
	for rows.Next() {
		var stored models.StoredInvoice
		var rec models.InvoiceRecord
		var analysisJSON string
		if err := rows.Scan(&stored.ID, &rec.InvoiceID, &rec.EmployeeName, &rec.FileName,
			&rec.RawText, &analysisJSON, &stored.DocID, &stored.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		stored.Record = &rec
		out = append(out, &stored)
	}
	return out, rows.Err()
}

// CountInvoices returns the total number of stored invoices.
func (s *SQLiteStore) CountInvoices(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&count)
	return count, err
}

// DeleteInvoice removes a stored invoice by primary id.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }
