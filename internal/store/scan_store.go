package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vbonduro/foodguard/internal/domain"
)

type ScanStore struct {
	db *sql.DB
}

func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db}
}

// Create inserts scan with a fresh UUID and returns the stored row.
func (s *ScanStore) Create(ctx context.Context, scan *domain.Scan) (*domain.Scan, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, storage_key, mime_type, record_id, food_name, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, scan.StorageKey, scan.MimeType, scan.RecordID, scan.FoodName, string(scan.Status), scan.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *ScanStore) GetByID(ctx context.Context, id string) (*domain.Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, storage_key, mime_type, record_id, food_name, status, error, created_at
		FROM scans WHERE id = ?
	`, id)

	scan, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return scan, nil
}

// List returns scans newest first.
func (s *ScanStore) List(ctx context.Context, limit int) ([]*domain.Scan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, storage_key, mime_type, record_id, food_name, status, error, created_at
		FROM scans ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var scans []*domain.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}

	return scans, nil
}

func (s *ScanStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM scans WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (*domain.Scan, error) {
	scan := &domain.Scan{}
	var status string
	if err := row.Scan(&scan.ID, &scan.StorageKey, &scan.MimeType, &scan.RecordID, &scan.FoodName, &status, &scan.Error, &scan.CreatedAt); err != nil {
		return nil, err
	}
	scan.Status = domain.ScanStatus(status)
	return scan, nil
}
