package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vbonduro/foodguard/internal/domain"
	"github.com/vbonduro/foodguard/internal/photostore"
	"github.com/vbonduro/foodguard/internal/predict"
	"github.com/vbonduro/foodguard/internal/store"
)

var (
	ErrScanNotFound     = errors.New("scan not found")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// scanRepository is the subset of store.ScanStore that ScanService requires.
type scanRepository interface {
	Create(ctx context.Context, scan *domain.Scan) (*domain.Scan, error)
	GetByID(ctx context.Context, id string) (*domain.Scan, error)
	List(ctx context.Context, limit int) ([]*domain.Scan, error)
	Delete(ctx context.Context, id string) error
}

// DefaultScanListLimit caps ListScans.
const DefaultScanListLimit = 50

type ScanService struct {
	scanStore scanRepository
	predictor predict.Predictor
	photoStg  photostore.PhotoStore
	logger    *slog.Logger
}

func NewScanService(
	scanStore scanRepository,
	predictor predict.Predictor,
	photoStg photostore.PhotoStore,
	logger *slog.Logger,
) *ScanService {
	return &ScanService{
		scanStore: scanStore,
		predictor: predictor,
		photoStg:  photoStg,
		logger:    logger,
	}
}

// Scan saves the photo, asks the predictor for a nutrition record and logs
// the attempt. A failed prediction keeps the photo and is logged with
// status failed before the error is returned.
func (s *ScanService) Scan(ctx context.Context, imageData []byte, mimeType string) (*domain.NutritionRecord, error) {
	s.logger.Info("scan started", "mime_type", mimeType, "bytes", len(imageData))

	storageKey, err := s.photoStg.Save(ctx, "scan", mimeType, bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}
	s.logger.Debug("photo saved", "storage_key", storageKey)

	record, predictErr := s.predictor.Predict(ctx, bytes.NewReader(imageData), mimeType)

	scan := &domain.Scan{StorageKey: storageKey, MimeType: mimeType, Status: domain.ScanCompleted}
	if predictErr != nil {
		scan.Status = domain.ScanFailed
		scan.Error = predictErr.Error()
	} else {
		scan.RecordID = record.ID
		scan.FoodName = record.Name
	}

	if _, err := s.scanStore.Create(ctx, scan); err != nil {
		// A missing log entry does not fail the scan.
		s.logger.Error("failed to record scan", "storage_key", storageKey, "error", err)
	}

	if predictErr != nil {
		s.logger.Warn("prediction failed", "storage_key", storageKey, "error", predictErr)
		return nil, fmt.Errorf("failed to predict nutrition: %w", predictErr)
	}

	s.logger.Info("scan complete", "record_id", record.ID, "food", record.Name)
	return record, nil
}

// ScanFile runs Scan on the photo at path after checking it is an accepted
// image format.
func (s *ScanService) ScanFile(ctx context.Context, path string) (*domain.NutritionRecord, error) {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	mimeType, ok := photostore.DetectImageType(imageData)
	if !ok {
		return nil, ErrUnsupportedImage
	}
	return s.Scan(ctx, imageData, mimeType)
}

func (s *ScanService) ListScans(ctx context.Context) ([]*domain.Scan, error) {
	scans, err := s.scanStore.List(ctx, DefaultScanListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return scans, nil
}

func (s *ScanService) GetScan(ctx context.Context, id string) (*domain.Scan, error) {
	scan, err := s.scanStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	if scan == nil {
		return nil, ErrScanNotFound
	}
	return scan, nil
}

// DeleteScan removes a scan from the log together with its photo.
func (s *ScanService) DeleteScan(ctx context.Context, id string) error {
	scan, err := s.GetScan(ctx, id)
	if err != nil {
		return err
	}

	if err := s.scanStore.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrScanNotFound
		}
		return fmt.Errorf("failed to delete scan: %w", err)
	}

	if err := s.photoStg.Delete(ctx, scan.StorageKey); err != nil {
		s.logger.Warn("failed to delete scan photo", "storage_key", scan.StorageKey, "error", err)
	}
	s.logger.Info("scan deleted", "scan_id", id)
	return nil
}
