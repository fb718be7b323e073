package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marketplace/adminpanel/internal/cache"
	"github.com/marketplace/adminpanel/internal/domain"
	"github.com/marketplace/adminpanel/internal/repository"
)

// StatsInvalidator drops cached dispute aggregates once new disputes land.
type StatsInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

type Option func(*Service)

func WithCache(c StatsInvalidator) Option {
	return func(s *Service) { s.cache = c }
}

// ImportResult is returned from a successful import.
type ImportResult struct {
	BatchID           string              `json:"batch_id"`
	Format            domain.ImportFormat `json:"format"`
	RecordsImported   int                 `json:"records_imported"`
	DuplicatesSkipped int                 `json:"duplicates_skipped"`
	AlreadyImported   bool                `json:"already_imported"`
}

// Service loads dispute and escrow fixture files into the store.
type Service struct {
	batches  *repository.BatchRepo
	disputes *repository.DisputeRepo
	escrow   *repository.EscrowRepo
	cache    StatsInvalidator
	log      logrus.FieldLogger
	nowFn    func() time.Time
}

func NewService(
	batches *repository.BatchRepo,
	disputes *repository.DisputeRepo,
	escrow *repository.EscrowRepo,
	log logrus.FieldLogger,
	opts ...Option,
) *Service {
	s := &Service{
		batches:  batches,
		disputes: disputes,
		escrow:   escrow,
		log:      log.WithField("component", "ingestion"),
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ImportDisputes(data []byte) (*ImportResult, error) {
	return s.Import(data, string(domain.FormatDisputesJSON))
}

func (s *Service) ImportEscrow(data []byte) (*ImportResult, error) {
	return s.Import(data, string(domain.FormatEscrowCSV))
}

// Import parses a file and stores its records. The same bytes imported twice
// are a no-op reported with AlreadyImported.
//
// format must be one of: disputes_json, escrow_csv
func (s *Service) Import(data []byte, format string) (*ImportResult, error) {
	f := domain.ImportFormat(format)
	if f != domain.FormatDisputesJSON && f != domain.FormatEscrowCSV {
		return nil, domain.NewFieldError(domain.ErrInvalidField, "format", fmt.Sprintf("unsupported format %q", format))
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.batches.ExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		s.log.WithField("format", format).Info("file already imported, skipping")
		return &ImportResult{Format: f, AlreadyImported: true}, nil
	}

	var total, inserted int
	switch f {
	case domain.FormatDisputesJSON:
		disputes, err := ParseDisputesJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", format, err)
		}
		total = len(disputes)
		if inserted, err = s.disputes.BulkInsert(disputes); err != nil {
			return nil, fmt.Errorf("insert disputes: %w", err)
		}
		if inserted > 0 {
			s.invalidateStats()
		}
	case domain.FormatEscrowCSV:
		payments, err := ParseEscrowCSV(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", format, err)
		}
		total = len(payments)
		if inserted, err = s.escrow.BulkInsert(payments); err != nil {
			return nil, fmt.Errorf("insert escrow payments: %w", err)
		}
	}

	batch := &domain.ImportBatch{
		ID:          "IMP-" + uuid.NewString(),
		Format:      f,
		FileHash:    hash,
		RecordCount: total,
		ImportedAt:  s.nowFn(),
	}
	if err := s.batches.Insert(batch); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"batch_id": batch.ID,
		"format":   format,
		"records":  total,
		"inserted": inserted,
	}).Info("import complete")

	return &ImportResult{
		BatchID:           batch.ID,
		Format:            f,
		RecordsImported:   inserted,
		DuplicatesSkipped: total - inserted,
	}, nil
}

func (s *Service) invalidateStats() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(context.Background(), cache.DisputeStatsKey); err != nil {
		s.log.WithError(err).Warn("invalidate stats cache")
	}
}

// Seed imports escrow.csv and disputes.json from dir, in that order so
// disputes can reference their payments. Missing files are skipped.
func (s *Service) Seed(dir string) error {
	files := []struct {
		name   string
		format domain.ImportFormat
	}{
		{"escrow.csv", domain.FormatEscrowCSV},
		{"disputes.json", domain.FormatDisputesJSON},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			s.log.WithField("path", path).Warn("seed file not found")
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := s.Import(data, string(f.format)); err != nil {
			return fmt.Errorf("seed %s: %w", f.name, err)
		}
	}
	return nil
}
