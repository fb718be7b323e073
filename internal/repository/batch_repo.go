package repository

import (
	"database/sql"
	"fmt"

	"github.com/marketplace/adminpanel/internal/domain"
)

type BatchRepo struct {
	db *sql.DB
}

func NewBatchRepo(db *sql.DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// ExistsByHash checks whether a file with the given hash has already been
// imported (idempotency check).
func (r *BatchRepo) ExistsByHash(hash string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM import_batches WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

func (r *BatchRepo) Insert(b *domain.ImportBatch) error {
	_, err := r.db.Exec(
		`INSERT INTO import_batches (id, format, file_hash, record_count, imported_at)
		VALUES (?,?,?,?,?)`,
		b.ID, string(b.Format), b.FileHash, b.RecordCount, formatTime(b.ImportedAt),
	)
	if err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return nil
}

// List returns the import history, newest first.
func (r *BatchRepo) List() ([]domain.ImportBatch, error) {
	rows, err := r.db.Query(
		"SELECT id, format, file_hash, record_count, imported_at FROM import_batches ORDER BY imported_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []domain.ImportBatch
	for rows.Next() {
		var b domain.ImportBatch
		var format, importedAt string
		if err := rows.Scan(&b.ID, &format, &b.FileHash, &b.RecordCount, &importedAt); err != nil {
			return nil, err
		}
		b.Format = domain.ImportFormat(format)
		b.ImportedAt = parseTime(importedAt)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
