package domain

import "time"

type ImportFormat string

const (
	FormatDisputesJSON ImportFormat = "disputes_json"
	FormatEscrowCSV    ImportFormat = "escrow_csv"
)

// ImportBatch records one uploaded fixture file. FileHash makes re-uploads
// of the same bytes a no-op.
type ImportBatch struct {
	ID          string       `json:"id"`
	Format      ImportFormat `json:"format"`
	FileHash    string       `json:"file_hash"`
	RecordCount int          `json:"record_count"`
	ImportedAt  time.Time    `json:"imported_at"`
}
