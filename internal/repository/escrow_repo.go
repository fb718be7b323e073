package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketplace/adminpanel/internal/domain"
)

type EscrowRepo struct {
	db *sql.DB
}

func NewEscrowRepo(db *sql.DB) *EscrowRepo {
	return &EscrowRepo{db: db}
}

const escrowColumns = `id, campaign_id, campaign_title, business_name, influencer_name,
	source_amount, source_currency, net_to_influencer, commission, vat,
	amount_before_commission, total_paid, status, created_at, updated_at`

const insertEscrowSQL = `INSERT OR IGNORE INTO escrow_payments (` + escrowColumns + `)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

func escrowArgs(p *domain.EscrowPayment) []any {
	b := p.Breakdown
	return []any{
		p.ID, p.CampaignID, p.CampaignTitle, p.BusinessName, p.InfluencerName,
		p.SourceAmount, p.SourceCurrency, b.NetToInfluencer, b.Commission, b.VAT,
		b.AmountBeforeCommission, b.TotalPaid, string(p.Status),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	}
}

func (r *EscrowRepo) Insert(p *domain.EscrowPayment) error {
	if _, err := r.db.Exec(insertEscrowSQL, escrowArgs(p)...); err != nil {
		return fmt.Errorf("insert escrow payment: %w", err)
	}
	return nil
}

func (r *EscrowRepo) BulkInsert(payments []domain.EscrowPayment) (int, error) {
	inserted := 0
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertEscrowSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range payments {
		res, err := stmt.Exec(escrowArgs(&payments[i])...)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *EscrowRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM escrow_payments").Scan(&count)
	return count, err
}

func (r *EscrowRepo) GetByID(id string) (*domain.EscrowPayment, error) {
	row := r.db.QueryRow("SELECT "+escrowColumns+" FROM escrow_payments WHERE id = ?", id)
	p, err := scanEscrow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escrow payment %s: %w", id, domain.ErrNotFound)
	}
	return p, err
}

type EscrowFilter struct {
	Status string
	Search string
	Page   int
	Limit  int
}

func (r *EscrowRepo) List(f EscrowFilter) ([]domain.EscrowPayment, int, error) {
	where, args := buildEscrowWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM escrow_payments"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + escrowColumns + " FROM escrow_payments" + where + " ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []domain.EscrowPayment
	for rows.Next() {
		p, err := scanEscrow(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, *p)
	}
	return payments, total, rows.Err()
}

func (r *EscrowRepo) ListAll() ([]domain.EscrowPayment, error) {
	rows, err := r.db.Query("SELECT " + escrowColumns + " FROM escrow_payments ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.EscrowPayment
	for rows.Next() {
		p, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *EscrowRepo) UpdateStatus(id string, status domain.EscrowStatus, at time.Time) error {
	res, err := r.db.Exec(
		"UPDATE escrow_payments SET status = ?, updated_at = ? WHERE id = ?",
		string(status), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("update escrow status: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return fmt.Errorf("escrow payment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

type EscrowSummary struct {
	TotalCount      int             `json:"total_count"`
	Held            decimal.Decimal `json:"held"`
	Released        decimal.Decimal `json:"released"`
	Refunded        decimal.Decimal `json:"refunded"`
	Split           decimal.Decimal `json:"split"`
	Disputed        decimal.Decimal `json:"disputed"`
	PlatformRevenue decimal.Decimal `json:"platform_revenue"`
	VATCollected    decimal.Decimal `json:"vat_collected"`
	CountByStatus   map[string]int  `json:"count_by_status"`
}

// Summary totals the escrow book by status using the amount each business
// paid. Amounts are summed in decimal since they are stored as text.
func (r *EscrowRepo) Summary() (*EscrowSummary, error) {
	s := &EscrowSummary{
		Held:            decimal.Zero,
		Released:        decimal.Zero,
		Refunded:        decimal.Zero,
		Split:           decimal.Zero,
		Disputed:        decimal.Zero,
		PlatformRevenue: decimal.Zero,
		VATCollected:    decimal.Zero,
		CountByStatus:   make(map[string]int),
	}

	rows, err := r.db.Query("SELECT status, total_paid, commission, vat FROM escrow_payments")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var total, commission, vat decimal.Decimal
		if err := rows.Scan(&status, &total, &commission, &vat); err != nil {
			return nil, err
		}
		s.TotalCount++
		s.CountByStatus[status]++
		s.VATCollected = s.VATCollected.Add(vat)
		s.PlatformRevenue = s.PlatformRevenue.Add(commission)

		switch domain.EscrowStatus(status) {
		case domain.EscrowHeld:
			s.Held = s.Held.Add(total)
		case domain.EscrowDisputed:
			s.Disputed = s.Disputed.Add(total)
		case domain.EscrowReleased:
			s.Released = s.Released.Add(total)
		case domain.EscrowRefunded:
			s.Refunded = s.Refunded.Add(total)
		case domain.EscrowSplit:
			s.Split = s.Split.Add(total)
		}
	}
	return s, rows.Err()
}

// --- helpers ---

func buildEscrowWhere(f EscrowFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses,
			"(LOWER(campaign_id) LIKE ? OR LOWER(campaign_title) LIKE ? OR LOWER(business_name) LIKE ? OR LOWER(influencer_name) LIKE ?)")
		args = append(args, like, like, like, like)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEscrow(row rowScanner) (*domain.EscrowPayment, error) {
	var p domain.EscrowPayment
	var status, createdAt, updatedAt string
	b := &p.Breakdown

	err := row.Scan(
		&p.ID, &p.CampaignID, &p.CampaignTitle, &p.BusinessName, &p.InfluencerName,
		&p.SourceAmount, &p.SourceCurrency, &b.NetToInfluencer, &b.Commission, &b.VAT,
		&b.AmountBeforeCommission, &b.TotalPaid, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.CommissionRate = domain.CommissionRate
	b.VATRate = domain.VATRate
	b.PlatformRevenue = b.Commission
	p.Status = domain.EscrowStatus(status)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
