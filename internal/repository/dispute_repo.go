package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marketplace/adminpanel/internal/domain"
)

type DisputeRepo struct {
	db *sql.DB
}

func NewDisputeRepo(db *sql.DB) *DisputeRepo {
	return &DisputeRepo{db: db}
}

const disputeColumns = `id, campaign_id, campaign_title, escrow_id, business_id, business_name,
	influencer_id, influencer_name, status, priority, category, summary,
	amount_in_dispute, opened_at, deadline`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Insert stores a dispute together with its requirements, evidence, messages
// and resolution. Existing IDs are skipped.
func (r *DisputeRepo) Insert(d *domain.Dispute) error {
	_, err := r.BulkInsert([]domain.Dispute{*d})
	return err
}

func (r *DisputeRepo) BulkInsert(disputes []domain.Dispute) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO disputes (` + disputeColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range disputes {
		d := &disputes[i]
		res, err := stmt.Exec(
			d.ID, d.CampaignID, d.CampaignTitle, nullableString(d.EscrowID),
			d.Business.ID, d.Business.Name, d.Influencer.ID, d.Influencer.Name,
			string(d.Status), string(d.Priority), string(d.Category), d.Summary,
			d.AmountInDispute, formatTime(d.OpenedAt), formatTime(d.Deadline),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert dispute %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		if ra == 0 {
			continue
		}
		inserted++
		if err := insertChildren(tx, d); err != nil {
			return inserted, fmt.Errorf("dispute %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func insertChildren(ex execer, d *domain.Dispute) error {
	for pos, req := range d.Requirements {
		if _, err := ex.Exec(
			"INSERT INTO dispute_requirements (dispute_id, position, label, met) VALUES (?,?,?,?)",
			d.ID, pos, req.Label, req.Met,
		); err != nil {
			return fmt.Errorf("insert requirement %d: %w", pos, err)
		}
	}
	for _, ev := range d.Evidence {
		if _, err := ex.Exec(
			`INSERT INTO dispute_evidence (id, dispute_id, uploaded_by, type, name, url, uploaded_at)
			VALUES (?,?,?,?,?,?,?)`,
			ev.ID, d.ID, string(ev.UploadedBy), ev.Type, ev.Name, ev.URL, formatTime(ev.UploadedAt),
		); err != nil {
			return fmt.Errorf("insert evidence %s: %w", ev.ID, err)
		}
	}
	for _, m := range d.Messages {
		if err := insertMessage(ex, d.ID, m); err != nil {
			return err
		}
	}
	if d.Resolution != nil {
		if err := insertResolution(ex, d.ID, d.Resolution); err != nil {
			return err
		}
	}
	return nil
}

func insertMessage(ex execer, disputeID string, m domain.Message) error {
	_, err := ex.Exec(
		"INSERT INTO dispute_messages (id, dispute_id, author, body, sent_at) VALUES (?,?,?,?,?)",
		m.ID, disputeID, string(m.Author), m.Body, formatTime(m.SentAt),
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return nil
}

func insertResolution(ex execer, disputeID string, res *domain.Resolution) error {
	_, err := ex.Exec(
		`INSERT INTO dispute_resolutions
		(dispute_id, id, type, percentage, reasoning, influencer_amount, business_amount,
		 resolved_by, resolved_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		disputeID, res.ID, string(res.Type), res.Percentage, res.Reasoning,
		res.InfluencerAmount, res.BusinessAmount, res.ResolvedBy, formatTime(res.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert resolution: %w", err)
	}
	return nil
}

func (r *DisputeRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM disputes").Scan(&count)
	return count, err
}

// GetByID returns the fully hydrated dispute or domain.ErrNotFound.
func (r *DisputeRepo) GetByID(id string) (*domain.Dispute, error) {
	row := r.db.QueryRow("SELECT "+disputeColumns+" FROM disputes WHERE id = ?", id)
	d, err := scanDispute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dispute %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(d); err != nil {
		return nil, err
	}
	return d, nil
}

type DisputeFilter struct {
	Status   string
	Priority string
	Category string
	Search   string
	Page     int
	Limit    int
}

// List returns one page of disputes ordered by deadline, plus the total
// number of matches.
func (r *DisputeRepo) List(f DisputeFilter) ([]domain.Dispute, int, error) {
	where, args := buildDisputeWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM disputes"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := "SELECT " + disputeColumns + " FROM disputes" + where + " ORDER BY deadline ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	disputes, err := r.query(q, args...)
	return disputes, total, err
}

// ListAll returns every dispute matching the filter without pagination.
func (r *DisputeRepo) ListAll(f DisputeFilter) ([]domain.Dispute, error) {
	where, args := buildDisputeWhere(f)
	return r.query("SELECT "+disputeColumns+" FROM disputes"+where+" ORDER BY deadline ASC, id ASC", args...)
}

func (r *DisputeRepo) query(q string, args ...any) ([]domain.Dispute, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}

	var disputes []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		disputes = append(disputes, *d)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Child rows are loaded after the cursor is closed; the pool holds one connection.
	for i := range disputes {
		if err := r.hydrate(&disputes[i]); err != nil {
			return nil, err
		}
	}
	return disputes, nil
}

// UpdateStatus moves a dispute from one status to another and appends a
// history row. It fails with ErrInvalidTransition if the stored status is no
// longer from, which catches concurrent admins racing on the same dispute.
func (r *DisputeRepo) UpdateStatus(id string, from, to domain.DisputeStatus, actor, reason string, at time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := updateStatus(tx, id, from, to, actor, reason, at); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveResolution stores the resolution and the move to resolved in one
// transaction.
func (r *DisputeRepo) SaveResolution(d *domain.Dispute, from domain.DisputeStatus, reason string) error {
	if d.Resolution == nil {
		return fmt.Errorf("dispute %s: %w", d.ID, domain.NewFieldError(domain.ErrMissingField, "resolution", ""))
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := updateStatus(tx, d.ID, from, d.Status, d.Resolution.ResolvedBy, reason, d.Resolution.ResolvedAt); err != nil {
		return err
	}
	if err := insertResolution(tx, d.ID, d.Resolution); err != nil {
		return err
	}
	return tx.Commit()
}

func updateStatus(tx *sql.Tx, id string, from, to domain.DisputeStatus, actor, reason string, at time.Time) error {
	res, err := tx.Exec(
		"UPDATE disputes SET status = ? WHERE id = ? AND status = ?",
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		var current string
		err := tx.QueryRow("SELECT status FROM disputes WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("dispute %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: dispute %s is %s, not %s", domain.ErrInvalidTransition, id, current, from)
	}

	_, err = tx.Exec(
		`INSERT INTO dispute_status_history (dispute_id, from_status, to_status, changed_by, reason, changed_at)
		VALUES (?,?,?,?,?,?)`,
		id, string(from), string(to), actor, reason, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *DisputeRepo) AddMessage(disputeID string, m domain.Message) error {
	var exists int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM disputes WHERE id = ?", disputeID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("dispute %s: %w", disputeID, domain.ErrNotFound)
	}
	return insertMessage(r.db, disputeID, m)
}

// History returns the status changes of a dispute, oldest first.
func (r *DisputeRepo) History(disputeID string) ([]domain.StatusChange, error) {
	rows, err := r.db.Query(
		`SELECT dispute_id, from_status, to_status, changed_by, reason, changed_at
		FROM dispute_status_history WHERE dispute_id = ? ORDER BY id ASC`, disputeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		var from, to, changedAt string
		if err := rows.Scan(&c.DisputeID, &from, &to, &c.ChangedBy, &c.Reason, &changedAt); err != nil {
			return nil, err
		}
		c.From = domain.DisputeStatus(from)
		c.To = domain.DisputeStatus(to)
		c.ChangedAt = parseTime(changedAt)
		history = append(history, c)
	}
	return history, rows.Err()
}

// hydrate loads the child rows of a dispute.
func (r *DisputeRepo) hydrate(d *domain.Dispute) error {
	reqs, err := r.db.Query(
		"SELECT label, met FROM dispute_requirements WHERE dispute_id = ? ORDER BY position", d.ID,
	)
	if err != nil {
		return fmt.Errorf("load requirements: %w", err)
	}
	d.Requirements = []domain.Requirement{}
	for reqs.Next() {
		var req domain.Requirement
		if err := reqs.Scan(&req.Label, &req.Met); err != nil {
			reqs.Close()
			return err
		}
		d.Requirements = append(d.Requirements, req)
	}
	reqs.Close()

	evs, err := r.db.Query(
		`SELECT id, uploaded_by, type, name, url, uploaded_at
		FROM dispute_evidence WHERE dispute_id = ? ORDER BY uploaded_at, id`, d.ID,
	)
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}
	d.Evidence = []domain.Evidence{}
	for evs.Next() {
		var ev domain.Evidence
		var by, uploadedAt string
		if err := evs.Scan(&ev.ID, &by, &ev.Type, &ev.Name, &ev.URL, &uploadedAt); err != nil {
			evs.Close()
			return err
		}
		ev.UploadedBy = domain.Role(by)
		ev.UploadedAt = parseTime(uploadedAt)
		d.Evidence = append(d.Evidence, ev)
	}
	evs.Close()

	msgs, err := r.db.Query(
		"SELECT id, author, body, sent_at FROM dispute_messages WHERE dispute_id = ? ORDER BY sent_at, id", d.ID,
	)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	d.Messages = []domain.Message{}
	for msgs.Next() {
		var m domain.Message
		var author, sentAt string
		if err := msgs.Scan(&m.ID, &author, &m.Body, &sentAt); err != nil {
			msgs.Close()
			return err
		}
		m.Author = domain.Role(author)
		m.SentAt = parseTime(sentAt)
		d.Messages = append(d.Messages, m)
	}
	msgs.Close()

	var res domain.Resolution
	var typ, resolvedAt string
	err = r.db.QueryRow(
		`SELECT id, type, percentage, reasoning, influencer_amount, business_amount, resolved_by, resolved_at
		FROM dispute_resolutions WHERE dispute_id = ?`, d.ID,
	).Scan(&res.ID, &typ, &res.Percentage, &res.Reasoning, &res.InfluencerAmount, &res.BusinessAmount,
		&res.ResolvedBy, &resolvedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		d.Resolution = nil
	case err != nil:
		return fmt.Errorf("load resolution: %w", err)
	default:
		res.Type = domain.DecisionType(typ)
		res.ResolvedAt = parseTime(resolvedAt)
		d.Resolution = &res
	}
	return nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row rowScanner) (*domain.Dispute, error) {
	var d domain.Dispute
	var escrowID sql.NullString
	var status, priority, category, openedAt, deadline string

	err := row.Scan(
		&d.ID, &d.CampaignID, &d.CampaignTitle, &escrowID,
		&d.Business.ID, &d.Business.Name, &d.Influencer.ID, &d.Influencer.Name,
		&status, &priority, &category, &d.Summary,
		&d.AmountInDispute, &openedAt, &deadline,
	)
	if err != nil {
		return nil, err
	}

	d.EscrowID = escrowID.String
	d.Status = domain.DisputeStatus(status)
	d.Priority = domain.Priority(priority)
	d.Category = domain.Category(category)
	d.OpenedAt = parseTime(openedAt)
	d.Deadline = parseTime(deadline)
	return &d, nil
}

func buildDisputeWhere(f DisputeFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, f.Priority)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		clauses = append(clauses,
			"(LOWER(id) LIKE ? OR LOWER(campaign_title) LIKE ? OR LOWER(business_name) LIKE ? OR LOWER(influencer_name) LIKE ?)")
		args = append(args, like, like, like, like)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
